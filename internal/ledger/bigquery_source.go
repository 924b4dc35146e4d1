package ledger

import (
	"context"
	"fmt"

	infraBQ "github.com/dvloznov/finance-reminders/internal/infra/bigquery"
)

// BigQuerySource reads entries from finance.ledger_entries.
type BigQuerySource struct {
	repo infraBQ.LedgerRepository
}

// NewBigQuerySource creates a BigQuerySource over the given repository.
func NewBigQuerySource(repo infraBQ.LedgerRepository) *BigQuerySource {
	return &BigQuerySource{repo: repo}
}

// ReadEntries implements Reader.
func (s *BigQuerySource) ReadEntries(ctx context.Context) ([]Entry, error) {
	rows, err := s.repo.ListOpenLedgerEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("BigQuerySource.ReadEntries: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		if e, ok := FromRaw(rawFromBigQuery(row)); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func rawFromBigQuery(row *infraBQ.LedgerEntryRow) RawRow {
	raw := RawRow{
		ID:            row.EntryID,
		Type:          row.EntryType,
		Status:        row.Status,
		DueDateText:   row.DueDateText.StringVal,
		Recipient:     row.WhatsApp.StringVal,
		RecipientAlt:  row.Phone.StringVal,
		Description:   row.Description.StringVal,
		Amount:        row.Amount.StringVal,
		PaymentMethod: row.PaymentMethod.StringVal,
		PaymentCode:   row.PaymentCode.StringVal,
	}
	if row.DueDate.Valid {
		raw.DueDate = row.DueDate.Date.String()
	}
	return raw
}
