package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const ledgerEntriesTable = "ledger_entries"

// ListOpenLedgerEntriesWithClient returns ledger rows whose status is not a
// settled one. Final settlement rules per kind are applied by the caller; this
// query only trims the obvious closed rows to keep the scan small.
func ListOpenLedgerEntriesWithClient(ctx context.Context, client *bigquery.Client, ds Dataset) ([]*LedgerEntryRow, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT
			entry_id,
			user_id,
			entry_type,
			status,
			due_date,
			due_date_text,
			whatsapp,
			phone,
			description,
			CAST(amount AS STRING) AS amount,
			payment_method,
			payment_code
		FROM %s
		WHERE LOWER(TRIM(IFNULL(status, ''))) NOT IN ('paid', 'pago', 'paga')
		ORDER BY due_date, entry_id
	`, ds.Table(ledgerEntriesTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListOpenLedgerEntries: query read: %w", err)
	}

	var rows []*LedgerEntryRow
	for {
		var r LedgerEntryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListOpenLedgerEntries: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
