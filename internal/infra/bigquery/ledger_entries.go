package bigquery

import (
	"cloud.google.com/go/bigquery"
)

// LedgerEntryRow is one row of finance.ledger_entries.
type LedgerEntryRow struct {
	EntryID string `bigquery:"entry_id"` // REQUIRED
	UserID  string `bigquery:"user_id"`  // NULLABLE

	EntryType string `bigquery:"entry_type"` // REQUIRED, e.g. "pagar" / "receber"
	Status    string `bigquery:"status"`     // NULLABLE

	DueDate     bigquery.NullDate   `bigquery:"due_date"`      // NULLABLE
	DueDateText bigquery.NullString `bigquery:"due_date_text"` // NULLABLE, free text fallback

	WhatsApp bigquery.NullString `bigquery:"whatsapp"` // NULLABLE
	Phone    bigquery.NullString `bigquery:"phone"`    // NULLABLE

	Description bigquery.NullString `bigquery:"description"` // NULLABLE
	Amount      bigquery.NullString `bigquery:"amount"`      // NULLABLE, CAST(amount AS STRING)

	PaymentMethod bigquery.NullString `bigquery:"payment_method"` // NULLABLE
	PaymentCode   bigquery.NullString `bigquery:"payment_code"`   // NULLABLE
}
