package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// ReminderRunRow is one row of finance.reminder_runs, the audit trail of
// reminder dispatch runs.
type ReminderRunRow struct {
	RunID   string `bigquery:"run_id"`  // REQUIRED
	Trigger string `bigquery:"trigger"` // REQUIRED, e.g. cli / api

	StartedTS  time.Time `bigquery:"started_ts"`  // REQUIRED
	FinishedTS time.Time `bigquery:"finished_ts"` // REQUIRED

	Status string `bigquery:"status"` // REQUIRED, SUCCESS / DEGRADED

	UsersConsidered int64 `bigquery:"users_considered"`
	RemindersTotal  int64 `bigquery:"reminders_total"`
	Sent            int64 `bigquery:"sent"`
	Skipped         int64 `bigquery:"skipped"`
	Errors          int64 `bigquery:"errors"`

	Reasons bigquery.NullJSON `bigquery:"reasons"` // JSON histogram of decision reasons

	ArchiveURI bigquery.NullString `bigquery:"archive_uri"` // NULLABLE
}
