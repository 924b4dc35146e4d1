package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const reminderRunsTable = "reminder_runs"

// InsertReminderRunWithClient streams a single run row into finance.reminder_runs.
func InsertReminderRunWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, row *ReminderRunRow) error {
	if row.RunID == "" {
		return fmt.Errorf("InsertReminderRun: run_id cannot be empty")
	}

	inserter := client.DatasetInProject(ds.ProjectID, ds.DatasetID).Table(reminderRunsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertReminderRun: inserting row: %w", err)
	}

	return nil
}

// ListRecentReminderRunsWithClient returns the most recent runs, newest first.
func ListRecentReminderRunsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, limit int) ([]*ReminderRunRow, error) {
	if limit <= 0 {
		limit = 20
	}

	q := client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			trigger,
			started_ts,
			finished_ts,
			status,
			users_considered,
			reminders_total,
			sent,
			skipped,
			errors,
			reasons,
			archive_uri
		FROM %s
		ORDER BY started_ts DESC
		LIMIT @limit
	`, ds.Table(reminderRunsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecentReminderRuns: query read: %w", err)
	}

	var rows []*ReminderRunRow
	for {
		var r ReminderRunRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecentReminderRuns: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}
