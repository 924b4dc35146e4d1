package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// Dataset identifies the BigQuery project and dataset holding the finance tables.
type Dataset struct {
	ProjectID string
	DatasetID string
}

// Table returns the fully qualified, backtick-quoted table name for SQL.
func (d Dataset) Table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, name)
}

// LedgerRepository reads the ledger of payables and receivables.
type LedgerRepository interface {
	// ListOpenLedgerEntries returns every ledger row that is not obviously settled.
	ListOpenLedgerEntries(ctx context.Context) ([]*LedgerEntryRow, error)
}

// SubscriptionRepository looks up user plan subscriptions.
type SubscriptionRepository interface {
	// FindLatestSubscription returns the user's latest subscription or nil.
	FindLatestSubscription(ctx context.Context, userID string) (*SubscriptionRow, error)
}

// RunRepository stores the audit trail of reminder runs.
type RunRepository interface {
	// InsertReminderRun records a finished run.
	InsertReminderRun(ctx context.Context, row *ReminderRunRow) error

	// ListRecentReminderRuns returns the latest runs, newest first.
	ListRecentReminderRuns(ctx context.Context, limit int) ([]*ReminderRunRow, error)
}

// Repository is the BigQuery implementation of every repository interface.
// It holds a shared BigQuery client to avoid creating a new connection for
// each operation.
type Repository struct {
	client *bigquery.Client
	ds     Dataset
}

// NewRepository creates a Repository with its own BigQuery client.
func NewRepository(ctx context.Context, ds Dataset) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, ds.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{
		client: client,
		ds:     ds,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListOpenLedgerEntries delegates to ListOpenLedgerEntriesWithClient with the shared client.
func (r *Repository) ListOpenLedgerEntries(ctx context.Context) ([]*LedgerEntryRow, error) {
	return ListOpenLedgerEntriesWithClient(ctx, r.client, r.ds)
}

// FindLatestSubscription delegates to FindLatestSubscriptionWithClient with the shared client.
func (r *Repository) FindLatestSubscription(ctx context.Context, userID string) (*SubscriptionRow, error) {
	return FindLatestSubscriptionWithClient(ctx, r.client, r.ds, userID)
}

// InsertReminderRun delegates to InsertReminderRunWithClient with the shared client.
func (r *Repository) InsertReminderRun(ctx context.Context, row *ReminderRunRow) error {
	return InsertReminderRunWithClient(ctx, r.client, r.ds, row)
}

// ListRecentReminderRuns delegates to ListRecentReminderRunsWithClient with the shared client.
func (r *Repository) ListRecentReminderRuns(ctx context.Context, limit int) ([]*ReminderRunRow, error) {
	return ListRecentReminderRunsWithClient(ctx, r.client, r.ds, limit)
}

var (
	_ LedgerRepository       = (*Repository)(nil)
	_ SubscriptionRepository = (*Repository)(nil)
	_ RunRepository          = (*Repository)(nil)
)
