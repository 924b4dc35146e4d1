package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const subscriptionsTable = "subscriptions"

// SubscriptionRow is one row of finance.subscriptions. A user may have several
// rows over time; the most recently updated one is authoritative.
type SubscriptionRow struct {
	UserID    string              `bigquery:"user_id"`    // REQUIRED, normalized phone digits
	Plan      bigquery.NullString `bigquery:"plan"`       // NULLABLE
	Status    string              `bigquery:"status"`     // REQUIRED, e.g. active / canceled
	FirstName bigquery.NullString `bigquery:"first_name"` // NULLABLE
	UpdatedTS time.Time           `bigquery:"updated_ts"` // REQUIRED
}

// FindLatestSubscriptionWithClient returns the latest subscription row for the
// user, or nil when the user has none.
func FindLatestSubscriptionWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, userID string) (*SubscriptionRow, error) {
	if userID == "" {
		return nil, fmt.Errorf("FindLatestSubscription: user_id cannot be empty")
	}

	q := client.Query(fmt.Sprintf(`
		SELECT user_id, plan, status, first_name, updated_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY updated_ts DESC
		LIMIT 1
	`, ds.Table(subscriptionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindLatestSubscription: reading query: %w", err)
	}

	var row SubscriptionRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindLatestSubscription: iterating: %w", err)
	}

	return &row, nil
}
