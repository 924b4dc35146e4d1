// Package plans answers whether a user's subscription allows reminders.
package plans

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	infraBQ "github.com/dvloznov/finance-reminders/internal/infra/bigquery"
)

var activeStatuses = map[string]bool{
	"active":   true,
	"trialing": true,
	"ativo":    true,
	"ativa":    true,
}

// BigQueryChecker reads the latest subscription row of a user.
type BigQueryChecker struct {
	repo infraBQ.SubscriptionRepository
	log  zerolog.Logger
}

// NewBigQueryChecker creates a BigQueryChecker.
func NewBigQueryChecker(repo infraBQ.SubscriptionRepository, log zerolog.Logger) *BigQueryChecker {
	return &BigQueryChecker{repo: repo, log: log}
}

// IsActive reports whether the user's latest subscription is active. Users
// without a subscription are inactive.
func (c *BigQueryChecker) IsActive(ctx context.Context, userID string) (bool, error) {
	row, err := c.repo.FindLatestSubscription(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("IsActive: %w", err)
	}
	if row == nil {
		return false, nil
	}
	return activeStatuses[strings.ToLower(strings.TrimSpace(row.Status))], nil
}

// FirstName returns the first word of the stored name, or "".
func (c *BigQueryChecker) FirstName(ctx context.Context, userID string) string {
	row, err := c.repo.FindLatestSubscription(ctx, userID)
	if err != nil {
		c.log.Warn().Err(err).Str("recipient", userID).Msg("Failed to look up first name")
		return ""
	}
	if row == nil || !row.FirstName.Valid {
		return ""
	}
	fields := strings.Fields(row.FirstName.StringVal)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
