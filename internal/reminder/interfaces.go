// Package reminder implements the reminder aggregation and dispatch engine:
// it classifies ledger entries, groups them per recipient, checks plan
// eligibility, composes one message per recipient, picks the delivery channel
// and records the outcome of the run.
package reminder

import "context"

// PlanChecker reports whether a user's plan allows reminders.
type PlanChecker interface {
	IsActive(ctx context.Context, userID string) (bool, error)
}

// NameResolver returns the user's stored first name, or "" when unknown.
type NameResolver interface {
	FirstName(ctx context.Context, userID string) string
}

// InteractionTracker reports whether the user messaged us recently enough
// for a free-form text message to be allowed.
type InteractionTracker interface {
	HasRecentInteraction(ctx context.Context, userID string) bool
}

// Sender is the messaging transport. The bool results report delivery.
type Sender interface {
	SendText(ctx context.Context, to, body string) (bool, error)
	SendTemplate(ctx context.Context, to, userID, firstName string) (bool, error)
	SendCopyPrompt(ctx context.Context, to, label, code, buttonText string) error
}

// Normalizer maps a raw recipient to its canonical identity, or "" when invalid.
type Normalizer func(raw string) string
