package reminder

import (
	"time"

	"github.com/dvloznov/finance-reminders/internal/dates"
	"github.com/dvloznov/finance-reminders/internal/ledger"
)

// Item is an accepted entry with its resolved due day.
type Item struct {
	Entry ledger.Entry
	Kind  ledger.Kind
	Due   time.Time // start of day
}

// Classification is the result of classifying one entry: either accepted with
// its item and recipient, or rejected with a reason.
type Classification struct {
	Accepted bool
	Reason   Reason

	Item        Item
	Recipient   string // normalized identity
	Destination string // raw address the message goes to
}

func rejected(reason Reason) Classification {
	return Classification{Reason: reason}
}

// Classify decides whether an open entry should be reminded today. today must
// be a start of day in loc.
func Classify(entry ledger.Entry, today time.Time, loc *time.Location, normalize Normalizer) Classification {
	due, ok := resolveDueDate(entry, loc)
	if !ok {
		return rejected(ReasonInvalidDate)
	}
	due = dates.StartOfDay(due, loc)
	if due.After(today) {
		return rejected(ReasonFutureDue)
	}

	raw := entry.Recipient
	if raw == "" {
		raw = entry.RecipientAlt
	}
	if raw == "" {
		return rejected(ReasonInvalidUser)
	}
	recipient := normalize(raw)
	if recipient == "" {
		return rejected(ReasonInvalidUser)
	}

	return Classification{
		Accepted:    true,
		Item:        Item{Entry: entry, Kind: entry.Kind, Due: due},
		Recipient:   recipient,
		Destination: raw,
	}
}

// resolveDueDate prefers the ISO column and falls back to a dd/mm/yyyy token in
// the free-text column, then in the due date column itself.
func resolveDueDate(entry ledger.Entry, loc *time.Location) (time.Time, bool) {
	if t, ok := dates.ParseISO(entry.DueDateISO, loc); ok {
		return t, true
	}
	if t, ok := dates.ParseFallbackToken(entry.DueDateText, loc); ok {
		return t, true
	}
	return dates.ParseFallbackToken(entry.DueDateISO, loc)
}
