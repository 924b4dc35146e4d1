package reminder

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reminders/internal/dates"
	"github.com/dvloznov/finance-reminders/internal/identity"
	"github.com/dvloznov/finance-reminders/internal/ledger"
)

// Dependencies are the collaborators of an Engine. Reader, Plans,
// Interactions and Sender are required.
type Dependencies struct {
	Reader       ledger.Reader
	Plans        PlanChecker
	Names        NameResolver
	Interactions InteractionTracker
	Sender       Sender

	// Normalize defaults to identity.Normalize.
	Normalize Normalizer
	// Location defaults to time.Local.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time

	Logger zerolog.Logger
}

// Engine runs one reminder pass over the ledger.
type Engine struct {
	reader       ledger.Reader
	plans        PlanChecker
	names        NameResolver
	interactions InteractionTracker
	sender       Sender
	normalize    Normalizer
	loc          *time.Location
	now          func() time.Time
	log          zerolog.Logger
}

// NewEngine creates an Engine from its dependencies.
func NewEngine(deps Dependencies) *Engine {
	e := &Engine{
		reader:       deps.Reader,
		plans:        deps.Plans,
		names:        deps.Names,
		interactions: deps.Interactions,
		sender:       deps.Sender,
		normalize:    deps.Normalize,
		loc:          deps.Location,
		now:          deps.Now,
		log:          deps.Logger,
	}
	if e.normalize == nil {
		e.normalize = identity.Normalize
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Preview is the message a recipient would receive.
type Preview struct {
	Recipient   string `json:"recipient"`
	Destination string `json:"destination"`
	Items       int    `json:"items"`
	Message     string `json:"message"`
}

// Run performs a full pass: read, classify, group, check eligibility, compose
// and send. It never fails; a ledger read failure is reported as an error in
// the returned outcome.
func (e *Engine) Run(ctx context.Context) Outcome {
	rec := NewRecorder()
	today := dates.StartOfDay(e.now(), e.loc)

	buckets, ok := e.collect(ctx, rec, today)
	if !ok {
		return rec.Snapshot()
	}

	for _, b := range buckets.List() {
		e.process(ctx, rec, b, today)
	}

	out := rec.Snapshot()
	e.log.Info().
		Int("users_considered", out.UsersConsidered).
		Int("reminders_total", out.RemindersTotal).
		Int("sent", out.Sent).
		Int("skipped", out.Skipped).
		Int("errors", out.Errors).
		Msg("Reminder run finished")
	return out
}

// Preview composes the messages a run would send without checking plans or
// sending anything.
func (e *Engine) Preview(ctx context.Context) ([]Preview, Outcome) {
	rec := NewRecorder()
	today := dates.StartOfDay(e.now(), e.loc)

	buckets, ok := e.collect(ctx, rec, today)
	if !ok {
		return nil, rec.Snapshot()
	}

	var previews []Preview
	for _, b := range buckets.List() {
		msg, ok := Compose(b.Items, today)
		if !ok {
			rec.Skip(ReasonNoItems)
			continue
		}
		previews = append(previews, Preview{
			Recipient:   b.Recipient,
			Destination: b.Destination,
			Items:       len(b.Items),
			Message:     msg,
		})
	}
	return previews, rec.Snapshot()
}

// collect reads the ledger, classifies every open entry and groups the
// accepted ones. It returns false when the ledger could not be read.
func (e *Engine) collect(ctx context.Context, rec *Recorder, today time.Time) (*Buckets, bool) {
	entries, err := e.reader.ReadEntries(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("Failed to read ledger")
		rec.LedgerFailed()
		return nil, false
	}

	open := ledger.Remindable(entries)
	rec.SetRemindersTotal(len(open))

	buckets := NewBuckets()
	for _, entry := range open {
		c := Classify(entry, today, e.loc, e.normalize)
		if !c.Accepted {
			e.log.Debug().
				Str("entry_id", entry.ID).
				Str("reason", string(c.Reason)).
				Msg("Skipping entry")
			rec.Skip(c.Reason)
			continue
		}
		buckets.Add(c)
	}
	rec.SetUsersConsidered(buckets.Len())

	return buckets, true
}

func (e *Engine) process(ctx context.Context, rec *Recorder, b *Bucket, today time.Time) {
	log := e.log.With().Str("recipient", b.Recipient).Logger()

	if reason, ok := e.checkEligibility(ctx, b); !ok {
		log.Info().Str("reason", string(reason)).Msg("Skipping recipient")
		rec.Skip(reason)
		return
	}

	msg, ok := Compose(b.Items, today)
	if !ok {
		log.Info().Str("reason", string(ReasonNoItems)).Msg("Skipping recipient")
		rec.Skip(ReasonNoItems)
		return
	}

	d := e.dispatch(ctx, b, msg)
	if !d.OK() {
		ev := log.Error().Str("channel", string(d.Channel)).Int("items", len(b.Items))
		if d.Err != nil {
			ev = ev.Err(d.Err)
		}
		ev.Msg("Failed to send reminder")
		rec.SendFailed()
		return
	}

	log.Info().Str("channel", string(d.Channel)).Int("items", len(b.Items)).Msg("Reminder sent")
	rec.Delivered(d.Channel)
	e.sendCopyPrompts(ctx, b)
}

// checkEligibility returns the skip reason for recipients that must not be
// messaged. A failing plan lookup counts as an inactive plan.
func (e *Engine) checkEligibility(ctx context.Context, b *Bucket) (Reason, bool) {
	if len(b.Items) == 0 || b.Destination == "" {
		return ReasonNoItems, false
	}

	active, err := e.plans.IsActive(ctx, b.Recipient)
	if err != nil {
		e.log.Warn().Err(err).Str("recipient", b.Recipient).Msg("Plan check failed")
		return ReasonInactivePlan, false
	}
	if !active {
		return ReasonInactivePlan, false
	}
	return "", true
}
