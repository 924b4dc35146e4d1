package reminder

import "sync"

// Reason is a key of the run's decision histogram.
type Reason string

const (
	ReasonInvalidDate    Reason = "invalid_date"
	ReasonFutureDue      Reason = "future_due"
	ReasonInvalidUser    Reason = "invalid_user"
	ReasonInactivePlan   Reason = "inactive_plan"
	ReasonNoItems        Reason = "no_items"
	ReasonSentOK         Reason = "sent_ok"
	ReasonSentTextOK     Reason = "sent_text_ok"
	ReasonSentTemplateOK Reason = "sent_template_ok"
	ReasonSendError      Reason = "send_error"
)

// Reasons lists every histogram key in a fixed order.
var Reasons = []Reason{
	ReasonInvalidDate,
	ReasonFutureDue,
	ReasonInvalidUser,
	ReasonInactivePlan,
	ReasonNoItems,
	ReasonSentOK,
	ReasonSentTextOK,
	ReasonSentTemplateOK,
	ReasonSendError,
}

// Channel is the delivery method used for a recipient.
type Channel string

const (
	ChannelText     Channel = "text"
	ChannelTemplate Channel = "template"
)

// Outcome is the summary of one run.
type Outcome struct {
	UsersConsidered int            `json:"users_considered"`
	RemindersTotal  int            `json:"reminders_total"`
	Sent            int            `json:"sent"`
	Skipped         int            `json:"skipped"`
	Errors          int            `json:"errors"`
	Reasons         map[Reason]int `json:"reasons"`
}

// Degraded reports whether anything in the run failed.
func (o Outcome) Degraded() bool {
	return o.Errors > 0
}

// LedgerUnavailable reports whether the run stopped because the ledger could
// not be read. Such a run sent nothing.
func (o Outcome) LedgerUnavailable() bool {
	return o.Errors > o.Reasons[ReasonSendError]
}

// Recorder accumulates the outcome of a single run. It is safe for
// concurrent use.
type Recorder struct {
	mu  sync.Mutex
	out Outcome
}

// NewRecorder returns an empty recorder with every reason key present.
func NewRecorder() *Recorder {
	reasons := make(map[Reason]int, len(Reasons))
	for _, r := range Reasons {
		reasons[r] = 0
	}
	return &Recorder{out: Outcome{Reasons: reasons}}
}

// SetRemindersTotal records how many open entries entered classification.
func (r *Recorder) SetRemindersTotal(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.RemindersTotal = n
}

// SetUsersConsidered records how many recipient buckets were formed.
func (r *Recorder) SetUsersConsidered(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.UsersConsidered = n
}

// Skip records a rejected entry or an ineligible recipient.
func (r *Recorder) Skip(reason Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.Skipped++
	r.out.Reasons[reason]++
}

// Delivered records a successful send on the given channel.
func (r *Recorder) Delivered(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.Sent++
	r.out.Reasons[ReasonSentOK]++
	if ch == ChannelText {
		r.out.Reasons[ReasonSentTextOK]++
	} else {
		r.out.Reasons[ReasonSentTemplateOK]++
	}
}

// SendFailed records a send that errored or was not delivered.
func (r *Recorder) SendFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.Errors++
	r.out.Reasons[ReasonSendError]++
}

// LedgerFailed records a failed ledger read.
func (r *Recorder) LedgerFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out.Errors++
}

// Snapshot returns a copy of the current outcome.
func (r *Recorder) Snapshot() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.out
	out.Reasons = make(map[Reason]int, len(r.out.Reasons))
	for k, v := range r.out.Reasons {
		out.Reasons[k] = v
	}
	return out
}
