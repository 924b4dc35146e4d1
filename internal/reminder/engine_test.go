package reminder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/finance-reminders/internal/ledger"
	"github.com/dvloznov/finance-reminders/internal/logger"
)

type mockPlanChecker struct {
	IsActiveFunc func(ctx context.Context, userID string) (bool, error)
}

func (m *mockPlanChecker) IsActive(ctx context.Context, userID string) (bool, error) {
	if m.IsActiveFunc == nil {
		return true, nil
	}
	return m.IsActiveFunc(ctx, userID)
}

type mockNameResolver struct {
	names map[string]string
}

func (m *mockNameResolver) FirstName(ctx context.Context, userID string) string {
	return m.names[userID]
}

type mockInteractionTracker struct {
	recent map[string]bool
}

func (m *mockInteractionTracker) HasRecentInteraction(ctx context.Context, userID string) bool {
	return m.recent[userID]
}

type sentMessage struct {
	kind      string
	to        string
	body      string
	userID    string
	firstName string
	label     string
	code      string
	button    string
}

type mockSender struct {
	SendTextFunc       func(ctx context.Context, to, body string) (bool, error)
	SendTemplateFunc   func(ctx context.Context, to, userID, firstName string) (bool, error)
	SendCopyPromptFunc func(ctx context.Context, to, label, code, buttonText string) error

	sent []sentMessage
}

func (m *mockSender) SendText(ctx context.Context, to, body string) (bool, error) {
	m.sent = append(m.sent, sentMessage{kind: "text", to: to, body: body})
	if m.SendTextFunc != nil {
		return m.SendTextFunc(ctx, to, body)
	}
	return true, nil
}

func (m *mockSender) SendTemplate(ctx context.Context, to, userID, firstName string) (bool, error) {
	m.sent = append(m.sent, sentMessage{kind: "template", to: to, userID: userID, firstName: firstName})
	if m.SendTemplateFunc != nil {
		return m.SendTemplateFunc(ctx, to, userID, firstName)
	}
	return true, nil
}

func (m *mockSender) SendCopyPrompt(ctx context.Context, to, label, code, buttonText string) error {
	m.sent = append(m.sent, sentMessage{kind: "copy", to: to, label: label, code: code, button: buttonText})
	if m.SendCopyPromptFunc != nil {
		return m.SendCopyPromptFunc(ctx, to, label, code, buttonText)
	}
	return nil
}

func (m *mockSender) count(kind string) int {
	n := 0
	for _, s := range m.sent {
		if s.kind == kind {
			n++
		}
	}
	return n
}

type engineFixture struct {
	entries      []ledger.Entry
	readErr      error
	plans        *mockPlanChecker
	names        *mockNameResolver
	interactions *mockInteractionTracker
	sender       *mockSender
}

func newFixture(entries ...ledger.Entry) *engineFixture {
	return &engineFixture{
		entries:      entries,
		plans:        &mockPlanChecker{},
		names:        &mockNameResolver{names: map[string]string{}},
		interactions: &mockInteractionTracker{recent: map[string]bool{}},
		sender:       &mockSender{},
	}
}

func (f *engineFixture) engine() *Engine {
	return NewEngine(Dependencies{
		Reader: ledger.ReaderFunc(func(ctx context.Context) ([]ledger.Entry, error) {
			return f.entries, f.readErr
		}),
		Plans:        f.plans,
		Names:        f.names,
		Interactions: f.interactions,
		Sender:       f.sender,
		Normalize:    digitsOnly,
		Location:     time.UTC,
		Now:          func() time.Time { return testToday.Add(9 * time.Hour) },
		Logger:       logger.NewWithWriter(io.Discard),
	})
}

func payable(id, due, recipient string) ledger.Entry {
	return ledger.Entry{ID: id, Kind: ledger.KindPayable, Status: "pendente", DueDateISO: due, Recipient: recipient, Description: "Conta " + id}
}

func receivable(id, due, recipient string) ledger.Entry {
	return ledger.Entry{ID: id, Kind: ledger.KindReceivable, Status: "pendente", DueDateISO: due, Recipient: recipient, Description: "Receber " + id}
}

func assertCounts(t *testing.T, out Outcome, sent, skipped, errs int) {
	t.Helper()
	if out.Sent != sent || out.Skipped != skipped || out.Errors != errs {
		t.Errorf("outcome = {sent:%d skipped:%d errors:%d}, want {sent:%d skipped:%d errors:%d}",
			out.Sent, out.Skipped, out.Errors, sent, skipped, errs)
	}
}

func TestEngineRun_TemplateForOverduePayable(t *testing.T) {
	f := newFixture(payable("e1", "2026-10-18", "5511987654321"))
	f.names.names["5511987654321"] = "Ana"

	out := f.engine().Run(context.Background())

	assertCounts(t, out, 1, 0, 0)
	if out.Reasons[ReasonSentTemplateOK] != 1 || out.Reasons[ReasonSentOK] != 1 {
		t.Errorf("reasons = %v, want sent_ok=1 sent_template_ok=1", out.Reasons)
	}
	if out.Reasons[ReasonSentTextOK] != 0 {
		t.Errorf("sent_text_ok = %d, want 0", out.Reasons[ReasonSentTextOK])
	}
	if out.UsersConsidered != 1 || out.RemindersTotal != 1 {
		t.Errorf("users=%d total=%d, want 1/1", out.UsersConsidered, out.RemindersTotal)
	}

	if len(f.sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sender.sent))
	}
	msg := f.sender.sent[0]
	if msg.kind != "template" || msg.to != "5511987654321" || msg.userID != "5511987654321" || msg.firstName != "Ana" {
		t.Errorf("template message = %+v", msg)
	}
}

func TestEngineRun_TextWhenRecentInteraction(t *testing.T) {
	f := newFixture(payable("e1", "2026-10-19", "5511"))
	f.interactions.recent["5511"] = true

	out := f.engine().Run(context.Background())

	assertCounts(t, out, 1, 0, 0)
	if out.Reasons[ReasonSentTextOK] != 1 || out.Reasons[ReasonSentTemplateOK] != 0 {
		t.Errorf("reasons = %v, want only sent_text_ok", out.Reasons)
	}
	if f.sender.count("text") != 1 {
		t.Fatalf("text sends = %d, want 1", f.sender.count("text"))
	}
	if body := f.sender.sent[0].body; !strings.Contains(body, "Conta e1") || strings.Contains(body, "(vencida)") {
		t.Errorf("text body = %q", body)
	}
}

func TestEngineRun_LedgerFailure(t *testing.T) {
	f := newFixture()
	f.readErr = fmt.Errorf("ReadEntries: %w", ledger.ErrLedgerUnavailable)

	out := f.engine().Run(context.Background())

	if out.Errors < 1 {
		t.Errorf("Errors = %d, want >= 1", out.Errors)
	}
	if out.Sent != 0 {
		t.Errorf("Sent = %d, want 0", out.Sent)
	}
	if len(f.sender.sent) != 0 {
		t.Errorf("sent %d messages after a ledger failure", len(f.sender.sent))
	}
	if len(out.Reasons) != len(Reasons) {
		t.Errorf("Reasons has %d keys, want %d", len(out.Reasons), len(Reasons))
	}
}

func TestEngineRun_SkipReasons(t *testing.T) {
	f := newFixture(
		payable("bad-date", "", "5511"),
		payable("future", "2026-10-25", "5511"),
		payable("no-user", "2026-10-18", ""),
		payable("inactive", "2026-10-18", "5522"),
		ledger.Entry{ID: "paid", Kind: ledger.KindPayable, Status: "pago", DueDateISO: "2026-10-18", Recipient: "5511"},
		ledger.Entry{ID: "received", Kind: ledger.KindReceivable, Status: "recebido", DueDateISO: "2026-10-18", Recipient: "5511"},
	)
	f.plans.IsActiveFunc = func(ctx context.Context, userID string) (bool, error) {
		return false, nil
	}

	out := f.engine().Run(context.Background())

	assertCounts(t, out, 0, 4, 0)
	if out.RemindersTotal != 4 {
		t.Errorf("RemindersTotal = %d, want 4 (settled entries excluded)", out.RemindersTotal)
	}
	if out.UsersConsidered != 1 {
		t.Errorf("UsersConsidered = %d, want 1", out.UsersConsidered)
	}
	want := map[Reason]int{
		ReasonInvalidDate:  1,
		ReasonFutureDue:    1,
		ReasonInvalidUser:  1,
		ReasonInactivePlan: 1,
	}
	for reason, n := range want {
		if out.Reasons[reason] != n {
			t.Errorf("reasons[%s] = %d, want %d", reason, out.Reasons[reason], n)
		}
	}
}

func TestEngineRun_PlanCheckErrorIsInactive(t *testing.T) {
	f := newFixture(payable("e1", "2026-10-18", "5511"))
	f.plans.IsActiveFunc = func(ctx context.Context, userID string) (bool, error) {
		return false, errors.New("bigquery timeout")
	}

	out := f.engine().Run(context.Background())

	assertCounts(t, out, 0, 1, 0)
	if out.Reasons[ReasonInactivePlan] != 1 {
		t.Errorf("inactive_plan = %d, want 1", out.Reasons[ReasonInactivePlan])
	}
	if len(f.sender.sent) != 0 {
		t.Errorf("sent %d messages to an ineligible recipient", len(f.sender.sent))
	}
}

func TestEngineRun_SendErrorContinues(t *testing.T) {
	f := newFixture(
		payable("e1", "2026-10-18", "1111"),
		payable("e2", "2026-10-18", "2222"),
		payable("e3", "2026-10-18", "3333"),
	)
	f.sender.SendTemplateFunc = func(ctx context.Context, to, userID, firstName string) (bool, error) {
		switch userID {
		case "1111":
			return false, errors.New("whatsapp: 500")
		case "2222":
			return false, nil
		}
		return true, nil
	}

	out := f.engine().Run(context.Background())

	assertCounts(t, out, 1, 0, 2)
	if out.Reasons[ReasonSendError] != 2 {
		t.Errorf("send_error = %d, want 2 (one per failed recipient)", out.Reasons[ReasonSendError])
	}
	if f.sender.count("template") != 3 {
		t.Errorf("template sends = %d, want 3", f.sender.count("template"))
	}
}

func TestEngineRun_SenderPanicIsSendError(t *testing.T) {
	f := newFixture(payable("e1", "2026-10-18", "1111"), payable("e2", "2026-10-18", "2222"))
	f.sender.SendTemplateFunc = func(ctx context.Context, to, userID, firstName string) (bool, error) {
		if userID == "1111" {
			panic("nil response")
		}
		return true, nil
	}

	out := f.engine().Run(context.Background())

	assertCounts(t, out, 1, 0, 1)
}

func TestEngineRun_CopyPrompts(t *testing.T) {
	pix := payable("pix", "2026-10-18", "5511")
	pix.PaymentMethod = ledger.PaymentPix
	pix.PaymentCode = "chave@pix.com"

	noCode := payable("boleto-empty", "2026-10-17", "5511")
	noCode.PaymentMethod = ledger.PaymentBoleto

	boleto := receivable("boleto", "2026-10-16", "5511")
	boleto.PaymentMethod = ledger.PaymentBoleto
	boleto.PaymentCode = "23790.12345"

	other := payable("other", "2026-10-15", "5511")
	other.PaymentCode = "ignored"

	f := newFixture(pix, noCode, boleto, other)
	f.sender.SendCopyPromptFunc = func(ctx context.Context, to, label, code, buttonText string) error {
		return errors.New("prompt failed")
	}

	out := f.engine().Run(context.Background())

	assertCounts(t, out, 1, 0, 0)

	var prompts []sentMessage
	for _, s := range f.sender.sent {
		if s.kind == "copy" {
			prompts = append(prompts, s)
		}
	}
	if len(prompts) != 2 {
		t.Fatalf("copy prompts = %d, want 2", len(prompts))
	}
	if prompts[0].label != "Chave Pix" || prompts[0].code != "chave@pix.com" {
		t.Errorf("first prompt = %+v", prompts[0])
	}
	if prompts[1].label != "Código de barras" || prompts[1].code != "23790.12345" {
		t.Errorf("second prompt = %+v", prompts[1])
	}
	if prompts[0].button != "Copiar código" || prompts[0].to != "5511" {
		t.Errorf("prompt button/destination = %q/%q", prompts[0].button, prompts[0].to)
	}
	if f.sender.sent[0].kind != "template" {
		t.Errorf("first message kind = %q, want the reminder before any prompt", f.sender.sent[0].kind)
	}
}

func TestEngineRun_CopyPromptPanicIsContained(t *testing.T) {
	first := payable("pix", "2026-10-18", "1111")
	first.PaymentMethod = ledger.PaymentPix
	first.PaymentCode = "chave-1"

	second := payable("boleto", "2026-10-18", "1111")
	second.PaymentMethod = ledger.PaymentBoleto
	second.PaymentCode = "23790.1"

	f := newFixture(first, second, payable("e3", "2026-10-18", "2222"))
	f.sender.SendCopyPromptFunc = func(ctx context.Context, to, label, code, buttonText string) error {
		if code == "chave-1" {
			panic("nil response")
		}
		return nil
	}

	out := f.engine().Run(context.Background())

	assertCounts(t, out, 2, 0, 0)
	if f.sender.count("copy") != 2 {
		t.Errorf("copy prompts = %d, want 2 (the panic must not stop the next prompt)", f.sender.count("copy"))
	}
	if f.sender.count("template") != 2 {
		t.Errorf("template sends = %d, want 2", f.sender.count("template"))
	}
}

func TestEngineRun_NoCopyPromptsAfterFailedSend(t *testing.T) {
	pix := payable("pix", "2026-10-18", "5511")
	pix.PaymentMethod = ledger.PaymentPix
	pix.PaymentCode = "chave"

	f := newFixture(pix)
	f.sender.SendTemplateFunc = func(ctx context.Context, to, userID, firstName string) (bool, error) {
		return false, nil
	}

	f.engine().Run(context.Background())

	if f.sender.count("copy") != 0 {
		t.Errorf("copy prompts = %d, want 0", f.sender.count("copy"))
	}
}

func TestEngineRun_GroupsPerRecipient(t *testing.T) {
	f := newFixture(
		payable("a1", "2026-10-18", "+55 (11) 1111"),
		receivable("b1", "2026-10-19", "552222"),
		payable("a2", "2026-10-10", "55111111"),
	)

	out := f.engine().Run(context.Background())

	assertCounts(t, out, 2, 0, 0)
	if out.UsersConsidered != 2 || out.RemindersTotal != 3 {
		t.Errorf("users=%d total=%d, want 2/3", out.UsersConsidered, out.RemindersTotal)
	}
	if f.sender.sent[0].to != "+55 (11) 1111" {
		t.Errorf("first destination = %q, want the first raw recipient seen", f.sender.sent[0].to)
	}
}

func TestEnginePreview(t *testing.T) {
	f := newFixture(
		payable("e1", "2026-10-18", "5511"),
		payable("future", "2026-11-01", "5511"),
		receivable("e2", "2026-10-19", "5522"),
	)
	f.plans.IsActiveFunc = func(ctx context.Context, userID string) (bool, error) {
		t.Error("Preview() checked a plan")
		return false, nil
	}

	previews, out := f.engine().Preview(context.Background())

	if len(previews) != 2 {
		t.Fatalf("Preview() returned %d previews, want 2", len(previews))
	}
	if previews[0].Recipient != "5511" || previews[0].Items != 1 {
		t.Errorf("first preview = %+v", previews[0])
	}
	if !strings.Contains(previews[0].Message, "(vencida)") {
		t.Errorf("first preview message = %q, want overdue marker", previews[0].Message)
	}
	if out.Reasons[ReasonFutureDue] != 1 || out.Sent != 0 {
		t.Errorf("preview outcome = %+v", out)
	}
	if len(f.sender.sent) != 0 {
		t.Errorf("Preview() sent %d messages", len(f.sender.sent))
	}
}

func TestEngine_DefaultNormalizer(t *testing.T) {
	e := NewEngine(Dependencies{
		Reader: ledger.ReaderFunc(func(ctx context.Context) ([]ledger.Entry, error) {
			return []ledger.Entry{payable("e1", "2026-10-18", "(11) 98765-4321")}, nil
		}),
		Plans:        &mockPlanChecker{},
		Interactions: &mockInteractionTracker{},
		Sender:       &mockSender{},
		Location:     time.UTC,
		Now:          func() time.Time { return testToday },
		Logger:       logger.NewWithWriter(io.Discard),
	})

	previews, _ := e.Preview(context.Background())
	if len(previews) != 1 || previews[0].Recipient != "5511987654321" {
		t.Errorf("previews = %+v, want recipient 5511987654321", previews)
	}
}
