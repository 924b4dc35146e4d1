package reminder

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-reminders/internal/ledger"
)

const copyButtonText = "Copiar código"

var copyLabels = map[ledger.PaymentMethod]string{
	ledger.PaymentPix:    "Chave Pix",
	ledger.PaymentBoleto: "Código de barras",
}

// Delivery is the result of sending a recipient's message.
type Delivery struct {
	Channel   Channel
	Delivered bool
	Err       error
}

// OK reports whether the message was delivered without error.
func (d Delivery) OK() bool {
	return d.Err == nil && d.Delivered
}

// dispatch sends the message as free text when the recipient interacted
// recently and as the approved template otherwise.
func (e *Engine) dispatch(ctx context.Context, b *Bucket, message string) (d Delivery) {
	d.Channel = ChannelTemplate
	if e.interactions.HasRecentInteraction(ctx, b.Recipient) {
		d.Channel = ChannelText
	}

	defer func() {
		if r := recover(); r != nil {
			d.Delivered = false
			d.Err = fmt.Errorf("dispatch: sender panicked: %v", r)
		}
	}()

	switch d.Channel {
	case ChannelText:
		d.Delivered, d.Err = e.sender.SendText(ctx, b.Destination, message)
	default:
		firstName := ""
		if e.names != nil {
			firstName = e.names.FirstName(ctx, b.Recipient)
		}
		d.Delivered, d.Err = e.sender.SendTemplate(ctx, b.Destination, b.Recipient, firstName)
	}
	return d
}

// sendCopyPrompts sends one copy prompt per item carrying a Pix key or boleto
// barcode, in item order. Failures are logged only.
func (e *Engine) sendCopyPrompts(ctx context.Context, b *Bucket) {
	for _, it := range b.Items {
		label, ok := copyLabels[it.Entry.PaymentMethod]
		if !ok || it.Entry.PaymentCode == "" {
			continue
		}
		if err := e.sendCopyPrompt(ctx, b.Destination, label, it.Entry.PaymentCode); err != nil {
			e.log.Warn().
				Err(err).
				Str("recipient", b.Recipient).
				Str("entry_id", it.Entry.ID).
				Str("payment_method", string(it.Entry.PaymentMethod)).
				Msg("Failed to send copy prompt")
		}
	}
}

func (e *Engine) sendCopyPrompt(ctx context.Context, to, label, code string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sendCopyPrompt: sender panicked: %v", r)
		}
	}()
	return e.sender.SendCopyPrompt(ctx, to, label, code, copyButtonText)
}
