// Package ledger models the financial obligations read from the external
// ledger and the readers that fetch them from BigQuery, Google Sheets or Notion.
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tags an entry as money owed by the user or owed to the user.
type Kind string

const (
	KindPayable    Kind = "payable"
	KindReceivable Kind = "receivable"
)

// PaymentMethod identifies how an obligation is settled.
type PaymentMethod string

const (
	PaymentPix    PaymentMethod = "pix"
	PaymentBoleto PaymentMethod = "boleto"
	PaymentOther  PaymentMethod = ""
)

// Entry is one payable or receivable row from the ledger.
type Entry struct {
	ID     string
	Kind   Kind
	Status string // lower-cased

	DueDateISO  string // preferred due date source, YYYY-MM-DD
	DueDateText string // free text that may contain a dd/mm/yyyy token

	Recipient    string // raw recipient (phone or WhatsApp ID)
	RecipientAlt string // alternate raw recipient column

	Description string
	Amount      decimal.Decimal

	PaymentMethod PaymentMethod
	PaymentCode   string // Pix key or boleto barcode
}

// RawRow carries the untyped column values of a ledger row as found in the source.
type RawRow struct {
	ID            string
	Type          string
	Status        string
	DueDate       string
	DueDateText   string
	Recipient     string
	RecipientAlt  string
	Description   string
	Amount        string
	PaymentMethod string
	PaymentCode   string
}

var kindAliases = map[string]Kind{
	"payable":         KindPayable,
	"pagar":           KindPayable,
	"a pagar":         KindPayable,
	"conta a pagar":   KindPayable,
	"despesa":         KindPayable,
	"receivable":      KindReceivable,
	"receber":         KindReceivable,
	"a receber":       KindReceivable,
	"conta a receber": KindReceivable,
	"receita":         KindReceivable,
}

// DeriveKind maps a raw type column to a Kind. It returns false for rows that
// are neither payables nor receivables.
func DeriveKind(rawType string) (Kind, bool) {
	k, ok := kindAliases[normalizeText(rawType)]
	return k, ok
}

// ParsePaymentMethod maps raw payment method text to a PaymentMethod.
func ParsePaymentMethod(raw string) PaymentMethod {
	switch normalizeText(raw) {
	case "pix":
		return PaymentPix
	case "boleto", "boleto bancario", "boleto bancário":
		return PaymentBoleto
	default:
		return PaymentOther
	}
}

// ParseAmount reads amounts written as "1234.56", "1.234,56" or "R$ 1.234,56".
// Unparsable values yield zero.
func ParseAmount(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FromRaw converts a source row into an Entry. The second result is false when
// the row's type is not a payable or receivable.
func FromRaw(r RawRow) (Entry, bool) {
	kind, ok := DeriveKind(r.Type)
	if !ok {
		return Entry{}, false
	}
	return Entry{
		ID:            strings.TrimSpace(r.ID),
		Kind:          kind,
		Status:        normalizeText(r.Status),
		DueDateISO:    strings.TrimSpace(r.DueDate),
		DueDateText:   strings.TrimSpace(r.DueDateText),
		Recipient:     strings.TrimSpace(r.Recipient),
		RecipientAlt:  strings.TrimSpace(r.RecipientAlt),
		Description:   strings.TrimSpace(r.Description),
		Amount:        ParseAmount(r.Amount),
		PaymentMethod: ParsePaymentMethod(r.PaymentMethod),
		PaymentCode:   strings.TrimSpace(r.PaymentCode),
	}, true
}

var settledStatuses = map[Kind]map[string]bool{
	KindPayable: {"paid": true, "pago": true, "paga": true},
	KindReceivable: {
		"paid": true, "pago": true, "paga": true,
		"received": true, "recebido": true, "recebida": true,
	},
}

// Settled reports whether the entry's status closes it for its kind.
func (e Entry) Settled() bool {
	return settledStatuses[e.Kind][e.Status]
}

// Remindable keeps the entries that are still open.
func Remindable(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Kind != KindPayable && e.Kind != KindReceivable {
			continue
		}
		if e.Settled() {
			continue
		}
		out = append(out, e)
	}
	return out
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
