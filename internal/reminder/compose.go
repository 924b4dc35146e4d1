package reminder

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-reminders/internal/dates"
	"github.com/dvloznov/finance-reminders/internal/ledger"
)

const (
	messageHeader     = "🔔 *Lembrete de vencimentos*"
	payableHeader     = "*Contas a pagar*"
	receivableHeader  = "*Contas a receber*"
	overdueQualifier  = " (vencida)"
	dueLabel          = "Vencimento: "
	itemDetailsIndent = "   "
)

// Compose renders the reminder message for a recipient's items. Payables come
// first, each section sorted by due date, with numbering shared across
// sections. It returns false when there is nothing to send.
func Compose(items []Item, today time.Time) (string, bool) {
	var payables, receivables []Item
	for _, it := range items {
		switch it.Kind {
		case ledger.KindPayable:
			payables = append(payables, it)
		case ledger.KindReceivable:
			receivables = append(receivables, it)
		}
	}
	if len(payables) == 0 && len(receivables) == 0 {
		return "", false
	}

	byDue := func(list []Item) {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Due.Before(list[j].Due)
		})
	}
	byDue(payables)
	byDue(receivables)

	n := 0
	var sections []string
	if len(payables) > 0 {
		sections = append(sections, renderSection(payableHeader, payables, today, &n))
	}
	if len(receivables) > 0 {
		sections = append(sections, renderSection(receivableHeader, receivables, today, &n))
	}

	return messageHeader + "\n\n" + strings.Join(sections, "\n\n"), true
}

func renderSection(header string, items []Item, today time.Time, n *int) string {
	lines := []string{header}
	for _, it := range items {
		*n++
		lines = append(lines, renderItem(*n, it, today)...)
	}
	return strings.Join(lines, "\n")
}

func renderItem(n int, it Item, today time.Time) []string {
	due := dueLabel + dates.FormatHuman(it.Due)
	if it.Due.Before(today) {
		due += overdueQualifier
	}

	var title []string
	if it.Entry.Description != "" {
		title = append(title, it.Entry.Description)
	}
	if !it.Entry.Amount.IsZero() {
		title = append(title, FormatBRL(it.Entry.Amount))
	}
	if len(title) == 0 {
		return []string{fmt.Sprintf("%d. %s", n, due)}
	}
	return []string{
		fmt.Sprintf("%d. %s", n, strings.Join(title, " — ")),
		itemDetailsIndent + due,
	}
}

// FormatBRL renders an amount as Brazilian reais, e.g. "R$ 1.234,56".
func FormatBRL(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	whole, frac, _ := strings.Cut(amount.StringFixed(2), ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, b.String(), frac)
}
