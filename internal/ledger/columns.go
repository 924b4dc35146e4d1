package ledger

import "strings"

type column int

const (
	colUnknown column = iota
	colID
	colType
	colStatus
	colDueDate
	colDueDateText
	colRecipient
	colRecipientAlt
	colDescription
	colAmount
	colPaymentMethod
	colPaymentCode
)

// columnAliases maps normalized spreadsheet headers and Notion property names
// to RawRow fields.
var columnAliases = map[string]column{
	"id":                  colID,
	"entry id":            colID,
	"tipo":                colType,
	"type":                colType,
	"entry type":          colType,
	"status":              colStatus,
	"situacao":            colStatus,
	"situação":            colStatus,
	"vencimento":          colDueDate,
	"data de vencimento":  colDueDate,
	"due date":            colDueDate,
	"vencimento texto":    colDueDateText,
	"due date text":       colDueDateText,
	"observacao":          colDueDateText,
	"observação":          colDueDateText,
	"whatsapp":            colRecipient,
	"recipient":           colRecipient,
	"telefone":            colRecipientAlt,
	"celular":             colRecipientAlt,
	"phone":               colRecipientAlt,
	"descricao":           colDescription,
	"descrição":           colDescription,
	"description":         colDescription,
	"valor":               colAmount,
	"amount":              colAmount,
	"forma de pagamento":  colPaymentMethod,
	"payment method":      colPaymentMethod,
	"codigo":              colPaymentCode,
	"código":              colPaymentCode,
	"codigo de pagamento": colPaymentCode,
	"código de pagamento": colPaymentCode,
	"payment code":        colPaymentCode,
}

func lookupColumn(header string) column {
	h := normalizeText(strings.ReplaceAll(header, "_", " "))
	return columnAliases[h]
}

func (r *RawRow) set(c column, value string) {
	switch c {
	case colID:
		r.ID = value
	case colType:
		r.Type = value
	case colStatus:
		r.Status = value
	case colDueDate:
		r.DueDate = value
	case colDueDateText:
		r.DueDateText = value
	case colRecipient:
		r.Recipient = value
	case colRecipientAlt:
		r.RecipientAlt = value
	case colDescription:
		r.Description = value
	case colAmount:
		r.Amount = value
	case colPaymentMethod:
		r.PaymentMethod = value
	case colPaymentCode:
		r.PaymentCode = value
	}
}
