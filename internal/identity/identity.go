// Package identity normalizes the raw recipient values found in ledger rows
// into the canonical user identity used for grouping, plan lookups and
// message delivery: E.164 digits without the leading plus sign.
package identity

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used for numbers written without a country code.
const DefaultRegion = "BR"

// Normalize returns the E.164 digits of raw, or "" when raw is empty or not a
// valid phone number. WhatsApp JIDs ("5511...@s.whatsapp.net") are accepted.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '@'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return ""
	}

	// Bare digits that already carry the country code ("5511...") would be
	// read as a national number otherwise.
	if isDigits(raw) && strings.HasPrefix(raw, "55") && len(raw) >= 12 {
		raw = "+" + raw
	}

	num, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return ""
	}
	return strings.TrimPrefix(phonenumbers.Format(num, phonenumbers.E164), "+")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
