// Package dates holds the day-level date helpers used when classifying ledger
// entries: start-of-day truncation in the ledger's timezone, ISO and free-text
// due date parsing, and the dd/mm/yyyy rendering used in reminder messages.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// HumanLayout is the day/month/year layout shown to users.
const HumanLayout = "02/01/2006"

// fallbackToken matches dd/mm/yyyy, dd-mm-yyyy and dd.mm.yy tokens inside free text.
var fallbackToken = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})\b`)

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseISO parses a YYYY-MM-DD date or an RFC 3339 timestamp and returns the
// start of that day in loc.
func ParseISO(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return StartOfDay(ts, loc), true
	}

	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return time.Time{}, false
	}
	return d.In(loc), true
}

// ParseFallbackToken finds the first day/month/year token in text and returns
// the start of that day in loc. Two-digit years are read as 20yy.
func ParseFallbackToken(text string, loc *time.Location) (time.Time, bool) {
	m := fallbackToken.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		year += 2000
	}

	d := civil.Date{Year: year, Month: time.Month(month), Day: day}
	if !d.IsValid() {
		return time.Time{}, false
	}
	return d.In(loc), true
}

// FormatHuman renders t as dd/mm/yyyy.
func FormatHuman(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(HumanLayout)
}

// FormatHumanISO renders an ISO date as dd/mm/yyyy, or "" when iso is empty or invalid.
func FormatHumanISO(iso string) string {
	t, ok := ParseISO(iso, time.UTC)
	if !ok {
		return ""
	}
	return FormatHuman(t)
}
