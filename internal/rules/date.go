package rules

import (
	"strings"
	"time"
)

// DateLayout is the output format of every normalized date.
const DateLayout = "02/01/2006"

var inputLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"02.01.2006",
	"02-01-2006",
	"2 January 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"02 Jan 2006",
	"2006/01/02",
}

// FormatDate renders t as dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate tries the known invoice date layouts in order. Day-first is
// assumed for ambiguous numeric dates.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate reformats s as dd/mm/yyyy, returning it unchanged when no
// layout matches.
func NormalizeDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return strings.TrimSpace(s)
	}
	return FormatDate(t)
}
