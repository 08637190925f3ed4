package rules

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal reads an amount written with '.' as thousands separator and
// ',' as decimal separator ("1.234,56" -> 1234.56). Currency symbols and
// spaces are stripped. Empty, "null", "undefined" and unparseable input
// yield 0.
//
// Values already written the other way round are misread: "1,234.56"
// becomes 1.23456. That matches the upstream behaviour and is kept as is.
func ParseDecimal(s string) float64 {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "undefined", "n/a":
		return 0
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}

	cleaned := strings.ReplaceAll(b.String(), ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

// ParseDecimalValue applies ParseDecimal to an arbitrary JSON value; nil
// yields 0 and numbers pass through.
func ParseDecimalValue(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		return ParseDecimal(val)
	default:
		return 0
	}
}
