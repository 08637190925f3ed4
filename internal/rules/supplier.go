// Package rules holds the business normalization applied to extracted
// invoices: supplier lookup, number and date formats, and tax fields.
package rules

import "strings"

// UnknownSupplier is returned when no supplier rule matches.
const UnknownSupplier = 999999

var (
	uaeNames = []string{"uae", "united arab emirates", "ae"}
	ksaNames = []string{"saudi", "ksa", "sa"}
)

// ResolveSupplier maps a (source, country, brand) triple to a payables
// supplier number. Inputs are compared lower-cased and trimmed; the first
// matching rule wins.
func ResolveSupplier(source, country, brand string) int {
	src := normalize(source)
	ctry := normalize(country)
	brd := normalize(brand)

	switch {
	case strings.Contains(src, "procter"):
		switch {
		case matchesCountry(ctry, uaeNames):
			switch {
			case strings.Contains(brd, "gillette"):
				return 100101
			case strings.Contains(brd, "pampers"):
				return 100102
			case strings.Contains(brd, "ariel"):
				return 100103
			default:
				return 100100
			}
		case matchesCountry(ctry, ksaNames):
			return 100200
		default:
			return 100000
		}
	case strings.Contains(src, "nutricia"):
		return 200100
	case strings.Contains(src, "oatly"):
		return 300100
	default:
		return UnknownSupplier
	}
}

// matchesCountry compares short codes exactly and longer names by substring,
// so "sa" does not match "usa".
func matchesCountry(country string, names []string) bool {
	for _, n := range names {
		if len(n) <= 3 {
			if country == n {
				return true
			}
			continue
		}
		if strings.Contains(country, n) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
