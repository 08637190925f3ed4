package rules

import (
	"regexp"
	"testing"
	"time"

	"github.com/dvloznov/invoice-intake/internal/invoice"
)

func TestResolveSupplier(t *testing.T) {
	tests := []struct {
		source, country, brand string
		want                   int
	}{
		{"Procter & Gamble Gulf", "UAE", "Gillette", 100101},
		{"  PROCTER & GAMBLE ", "United Arab Emirates", "pampers baby", 100102},
		{"Procter & Gamble", "ae", "Ariel", 100103},
		{"Procter & Gamble", "UAE", "Oral-B", 100100},
		{"Procter & Gamble", "Saudi Arabia", "Gillette", 100200},
		{"Procter & Gamble", "USA", "Gillette", 100000},
		{"Nutricia Middle East", "UAE", "", 200100},
		{"Oatly AB", "", "", 300100},
		{"Acme Trading", "UAE", "Gillette", UnknownSupplier},
		{"", "", "", UnknownSupplier},
	}

	for _, tt := range tests {
		got := ResolveSupplier(tt.source, tt.country, tt.brand)
		if got != tt.want {
			t.Errorf("ResolveSupplier(%q, %q, %q) = %d, want %d", tt.source, tt.country, tt.brand, got, tt.want)
		}
		if again := ResolveSupplier(tt.source, tt.country, tt.brand); again != got {
			t.Errorf("ResolveSupplier not deterministic for %q: %d then %d", tt.source, got, again)
		}
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1.234,56", 1234.56},
		{"AED 12.500,00", 12500},
		{"99,9", 99.9},
		{"-5,25", -5.25},
		{"1000", 1000},
		{"", 0},
		{"null", 0},
		{"undefined", 0},
		{"abc", 0},
		// Opposite convention is misread on purpose.
		{"1,234.56", 1.23456},
	}
	for _, tt := range tests {
		if got := ParseDecimal(tt.in); got != tt.want {
			t.Errorf("ParseDecimal(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDecimalValue(t *testing.T) {
	if got := ParseDecimalValue(nil); got != 0 {
		t.Errorf("ParseDecimalValue(nil) = %v, want 0", got)
	}
	if got := ParseDecimalValue(12.5); got != 12.5 {
		t.Errorf("ParseDecimalValue(12.5) = %v", got)
	}
	if got := ParseDecimalValue("1.234,56"); got != 1234.56 {
		t.Errorf("ParseDecimalValue(string) = %v", got)
	}
}

func TestFormatDate(t *testing.T) {
	fixed := regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	dates := []time.Time{
		time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC),
		time.Date(999, 2, 3, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		got := FormatDate(d)
		if !fixed.MatchString(got) {
			t.Errorf("FormatDate(%v) = %q, want dd/mm/yyyy", d, got)
		}
	}
	if got := FormatDate(dates[0]); got != "05/01/2025" {
		t.Errorf("FormatDate = %q, want 05/01/2025", got)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2025-03-07", "07/03/2025"},
		{"7/3/2025", "07/03/2025"},
		{"07.03.2025", "07/03/2025"},
		{"7 March 2025", "07/03/2025"},
		{"Mar 7, 2025", "07/03/2025"},
		{"not a date", "not a date"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeDate(tt.in); got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeriveTax(t *testing.T) {
	area, code := DeriveTax(5.5)
	if area != TaxAreaVAT || code != TaxExemptionCodeVAT {
		t.Errorf("DeriveTax(5.5) = %q, %q", area, code)
	}
	for _, vat := range []float64{0, -1} {
		area, code := DeriveTax(vat)
		if area != "" || code != "" {
			t.Errorf("DeriveTax(%v) = %q, %q, want blanks", vat, area, code)
		}
	}
}

func TestTransform(t *testing.T) {
	rec := Transform(map[string]string{
		invoice.FieldInvoiceNumber: "INV-77",
		invoice.FieldInvoiceDate:   "2025-02-01",
		invoice.FieldSellerName:    "Procter & Gamble Gulf FZE",
		invoice.FieldCountry:       "UAE",
		invoice.FieldBrand:         "Gillette",
		invoice.FieldTotalAmount:   "1.050,00",
		invoice.FieldVATAmount:     "50,00",
		invoice.FieldCurrency:      "aed",
	})

	checks := map[string]any{
		invoice.FieldInvoiceNumber:    "INV-77",
		invoice.FieldInvoiceDate:      "01/02/2025",
		invoice.FieldSource:           "Procter & Gamble Gulf FZE",
		invoice.FieldSupplierNumber:   100101,
		invoice.FieldTotalAmount:      1050.0,
		invoice.FieldVATAmount:        50.0,
		invoice.FieldNetAmount:        0.0,
		invoice.FieldCurrency:         "AED",
		invoice.FieldTaxArea:          TaxAreaVAT,
		invoice.FieldTaxExemptionCode: TaxExemptionCodeVAT,
	}
	for field, want := range checks {
		if rec[field] != want {
			t.Errorf("%s = %#v, want %#v", field, rec[field], want)
		}
	}
}
