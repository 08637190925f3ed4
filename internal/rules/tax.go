package rules

// Tax codes set on invoices that carry VAT.
const (
	TaxAreaVAT          = "AE-VAT"
	TaxExemptionCodeVAT = "VAT-STD-5"
)

// DeriveTax returns the tax area and exemption code for a VAT amount. Both
// are blank unless the amount is positive.
func DeriveTax(vat float64) (area, exemption string) {
	if vat > 0 {
		return TaxAreaVAT, TaxExemptionCodeVAT
	}
	return "", ""
}
