package extraction

import (
	"strings"

	"github.com/dvloznov/invoice-intake/internal/invoice"
)

// MatchMode says how a rule compares a vendor label with its keywords.
type MatchMode int

const (
	// MatchExact requires the trimmed label to equal a keyword.
	MatchExact MatchMode = iota
	// MatchContains requires the lower-cased label to contain a keyword.
	MatchContains
)

// LabelRule maps vendor labels onto one target field.
type LabelRule struct {
	Field    string
	Mode     MatchMode
	Keywords []string
}

func (r LabelRule) matches(label string) bool {
	switch r.Mode {
	case MatchContains:
		l := strings.ToLower(label)
		for _, kw := range r.Keywords {
			if strings.Contains(l, kw) {
				return true
			}
		}
	default:
		for _, kw := range r.Keywords {
			if label == kw {
				return true
			}
		}
	}
	return false
}

// Policy is an ordered rule table. The first rule matching a label decides
// its field.
type Policy struct {
	Name  string
	Rules []LabelRule
}

// FieldFor returns the target field of a vendor label.
func (p Policy) FieldFor(label string) (string, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", false
	}
	for _, rule := range p.Rules {
		if rule.matches(label) {
			return rule.Field, true
		}
	}
	return "", false
}

func exact(field string) LabelRule {
	return LabelRule{Field: field, Mode: MatchExact, Keywords: []string{field}}
}

// RawPolicy maps vendor labels one-to-one onto raw record fields.
var RawPolicy = Policy{
	Name: "raw",
	Rules: []LabelRule{
		exact("invoice_number"),
		exact("invoice_date"),
		exact("due_date"),
		exact("seller_name"),
		exact("seller_address"),
		exact("seller_vat_number"),
		exact("buyer_name"),
		exact("invoice_amount"),
		exact("subtotal"),
		exact("total_tax"),
		exact("currency"),
		exact("po_number"),
	},
}

// BusinessPolicy maps vendor labels onto business fields by keyword. Order
// matters: the VAT number rule sits before the VAT amount rule, and the tax
// and subtotal rules sit before the generic "total" rule.
var BusinessPolicy = Policy{
	Name: "business",
	Rules: []LabelRule{
		{Field: invoice.FieldInvoiceNumber, Mode: MatchContains, Keywords: []string{"invoice_number", "invoice_no", "invoice_id", "invoice number"}},
		{Field: invoice.FieldInvoiceDate, Mode: MatchContains, Keywords: []string{"invoice_date", "date_of_issue", "issue_date", "invoice date"}},
		{Field: invoice.FieldDueDate, Mode: MatchContains, Keywords: []string{"due_date", "due date", "payment_due"}},
		{Field: invoice.FieldPONumber, Mode: MatchContains, Keywords: []string{"po_number", "purchase_order"}},
		{Field: invoice.FieldSellerVATNumber, Mode: MatchContains, Keywords: []string{"vat_number", "vat_no", "tax_registration"}},
		{Field: invoice.FieldSellerName, Mode: MatchContains, Keywords: []string{"seller_name", "supplier_name", "vendor_name", "supplier", "vendor"}},
		{Field: invoice.FieldCountry, Mode: MatchContains, Keywords: []string{"country"}},
		{Field: invoice.FieldBrand, Mode: MatchContains, Keywords: []string{"brand"}},
		{Field: invoice.FieldVATAmount, Mode: MatchContains, Keywords: []string{"total_tax", "vat_amount", "tax_amount", "vat"}},
		{Field: invoice.FieldNetAmount, Mode: MatchContains, Keywords: []string{"subtotal", "net_amount", "net_total"}},
		{Field: invoice.FieldTotalAmount, Mode: MatchContains, Keywords: []string{"invoice_amount", "total_amount", "amount_due", "grand_total", "total"}},
		{Field: invoice.FieldCurrency, Mode: MatchContains, Keywords: []string{"currency"}},
	},
}
