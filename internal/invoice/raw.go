package invoice

// Defaults applied to raw records for fields the vendor did not return.
const (
	DefaultText   = "N/A"
	DefaultParty  = "Unknown"
	DefaultAmount = "0"
)

// RawRecord is the vendor output with labels matched exactly and no business
// normalization applied.
type RawRecord struct {
	InvoiceNumber   string `json:"invoice_number"`
	InvoiceDate     string `json:"invoice_date"`
	DueDate         string `json:"due_date"`
	SellerName      string `json:"seller_name"`
	SellerAddress   string `json:"seller_address"`
	SellerVATNumber string `json:"seller_vat_number"`
	BuyerName       string `json:"buyer_name"`
	InvoiceAmount   string `json:"invoice_amount"`
	Subtotal        string `json:"subtotal"`
	TotalTax        string `json:"total_tax"`
	Currency        string `json:"currency"`
	PONumber        string `json:"po_number"`
}

// WithDefaults returns a copy with every empty field replaced by its default.
func (r RawRecord) WithDefaults() RawRecord {
	def := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	r.InvoiceNumber = def(r.InvoiceNumber, DefaultText)
	r.InvoiceDate = def(r.InvoiceDate, DefaultText)
	r.DueDate = def(r.DueDate, DefaultText)
	r.SellerName = def(r.SellerName, DefaultParty)
	r.SellerAddress = def(r.SellerAddress, DefaultText)
	r.SellerVATNumber = def(r.SellerVATNumber, DefaultText)
	r.BuyerName = def(r.BuyerName, DefaultParty)
	r.InvoiceAmount = def(r.InvoiceAmount, DefaultAmount)
	r.Subtotal = def(r.Subtotal, DefaultAmount)
	r.TotalTax = def(r.TotalTax, DefaultAmount)
	r.Currency = def(r.Currency, DefaultText)
	r.PONumber = def(r.PONumber, DefaultText)
	return r
}

// Set assigns a raw field by its vendor label. It reports false for labels
// that are not raw fields.
func (r *RawRecord) Set(label, value string) bool {
	switch label {
	case "invoice_number":
		r.InvoiceNumber = value
	case "invoice_date":
		r.InvoiceDate = value
	case "due_date":
		r.DueDate = value
	case "seller_name":
		r.SellerName = value
	case "seller_address":
		r.SellerAddress = value
	case "seller_vat_number":
		r.SellerVATNumber = value
	case "buyer_name":
		r.BuyerName = value
	case "invoice_amount":
		r.InvoiceAmount = value
	case "subtotal":
		r.Subtotal = value
	case "total_tax":
		r.TotalTax = value
	case "currency":
		r.Currency = value
	case "po_number":
		r.PONumber = value
	default:
		return false
	}
	return true
}
