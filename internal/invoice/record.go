// Package invoice holds the invoice shapes that move through extraction,
// review and booking.
package invoice

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Field names of a business invoice record.
const (
	FieldInvoiceNumber    = "invoice_number"
	FieldInvoiceDate      = "invoice_date"
	FieldDueDate          = "due_date"
	FieldSource           = "source"
	FieldSellerName       = "seller_name"
	FieldSellerVATNumber  = "seller_vat_number"
	FieldCountry          = "country"
	FieldBrand            = "brand"
	FieldSupplierNumber   = "supplier_number"
	FieldTotalAmount      = "total_amount"
	FieldNetAmount        = "net_amount"
	FieldVATAmount        = "vat_amount"
	FieldCurrency         = "currency"
	FieldTaxArea          = "tax_area"
	FieldTaxExemptionCode = "tax_exemption_code"
	FieldPONumber         = "po_number"
	FieldExchangeRate     = "exchange_rate"
	FieldAmountInBase     = "amount_in_base"
	FieldBaseCurrency     = "base_currency"
	FieldRateAsOf         = "rate_as_of"
)

// Record is a flat invoice record. Fields are filled in incrementally by
// extraction, transformation, user edits and enrichment, so every field is
// optional and values are kept exactly as written (strings, float64 or
// json.Number).
type Record map[string]any

// String returns the field rendered as a trimmed string, or "" when absent.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Number returns the field as a float64. ok is false when the field is
// absent, empty, not numeric or not finite. Numeric strings are accepted.
func (r Record) Number(field string) (float64, bool) {
	v, present := r[field]
	if !present || v == nil {
		return 0, false
	}
	var (
		f   float64
		err error
	)
	switch val := v.(type) {
	case float64:
		f = val
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		f, err = val.Float64()
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		f, err = strconv.ParseFloat(s, 64)
	default:
		return 0, false
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Has reports whether the field is present and non-empty.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Clone returns a deep copy so callers never share nested values.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case Record:
		return val.Clone()
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return val
	}
}

// CloneRecords deep-copies a slice of records, keeping nil as nil.
func CloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}

// BookingResult is the payables system's answer for one booked invoice.
// It is never modified after creation.
type BookingResult struct {
	Reference      string    `json:"reference"`
	InvoiceNumber  string    `json:"invoiceNumber"`
	SupplierNumber string    `json:"supplierNumber"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	BookedAt       time.Time `json:"bookedAt"`
}
