package invoice

import "fmt"

// ValidationError names the offending invoice and field of a rejected batch.
type ValidationError struct {
	Index         int
	InvoiceNumber string
	Field         string
	Reason        string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	}
	if e.InvoiceNumber != "" {
		return fmt.Sprintf("invoices[%d] (%s): %s %s", e.Index, e.InvoiceNumber, e.Field, e.Reason)
	}
	return fmt.Sprintf("invoices[%d]: %s %s", e.Index, e.Field, e.Reason)
}

var requiredForBooking = []string{
	FieldInvoiceNumber,
	FieldSupplierNumber,
	FieldTotalAmount,
	FieldCurrency,
}

var numericForBooking = []string{
	FieldSupplierNumber,
	FieldTotalAmount,
}

// ValidateForBooking checks that every record carries what the payables
// system needs. It stops at the first problem found.
func ValidateForBooking(records []Record) error {
	if len(records) == 0 {
		return &ValidationError{Index: -1, Field: "invoices", Reason: "must contain at least one invoice"}
	}
	for i, rec := range records {
		if rec == nil {
			return &ValidationError{Index: i, Field: "invoice", Reason: "must be an object"}
		}
		number := rec.String(FieldInvoiceNumber)
		for _, field := range requiredForBooking {
			if !rec.Has(field) {
				return &ValidationError{Index: i, InvoiceNumber: number, Field: field, Reason: "is required"}
			}
		}
		for _, field := range numericForBooking {
			if _, ok := rec.Number(field); !ok {
				return &ValidationError{Index: i, InvoiceNumber: number, Field: field, Reason: "must be numeric"}
			}
		}
	}
	return nil
}
