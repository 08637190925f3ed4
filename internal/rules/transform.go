package rules

import (
	"strings"

	"github.com/dvloznov/invoice-intake/internal/invoice"
)

// Transform builds a business invoice record from matched label values
// keyed by business field name.
func Transform(fields map[string]string) invoice.Record {
	get := func(k string) string { return strings.TrimSpace(fields[k]) }

	source := get(invoice.FieldSource)
	if source == "" {
		source = get(invoice.FieldSellerName)
	}
	seller := get(invoice.FieldSellerName)
	if seller == "" {
		seller = source
	}
	country := get(invoice.FieldCountry)
	brand := get(invoice.FieldBrand)

	vat := ParseDecimal(get(invoice.FieldVATAmount))
	area, exemption := DeriveTax(vat)

	return invoice.Record{
		invoice.FieldInvoiceNumber:    get(invoice.FieldInvoiceNumber),
		invoice.FieldInvoiceDate:      NormalizeDate(get(invoice.FieldInvoiceDate)),
		invoice.FieldDueDate:          NormalizeDate(get(invoice.FieldDueDate)),
		invoice.FieldSource:           source,
		invoice.FieldSellerName:       seller,
		invoice.FieldSellerVATNumber:  get(invoice.FieldSellerVATNumber),
		invoice.FieldCountry:          country,
		invoice.FieldBrand:            brand,
		invoice.FieldSupplierNumber:   ResolveSupplier(source, country, brand),
		invoice.FieldTotalAmount:      ParseDecimal(get(invoice.FieldTotalAmount)),
		invoice.FieldNetAmount:        ParseDecimal(get(invoice.FieldNetAmount)),
		invoice.FieldVATAmount:        vat,
		invoice.FieldCurrency:         strings.ToUpper(get(invoice.FieldCurrency)),
		invoice.FieldTaxArea:          area,
		invoice.FieldTaxExemptionCode: exemption,
		invoice.FieldPONumber:         get(invoice.FieldPONumber),
	}
}
