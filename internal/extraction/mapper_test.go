package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/invoice-intake/internal/invoice"
	"github.com/dvloznov/invoice-intake/internal/rules"
)

type fakeExtractor struct {
	results []Result
	err     error
}

func (f *fakeExtractor) Extract(ctx context.Context, doc Document) ([]Result, error) {
	return f.results, f.err
}

func group(pairs ...string) Result {
	var preds []Prediction
	for i := 0; i+1 < len(pairs); i += 2 {
		preds = append(preds, Prediction{Label: pairs[i], OCRText: pairs[i+1]})
	}
	return Result{Prediction: preds}
}

func TestPolicy_FieldFor(t *testing.T) {
	tests := []struct {
		policy Policy
		label  string
		want   string
		ok     bool
	}{
		{RawPolicy, "invoice_number", "invoice_number", true},
		{RawPolicy, "Invoice_Number", "", false},
		{RawPolicy, "invoice_number_2", "", false},
		{BusinessPolicy, "Invoice_Number_Top", invoice.FieldInvoiceNumber, true},
		{BusinessPolicy, "total_tax", invoice.FieldVATAmount, true},
		{BusinessPolicy, "subtotal", invoice.FieldNetAmount, true},
		{BusinessPolicy, "invoice_amount", invoice.FieldTotalAmount, true},
		{BusinessPolicy, "seller_vat_number", invoice.FieldSellerVATNumber, true},
		{BusinessPolicy, "supplier_country", invoice.FieldSellerName, true},
		{BusinessPolicy, "line_item_description", "", false},
		{BusinessPolicy, "  ", "", false},
	}
	for _, tt := range tests {
		got, ok := tt.policy.FieldFor(tt.label)
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s.FieldFor(%q) = %q, %v, want %q, %v", tt.policy.Name, tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMatchFields_FirstNonEmptyWins(t *testing.T) {
	fields := MatchFields(RawPolicy, []Prediction{
		{Label: "invoice_number", OCRText: "  "},
		{Label: "invoice_number", OCRText: "INV-1"},
		{Label: "invoice_number", OCRText: "INV-2"},
		{Label: "noise", OCRText: "ignored"},
	})

	if len(fields) != 1 || fields["invoice_number"] != "INV-1" {
		t.Errorf("MatchFields() = %v", fields)
	}
}

func TestMapRaw_TwoGroupsWithDefaults(t *testing.T) {
	results := []Result{
		group("invoice_number", "INV-001", "seller_name", "Oatly AB", "invoice_amount", "1.200,00", "currency", "SEK"),
		group("invoice_number", "INV-002", "seller_name", "Nutricia", "invoice_amount", "80,50", "currency", "EUR"),
	}

	records := MapRaw(results)
	if len(records) != 2 {
		t.Fatalf("MapRaw() returned %d records, want 2", len(records))
	}

	first := records[0]
	if first.InvoiceNumber != "INV-001" || first.SellerName != "Oatly AB" || first.InvoiceAmount != "1.200,00" || first.Currency != "SEK" {
		t.Errorf("populated fields wrong: %+v", first)
	}
	if first.InvoiceDate != invoice.DefaultText || first.BuyerName != invoice.DefaultParty || first.TotalTax != invoice.DefaultAmount {
		t.Errorf("defaults wrong: %+v", first)
	}
	if records[1].InvoiceNumber != "INV-002" {
		t.Errorf("order not preserved: %+v", records[1])
	}
}

func TestMapRaw_DropsUnmatchedGroups(t *testing.T) {
	records := MapRaw([]Result{
		group("table_header", "Qty"),
		group("invoice_number", "INV-3"),
		{},
	})
	if len(records) != 1 || records[0].InvoiceNumber != "INV-3" {
		t.Errorf("MapRaw() = %+v", records)
	}
}

func TestMapBusiness(t *testing.T) {
	records := MapBusiness([]Result{
		group(
			"Invoice_No", "PG-9",
			"supplier_name", "Procter & Gamble",
			"country", "UAE",
			"brand", "Pampers",
			"total_amount", "2.100,00",
			"vat_amount", "100,00",
			"currency", "aed",
		),
	})
	if len(records) != 1 {
		t.Fatalf("MapBusiness() returned %d records", len(records))
	}
	rec := records[0]
	if rec[invoice.FieldSupplierNumber] != 100102 {
		t.Errorf("supplier_number = %v", rec[invoice.FieldSupplierNumber])
	}
	if rec[invoice.FieldTotalAmount] != 2100.0 || rec[invoice.FieldCurrency] != "AED" {
		t.Errorf("amount/currency = %v %v", rec[invoice.FieldTotalAmount], rec[invoice.FieldCurrency])
	}
	if rec[invoice.FieldTaxArea] != rules.TaxAreaVAT {
		t.Errorf("tax_area = %v", rec[invoice.FieldTaxArea])
	}
}

func TestService_Run(t *testing.T) {
	t.Run("maps both shapes", func(t *testing.T) {
		svc := NewService(&fakeExtractor{results: []Result{group("invoice_number", "A", "currency", "USD")}}, "fake")
		out, err := svc.Run(context.Background(), Document{})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(out.Raw) != 1 || len(out.Business) != 1 || out.Groups != 1 {
			t.Errorf("Run() = %+v", out)
		}
	})

	t.Run("empty result", func(t *testing.T) {
		svc := NewService(&fakeExtractor{results: []Result{group("noise", "x")}}, "fake")
		_, err := svc.Run(context.Background(), Document{})
		if !errors.Is(err, ErrEmptyResult) {
			t.Errorf("Run() error = %v, want ErrEmptyResult", err)
		}
	})

	t.Run("plain errors become transport errors", func(t *testing.T) {
		svc := NewService(&fakeExtractor{err: errors.New("dial tcp: refused")}, "fake")
		_, err := svc.Run(context.Background(), Document{})
		if !errors.Is(err, ErrTransport) {
			t.Errorf("Run() error = %v, want ErrTransport", err)
		}
	})

	t.Run("typed errors pass through", func(t *testing.T) {
		svc := NewService(&fakeExtractor{err: newError(KindTimeout, "x", nil)}, "fake")
		_, err := svc.Run(context.Background(), Document{})
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("Run() error = %v, want ErrTimeout", err)
		}
	})
}
