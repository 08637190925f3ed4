package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/invoice-intake/internal/invoice"
)

func sampleEntry(ref string) Entry {
	return Entry{
		SessionID:   "INV-1",
		DocumentURI: "gs://docs/invoices/INV-1/a.pdf",
		Booking: invoice.BookingResult{
			Reference:      ref,
			InvoiceNumber:  "PG-9",
			SupplierNumber: "100102",
			Amount:         2100.5,
			Currency:       "AED",
			BookedAt:       time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		},
		Invoice: invoice.Record{
			invoice.FieldInvoiceNumber: "PG-9",
			invoice.FieldInvoiceDate:   "14/03/2025",
			invoice.FieldSellerName:    "Procter & Gamble",
		},
	}
}

func TestEntriesFor(t *testing.T) {
	invoices := []invoice.Record{{"invoice_number": "A"}, {"invoice_number": "B"}}
	bookings := []invoice.BookingResult{{Reference: "AP-2025-10001"}, {Reference: "AP-2025-10002"}}

	entries := EntriesFor("INV-1", "", invoices, bookings)
	if len(entries) != 2 {
		t.Fatalf("EntriesFor() returned %d entries", len(entries))
	}
	if entries[1].Invoice.String("invoice_number") != "B" || entries[1].Booking.Reference != "AP-2025-10002" {
		t.Errorf("entries[1] = %+v", entries[1])
	}

	invoices[0]["invoice_number"] = "changed"
	if entries[0].Invoice.String("invoice_number") != "A" {
		t.Error("EntriesFor() shares invoice maps with its input")
	}
}

func TestRowFromEntry(t *testing.T) {
	exported := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	row, err := RowFromEntry(sampleEntry("AP-2025-12345"), exported)
	if err != nil {
		t.Fatalf("RowFromEntry() error = %v", err)
	}

	if row.Reference != "AP-2025-12345" || row.SessionID != "INV-1" || row.SupplierNumber != "100102" {
		t.Errorf("identity columns = %+v", row)
	}
	if got := row.Amount.FloatString(2); got != "2100.50" {
		t.Errorf("Amount = %s, want 2100.50", got)
	}
	if !row.InvoiceDate.Valid || row.InvoiceDate.Date.String() != "2025-03-14" {
		t.Errorf("InvoiceDate = %+v", row.InvoiceDate)
	}
	if !row.SellerName.Valid || row.SellerName.StringVal != "Procter & Gamble" {
		t.Errorf("SellerName = %+v", row.SellerName)
	}
	if !row.Invoice.Valid || !strings.Contains(row.Invoice.JSONVal, `"invoice_number":"PG-9"`) {
		t.Errorf("Invoice = %+v", row.Invoice)
	}
	if !row.ExportedAt.Equal(exported) {
		t.Errorf("ExportedAt = %v", row.ExportedAt)
	}
}

func TestRowFromEntry_OptionalColumns(t *testing.T) {
	e := sampleEntry("AP-2025-12345")
	e.DocumentURI = ""
	e.Invoice = nil

	row, err := RowFromEntry(e, time.Now())
	if err != nil {
		t.Fatalf("RowFromEntry() error = %v", err)
	}
	if row.InvoiceDate.Valid || row.SellerName.Valid || row.DocumentURI.Valid || row.Invoice.Valid {
		t.Errorf("optional columns should be null: %+v", row)
	}
}

type recordingSink struct {
	name  string
	err   error
	calls int
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Export(ctx context.Context, entries []Entry) error {
	s.calls++
	return s.err
}

func TestCombine(t *testing.T) {
	if _, ok := Combine().(NopSink); !ok {
		t.Error("Combine() with no sinks should be NopSink")
	}
	if _, ok := Combine(NopSink{}, nil).(NopSink); !ok {
		t.Error("Combine(nop, nil) should be NopSink")
	}

	one := &recordingSink{name: "one"}
	if got := Combine(NopSink{}, one); got != Sink(one) {
		t.Errorf("Combine(nop, one) = %v, want the single sink", got)
	}

	multi, ok := Combine(one, &recordingSink{name: "two"}).(MultiSink)
	if !ok || len(multi) != 2 {
		t.Errorf("Combine(one, two) = %v", multi)
	}
}

func TestMultiSink_AttemptsEverySink(t *testing.T) {
	failing := &recordingSink{name: "bigquery", err: errors.New("quota exceeded")}
	healthy := &recordingSink{name: "notion"}

	err := MultiSink{failing, healthy}.Export(context.Background(), []Entry{sampleEntry("AP-2025-1")})
	if err == nil || !strings.Contains(err.Error(), "bigquery: quota exceeded") {
		t.Errorf("Export() error = %v", err)
	}
	if healthy.calls != 1 {
		t.Errorf("healthy sink called %d times, want 1", healthy.calls)
	}
}

func TestBookingToNotionProperties(t *testing.T) {
	props := BookingToNotionProperties(sampleEntry("AP-2025-12345"))

	title, ok := props["Reference"].(notionapi.TitleProperty)
	if !ok || len(title.Title) != 1 || title.Title[0].Text.Content != "AP-2025-12345" {
		t.Errorf("Reference = %#v", props["Reference"])
	}
	amount, ok := props["Amount"].(notionapi.NumberProperty)
	if !ok || amount.Number != 2100.5 {
		t.Errorf("Amount = %#v", props["Amount"])
	}
	currency, ok := props["Currency"].(notionapi.SelectProperty)
	if !ok || currency.Select.Name != "AED" {
		t.Errorf("Currency = %#v", props["Currency"])
	}
	for _, key := range []string{"Booked At", "Seller", "Document", "Session", "Invoice Number", "Supplier Number"} {
		if _, ok := props[key]; !ok {
			t.Errorf("missing property %q", key)
		}
	}
}

// MockNotionService serves pages in fixed-size chunks and records creations.
type MockNotionService struct {
	pages   []notionapi.Page
	created []notionapi.Properties
	failOn  string
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	title := properties["Reference"].(notionapi.TitleProperty)
	if title.Title[0].Text.Content == m.failOn {
		return nil, errors.New("notion unavailable")
	}
	m.created = append(m.created, properties)
	return &notionapi.Page{}, nil
}

func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	start := 0
	if req.StartCursor != "" {
		start = 1
	}
	end := start + 1
	if end > len(m.pages) {
		end = len(m.pages)
	}
	resp := &notionapi.DatabaseQueryResponse{Results: m.pages[start:end]}
	if end < len(m.pages) {
		resp.HasMore = true
		resp.NextCursor = "next"
	}
	return resp, nil
}

func pageWithReference(ref string) notionapi.Page {
	return notionapi.Page{Properties: notionapi.Properties{
		"Reference": &notionapi.TitleProperty{Title: []notionapi.RichText{{PlainText: ref}}},
	}}
}

func TestNotionSink_SkipsExistingReferences(t *testing.T) {
	svc := &MockNotionService{pages: []notionapi.Page{
		pageWithReference("AP-2025-10001"),
		pageWithReference("AP-2025-10002"),
	}}
	sink := NewNotionSink(svc, "db")

	err := sink.Export(context.Background(), []Entry{
		sampleEntry("AP-2025-10001"),
		sampleEntry("AP-2025-10002"),
		sampleEntry("AP-2025-10003"),
		sampleEntry("AP-2025-10003"),
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(svc.created) != 1 {
		t.Fatalf("created %d pages, want 1", len(svc.created))
	}
}

func TestNotionSink_CreateFailure(t *testing.T) {
	svc := &MockNotionService{failOn: "AP-2025-10009"}
	err := NewNotionSink(svc, "db").Export(context.Background(), []Entry{sampleEntry("AP-2025-10009")})
	if err == nil || !strings.Contains(err.Error(), "AP-2025-10009") {
		t.Errorf("Export() error = %v", err)
	}
}
