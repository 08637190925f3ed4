package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/option"

	"github.com/dvloznov/invoice-intake/internal/invoice"
	"github.com/dvloznov/invoice-intake/internal/rules"
)

// BookingsTable is the table bookings are streamed into.
const BookingsTable = "bookings"

// BookingRow mirrors the payables.bookings table.
type BookingRow struct {
	Reference      string `bigquery:"reference"`       // REQUIRED
	SessionID      string `bigquery:"session_id"`      // REQUIRED
	InvoiceNumber  string `bigquery:"invoice_number"`  // REQUIRED
	SupplierNumber string `bigquery:"supplier_number"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED

	InvoiceDate bigquery.NullDate   `bigquery:"invoice_date"` // NULLABLE
	SellerName  bigquery.NullString `bigquery:"seller_name"`  // NULLABLE
	DocumentURI bigquery.NullString `bigquery:"document_uri"` // NULLABLE

	BookedAt   time.Time         `bigquery:"booked_at"`   // REQUIRED
	ExportedAt time.Time         `bigquery:"exported_at"` // REQUIRED
	Invoice    bigquery.NullJSON `bigquery:"invoice"`     // NULLABLE JSON
}

// RowFromEntry converts an exported entry into a table row.
func RowFromEntry(e Entry, exportedAt time.Time) (*BookingRow, error) {
	amount := new(big.Rat)
	if _, ok := amount.SetString(fmt.Sprintf("%.2f", e.Booking.Amount)); !ok {
		return nil, fmt.Errorf("RowFromEntry: invalid amount %v", e.Booking.Amount)
	}

	row := &BookingRow{
		Reference:      e.Booking.Reference,
		SessionID:      e.SessionID,
		InvoiceNumber:  e.Booking.InvoiceNumber,
		SupplierNumber: e.Booking.SupplierNumber,
		Amount:         amount,
		Currency:       e.Booking.Currency,
		BookedAt:       e.Booking.BookedAt.UTC(),
		ExportedAt:     exportedAt.UTC(),
	}

	if d, ok := rules.ParseDate(e.Invoice.String(invoice.FieldInvoiceDate)); ok {
		row.InvoiceDate = bigquery.NullDate{Date: civil.DateOf(d), Valid: true}
	}
	if seller := e.Invoice.String(invoice.FieldSellerName); seller != "" {
		row.SellerName = bigquery.NullString{StringVal: seller, Valid: true}
	}
	if e.DocumentURI != "" {
		row.DocumentURI = bigquery.NullString{StringVal: e.DocumentURI, Valid: true}
	}
	if e.Invoice != nil {
		raw, err := json.Marshal(e.Invoice)
		if err != nil {
			return nil, fmt.Errorf("RowFromEntry: marshal invoice: %w", err)
		}
		row.Invoice = bigquery.NullJSON{JSONVal: string(raw), Valid: true}
	}
	return row, nil
}

// BigQuerySink streams bookings into BigQuery.
type BigQuerySink struct {
	client  *bigquery.Client
	project string
	dataset string
	now     func() time.Time
}

// NewBigQuerySink opens a client for project. With an empty credentialsFile
// Application Default Credentials are used.
func NewBigQuerySink(ctx context.Context, project, dataset, credentialsFile string) (*BigQuerySink, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewBigQuerySink: creating client: %w", err)
	}
	return &BigQuerySink{client: client, project: project, dataset: dataset, now: time.Now}, nil
}

func (s *BigQuerySink) Name() string { return "bigquery" }

// Export inserts one row per entry. The booking reference is the insert
// id, so a retried export does not duplicate rows.
func (s *BigQuerySink) Export(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	exportedAt := s.now()
	savers := make([]*bigquery.StructSaver, 0, len(entries))
	for _, e := range entries {
		row, err := RowFromEntry(e, exportedAt)
		if err != nil {
			return fmt.Errorf("Export: %w", err)
		}
		savers = append(savers, &bigquery.StructSaver{Struct: row, InsertID: row.Reference})
	}

	table := s.client.DatasetInProject(s.project, s.dataset).Table(BookingsTable)
	if err := table.Inserter().Put(ctx, savers); err != nil {
		return fmt.Errorf("Export: inserting rows: %w", err)
	}
	return nil
}

// Close closes the BigQuery client connection.
func (s *BigQuerySink) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
