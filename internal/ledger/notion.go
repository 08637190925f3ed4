package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/invoice-intake/internal/invoice"
	"github.com/dvloznov/invoice-intake/internal/logger"
)

// NotionService is the part of the Notion API the sink needs.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// NotionClient implements NotionService with the Notion SDK.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a client for an integration token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{client: notionapi.NewClient(notionapi.Token(token))}
}

// CreatePage creates a page in a database.
func (n *NotionClient) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	req := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
	}
	page, err := n.client.Page.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("CreatePage: %w", err)
	}
	return page, nil
}

// QueryDatabase runs a database query.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}
	return resp, nil
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: content},
	}}
}

// BookingToNotionProperties maps an entry onto the Bookings database.
// "Reference" is the title property.
func BookingToNotionProperties(e Entry) notionapi.Properties {
	props := notionapi.Properties{
		"Reference": notionapi.TitleProperty{
			Title: richText(e.Booking.Reference),
		},
		"Invoice Number": notionapi.RichTextProperty{
			RichText: richText(e.Booking.InvoiceNumber),
		},
		"Supplier Number": notionapi.RichTextProperty{
			RichText: richText(e.Booking.SupplierNumber),
		},
		"Session": notionapi.RichTextProperty{
			RichText: richText(e.SessionID),
		},
		"Amount": notionapi.NumberProperty{
			Number: e.Booking.Amount,
		},
	}

	if e.Booking.Currency != "" {
		props["Currency"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: e.Booking.Currency},
		}
	}

	if !e.Booking.BookedAt.IsZero() {
		d := notionapi.Date(e.Booking.BookedAt.UTC())
		props["Booked At"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &d},
		}
	}

	if seller := e.Invoice.String(invoice.FieldSellerName); seller != "" {
		props["Seller"] = notionapi.RichTextProperty{RichText: richText(seller)}
	}

	if e.DocumentURI != "" {
		props["Document"] = notionapi.RichTextProperty{RichText: richText(e.DocumentURI)}
	}

	return props
}

// NotionSink creates one page per booking in a Notion database. Bookings
// whose reference already has a page are skipped.
type NotionSink struct {
	client     NotionService
	databaseID string
}

// NewNotionSink creates a sink writing to databaseID.
func NewNotionSink(client NotionService, databaseID string) *NotionSink {
	return &NotionSink{client: client, databaseID: databaseID}
}

func (s *NotionSink) Name() string { return "notion" }

func (s *NotionSink) Export(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)
	start := time.Now()

	existing, err := s.existingReferences(ctx)
	if err != nil {
		return fmt.Errorf("Export: %w", err)
	}

	var created, skipped int
	for _, e := range entries {
		if existing[e.Booking.Reference] {
			skipped++
			continue
		}
		if _, err := s.client.CreatePage(ctx, s.databaseID, BookingToNotionProperties(e)); err != nil {
			return fmt.Errorf("Export: booking %s: %w", e.Booking.Reference, err)
		}
		existing[e.Booking.Reference] = true
		created++
	}

	log.Info().
		Int("created", created).
		Int("skipped", skipped).
		Dur("elapsed", time.Since(start)).
		Msg("Bookings exported to Notion")
	return nil
}

func (s *NotionSink) existingReferences(ctx context.Context) (map[string]bool, error) {
	refs := make(map[string]bool)
	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}
		resp, err := s.client.QueryDatabase(ctx, s.databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("existingReferences: %w", err)
		}
		for _, page := range resp.Results {
			if ref := referenceOf(page); ref != "" {
				refs[ref] = true
			}
		}
		if !resp.HasMore {
			return refs, nil
		}
		cursor = resp.NextCursor
	}
}

func referenceOf(page notionapi.Page) string {
	prop, ok := page.Properties["Reference"]
	if !ok {
		return ""
	}
	if title, ok := prop.(*notionapi.TitleProperty); ok && len(title.Title) > 0 {
		return title.Title[0].PlainText
	}
	return ""
}
