// Package apiclient is a small client for the invoice intake HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/invoice-intake/internal/invoice"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to one server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for baseURL, e.g. http://localhost:3000.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewSessionResponse answers POST /api/invoice/new.
type NewSessionResponse struct {
	SessionID string `json:"sessionId"`
	UploadURL string `json:"uploadUrl"`
}

// UploadResponse answers POST /api/upload. Invoices are raw or business
// records depending on the extraction mode.
type UploadResponse struct {
	SessionID string            `json:"sessionId"`
	Count     int               `json:"count"`
	Invoices  []json.RawMessage `json:"invoices"`
}

// SessionResponse answers GET /api/invoice/{id}.
type SessionResponse struct {
	Status   string                  `json:"status"`
	Invoices []invoice.Record        `json:"invoices"`
	Bookings []invoice.BookingResult `json:"bookings"`
}

// RawSessionResponse answers GET /api/invoice/raw/{id}.
type RawSessionResponse struct {
	Status   string              `json:"status"`
	Invoices []invoice.RawRecord `json:"invoices"`
}

// BookingResponse answers finalize and book.
type BookingResponse struct {
	Count       int                     `json:"count"`
	InvoiceRef  string                  `json:"invoiceRef"`
	References  []string                `json:"references"`
	Bookings    []invoice.BookingResult `json:"bookings"`
	ExportJobID string                  `json:"exportJobId"`
}

// ExchangeRateResponse answers GET /api/exchange-rate/{currency}.
type ExchangeRateResponse struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	Rate float64   `json:"rate"`
	AsOf time.Time `json:"asOf"`
}

// RatesResponse answers GET /api/exchange-rates.
type RatesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
	AsOf  time.Time          `json:"asOf"`
}

// NewSession opens a new intake session.
func (c *Client) NewSession(ctx context.Context) (*NewSessionResponse, error) {
	var out NewSessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/invoice/new", nil, "", &out); err != nil {
		return nil, fmt.Errorf("NewSession: %w", err)
	}
	return &out, nil
}

// Upload sends a local file for extraction. mode may be empty to use the
// server default.
func (c *Client) Upload(ctx context.Context, sessionID, path, mode string) (*UploadResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Upload: read file: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("Upload: create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("Upload: write form file: %w", err)
	}
	if err := mw.WriteField("sessionId", sessionID); err != nil {
		return nil, fmt.Errorf("Upload: write sessionId: %w", err)
	}
	if mode != "" {
		if err := mw.WriteField("mode", mode); err != nil {
			return nil, fmt.Errorf("Upload: write mode: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("Upload: close multipart writer: %w", err)
	}

	var out UploadResponse
	if err := c.do(ctx, http.MethodPost, "/api/upload", &body, mw.FormDataContentType(), &out); err != nil {
		return nil, fmt.Errorf("Upload: %w", err)
	}
	return &out, nil
}

// Get returns the session's business invoices and bookings.
func (c *Client) Get(ctx context.Context, sessionID string) (*SessionResponse, error) {
	var out SessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/invoice/"+url.PathEscape(sessionID), nil, "", &out); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &out, nil
}

// GetRaw returns the session's raw invoices.
func (c *Client) GetRaw(ctx context.Context, sessionID string) (*RawSessionResponse, error) {
	var out RawSessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/invoice/raw/"+url.PathEscape(sessionID), nil, "", &out); err != nil {
		return nil, fmt.Errorf("GetRaw: %w", err)
	}
	return &out, nil
}

// Update replaces the session's invoices. invoices is sent as is; status may
// be empty.
func (c *Client) Update(ctx context.Context, sessionID string, invoices json.RawMessage, status string) error {
	payload := map[string]any{"invoices": invoices}
	if status != "" {
		payload["status"] = status
	}
	body, err := json.Marshal(map[string]any{"data": payload})
	if err != nil {
		return fmt.Errorf("Update: marshal body: %w", err)
	}
	if err := c.do(ctx, http.MethodPut, "/api/invoice/"+url.PathEscape(sessionID), bytes.NewReader(body), "application/json", nil); err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return nil
}

// Finalize books the session's stored invoices.
func (c *Client) Finalize(ctx context.Context, sessionID string) (*BookingResponse, error) {
	var out BookingResponse
	if err := c.do(ctx, http.MethodPost, "/api/finalize/"+url.PathEscape(sessionID), nil, "", &out); err != nil {
		return nil, fmt.Errorf("Finalize: %w", err)
	}
	return &out, nil
}

// Book validates and books invoices on behalf of a session.
func (c *Client) Book(ctx context.Context, sessionID string, invoices json.RawMessage) (*BookingResponse, error) {
	body, err := json.Marshal(map[string]any{"sessionId": sessionID, "invoices": invoices})
	if err != nil {
		return nil, fmt.Errorf("Book: marshal body: %w", err)
	}
	var out BookingResponse
	if err := c.do(ctx, http.MethodPost, "/api/invoice/book", bytes.NewReader(body), "application/json", &out); err != nil {
		return nil, fmt.Errorf("Book: %w", err)
	}
	return &out, nil
}

// ExchangeRate returns the rate from one currency to another. An empty to
// means the base currency.
func (c *Client) ExchangeRate(ctx context.Context, from, to string) (*ExchangeRateResponse, error) {
	path := "/api/exchange-rate/" + url.PathEscape(from)
	if to != "" {
		path += "?to=" + url.QueryEscape(to)
	}
	var out ExchangeRateResponse
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, fmt.Errorf("ExchangeRate: %w", err)
	}
	return &out, nil
}

// Rates returns the whole rate table.
func (c *Client) Rates(ctx context.Context) (*RatesResponse, error) {
	var out RatesResponse
	if err := c.do(ctx, http.MethodGet, "/api/exchange-rates", nil, "", &out); err != nil {
		return nil, fmt.Errorf("Rates: %w", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
