package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// ClientConfig configures the vendor HTTP client.
type ClientConfig struct {
	BaseURL    string
	ModelID    string
	APIKey     string
	AuthScheme string // "basic" (API key as user name) or "bearer"
	Timeout    time.Duration
}

// Client uploads documents to the OCR vendor as multipart form data.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates a vendor client. A zero timeout defaults to 60s.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{},
	}
}

// Extract implements Extractor.
func (c *Client) Extract(ctx context.Context, doc Document) ([]Result, error) {
	const op = "extraction.Client.Extract"

	body, contentType, err := buildMultipart(doc)
	if err != nil {
		return nil, newError(KindTransport, op, fmt.Errorf("build multipart body: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s/LabelFile/?async=false", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.ModelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, newError(KindTransport, op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, newError(KindTimeout, op, fmt.Errorf("no response within %s: %w", c.cfg.Timeout, err))
		}
		return nil, newError(KindTransport, op, fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, newError(KindTimeout, op, fmt.Errorf("read body: %w", err))
		}
		return nil, newError(KindTransport, op, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindInvalidResponse, op, fmt.Errorf("unexpected status: %d, body: %s", resp.StatusCode, truncate(string(raw), 500)))
	}

	return decodeResponse(op, raw)
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIKey == "" {
		return
	}
	if strings.EqualFold(c.cfg.AuthScheme, "bearer") {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		return
	}
	req.SetBasicAuth(c.cfg.APIKey, "")
}

func decodeResponse(op string, raw []byte) ([]Result, error) {
	var parsed struct {
		Message string    `json:"message"`
		Result  *[]Result `json:"result"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, newError(KindInvalidResponse, op, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Result == nil {
		return nil, newError(KindInvalidResponse, op, fmt.Errorf("missing result in response (message: %q)", parsed.Message))
	}
	return *parsed.Result, nil
}

func buildMultipart(doc Document) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	filename := doc.Filename
	if filename == "" {
		filename = "invoice.pdf"
	}
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.FormDataContentType(), nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Ensure Client implements Extractor.
var _ Extractor = (*Client)(nil)
