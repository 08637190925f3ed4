package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const geminiPrompt = "You are an invoice data extraction service.\n\n" +
	"Task:\n" +
	"- Find every invoice in the attached document.\n" +
	"- For each invoice output one object in \"result\" with a \"prediction\" array.\n" +
	"- Each prediction is {\"label\": string, \"ocr_text\": string}.\n\n" +
	"Use only these labels: invoice_number, invoice_date, due_date, seller_name, seller_address,\n" +
	"seller_vat_number, buyer_name, invoice_amount, subtotal, total_tax, currency, po_number,\n" +
	"country, brand.\n" +
	"Copy values exactly as printed on the invoice. Omit labels you cannot find.\n\n" +
	"Return ONLY valid raw JSON of the form {\"result\": [{\"prediction\": [...]}]}.\n" +
	"Do NOT wrap the response in code fences.\n"

// GeminiExtractor asks a Gemini model for vendor-shaped predictions, for
// deployments without an OCR vendor account.
type GeminiExtractor struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiExtractor creates a Gemini-backed extractor. An empty apiKey
// falls back to the GOOGLE_API_KEY / GEMINI_API_KEY environment lookup done
// by the SDK.
func NewGeminiExtractor(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiExtractor: create genai client: %w", err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiExtractor{client: client, model: model, timeout: timeout}, nil
}

// Extract implements Extractor.
func (g *GeminiExtractor) Extract(ctx context.Context, doc Document) ([]Result, error) {
	const op = "extraction.GeminiExtractor.Extract"

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	mimeType := doc.ContentType
	if mimeType == "" {
		mimeType = "application/pdf"
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: geminiPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     doc.Data,
					},
				},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, newError(KindTimeout, op, err)
		}
		return nil, newError(KindTransport, op, fmt.Errorf("generate content: %w", err))
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, newError(KindInvalidResponse, op, errors.New("empty response from model"))
	}

	return decodeResponse(op, []byte(cleanModelJSON(rawText)))
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Some answers skip the wrapper object and return the result array.
	if strings.HasPrefix(s, "[") {
		var asArray []json.RawMessage
		if json.Unmarshal([]byte(s), &asArray) == nil {
			return `{"result":` + s + `}`
		}
	}

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

// Ensure GeminiExtractor implements Extractor.
var _ Extractor = (*GeminiExtractor)(nil)
