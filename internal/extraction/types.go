// Package extraction sends invoice documents to an OCR vendor and maps the
// vendor's labelled predictions onto invoice records.
package extraction

import "context"

// Document is an uploaded file ready to be sent to the vendor.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Prediction is one labelled value found by the vendor.
type Prediction struct {
	Label   string `json:"label"`
	OCRText string `json:"ocr_text"`
}

// Result groups the predictions for one invoice found in the document.
type Result struct {
	Message    string       `json:"message,omitempty"`
	Input      string       `json:"input,omitempty"`
	Prediction []Prediction `json:"prediction"`
}

// Response is the vendor's JSON body.
type Response struct {
	Message string   `json:"message,omitempty"`
	Result  []Result `json:"result"`
}

// Extractor produces prediction groups for a document.
type Extractor interface {
	Extract(ctx context.Context, doc Document) ([]Result, error)
}
