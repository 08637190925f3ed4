package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Error codes carried in the "error" field of failed responses.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeConflict          = "CONFLICT"
	CodeUpstream          = "UPSTREAM_ERROR"
	CodeExtractionTimeout = "EXTRACTION_TIMEOUT"
	CodeInternal          = "INTERNAL_ERROR"
	CodeMethodNotAllowed  = "METHOD_NOT_ALLOWED"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response. The body is encoded before the status
// goes out, so a value that cannot be encoded turns into a 500 envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if data != nil {
		if err := json.NewEncoder(&buf).Encode(data); err != nil {
			status = http.StatusInternalServerError
			buf.Reset()
			_ = json.NewEncoder(&buf).Encode(ErrorResponse{
				Success: false,
				Error:   CodeInternal,
				Message: "failed to encode response",
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// WriteError writes the error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{Success: false, Error: code, Message: message})
}
