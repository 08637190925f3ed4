package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-intake/internal/api/middleware"
	"github.com/dvloznov/invoice-intake/internal/extraction"
	"github.com/dvloznov/invoice-intake/internal/invoice"
	"github.com/dvloznov/invoice-intake/internal/jobs"
	"github.com/dvloznov/invoice-intake/internal/payables"
	"github.com/dvloznov/invoice-intake/internal/session"
)

const maxJSONBody = 4 << 20

// errBookingConflict is returned when a session's invoice set is already
// booked or being booked.
var errBookingConflict = errors.New("invoices of this session are already booked or being booked")

// errPayables wraps failures of the payables services.
var errPayables = errors.New("payables booking failed")

// errArchive wraps failures reading archived documents.
var errArchive = errors.New("document archive unavailable")

// errNoDocument is returned for sessions whose upload was not archived.
var errNoDocument = errors.New("no archived document for this session")

// badRequest marks client input errors that are not invoice validation
// failures.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func newBadRequest(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

// classify maps an error onto an HTTP status and error code.
func classify(err error) (int, string) {
	var validation *invoice.ValidationError
	var bad *badRequest
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound), errors.Is(err, errNoDocument):
		return http.StatusNotFound, middleware.CodeNotFound
	case errors.As(err, &validation), errors.As(err, &bad), errors.Is(err, payables.ErrInvalidAmount):
		return http.StatusBadRequest, middleware.CodeValidation
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, middleware.CodeValidation
	case errors.Is(err, errBookingConflict):
		return http.StatusConflict, middleware.CodeConflict
	case errors.Is(err, extraction.ErrTimeout):
		return http.StatusInternalServerError, middleware.CodeExtractionTimeout
	case errors.Is(err, errPayables),
		errors.Is(err, errArchive),
		errors.Is(err, extraction.ErrTransport),
		errors.Is(err, extraction.ErrInvalidResponse),
		errors.Is(err, extraction.ErrEmptyResult):
		return http.StatusInternalServerError, middleware.CodeUpstream
	default:
		return http.StatusInternalServerError, middleware.CodeInternal
	}
}

// writeErr logs server-side failures and writes the error envelope. The
// message of client errors is passed through as is.
func writeErr(w http.ResponseWriter, log zerolog.Logger, err error, what string) {
	status, code := classify(err)
	message := err.Error()

	var validation *invoice.ValidationError
	if errors.As(err, &validation) {
		message = validation.Error()
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		message = fmt.Sprintf("request body exceeds %d bytes", maxBytes.Limit)
	}

	switch {
	case status >= http.StatusInternalServerError:
		log.Error().Err(err).Str("code", code).Msg(what)
	case code == middleware.CodeNotFound:
		message = notFoundMessage(err)
		log.Debug().Err(err).Msg(what)
	default:
		log.Warn().Err(err).Str("code", code).Msg(what)
	}
	middleware.WriteError(w, status, code, message)
}

func notFoundMessage(err error) string {
	if errors.Is(err, jobs.ErrJobNotFound) {
		return "Job not found"
	}
	if errors.Is(err, errNoDocument) {
		return "Document not found"
	}
	return "Session not found"
}

// decodeJSON reads a JSON body keeping numbers as json.Number, so edited
// invoices are stored exactly as sent.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return newBadRequest("request body is empty")
		}
		return newBadRequest("invalid JSON body: %v", err)
	}
	return nil
}

func logFor(base zerolog.Logger, r *http.Request, sessionID string) zerolog.Logger {
	l := base.With().Str("request_id", middleware.RequestIDFromContext(r.Context()))
	if sessionID != "" {
		l = l.Str("session_id", sessionID)
	}
	return l.Logger()
}

func nonNilRecords(in []invoice.Record) []invoice.Record {
	if in == nil {
		return []invoice.Record{}
	}
	return in
}

func nonNilRaw(in []invoice.RawRecord) []invoice.RawRecord {
	if in == nil {
		return []invoice.RawRecord{}
	}
	return in
}

func nonNilBookings(in []invoice.BookingResult) []invoice.BookingResult {
	if in == nil {
		return []invoice.BookingResult{}
	}
	return in
}
