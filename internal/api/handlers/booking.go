package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-intake/internal/api/middleware"
	"github.com/dvloznov/invoice-intake/internal/invoice"
	"github.com/dvloznov/invoice-intake/internal/jobs"
	"github.com/dvloznov/invoice-intake/internal/ledger"
	"github.com/dvloznov/invoice-intake/internal/payables"
	"github.com/dvloznov/invoice-intake/internal/session"
)

// BookingHandler handles rate enrichment, finalize and book.
type BookingHandler struct {
	store     session.Store
	rates     *payables.RateTable
	tokens    payables.TokenProvider
	booker    payables.Booker
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewBookingHandler creates a booking handler. publisher may be nil, in
// which case bookings are not exported.
func NewBookingHandler(store session.Store, rates *payables.RateTable, tokens payables.TokenProvider, booker payables.Booker, publisher jobs.Publisher, log zerolog.Logger) *BookingHandler {
	return &BookingHandler{
		store:     store,
		rates:     rates,
		tokens:    tokens,
		booker:    booker,
		publisher: publisher,
		log:       log,
	}
}

// Enrich handles POST /api/invoice/{sessionId}/enrich?to=AED
func (h *BookingHandler) Enrich(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "sessionId")
	log := logFor(h.log, r, id)

	to := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("to")))
	if to == "" {
		to = payables.BaseCurrency
	}

	s, err := h.store.Get(ctx, id)
	if err != nil {
		writeErr(w, log, err, "Failed to get session")
		return
	}
	if len(s.Invoices) == 0 {
		writeErr(w, log, newBadRequest("session has no invoices to enrich"), "Nothing to enrich")
		return
	}

	enriched, err := payables.EnrichAll(ctx, h.rates, s.Invoices, to)
	if err != nil {
		writeErr(w, log, err, "Rate enrichment failed")
		return
	}

	updated, err := h.store.Update(ctx, id, func(s *session.Session) error {
		s.Invoices = enriched
		s.Status = session.StatusEnriched
		return nil
	})
	if err != nil {
		writeErr(w, log, err, "Failed to store enriched invoices")
		return
	}

	log.Info().Int("count", len(enriched)).Str("to", to).Msg("Invoices enriched")
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"status":   updated.Status,
		"invoices": nonNilRecords(updated.Invoices),
	})
}

// Finalize handles POST /api/invoice/{sessionId}/finalize and
// POST /api/finalize/{sessionId}. It books the session's stored invoices.
func (h *BookingHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	log := logFor(h.log, r, id)

	result, err := h.book(r.Context(), log, id, nil, session.StatusCompleted)
	if err != nil {
		writeErr(w, log, err, "Finalize failed")
		return
	}

	refs := make([]string, len(result.bookings))
	for i, b := range result.bookings {
		refs[i] = b.Reference
	}

	resp := map[string]any{
		"success":    true,
		"count":      len(result.bookings),
		"invoiceRef": refs[0],
		"references": refs,
		"bookings":   result.bookings,
		"message":    "Invoice booked successfully",
	}
	if result.exportJobID != "" {
		resp["exportJobId"] = result.exportJobID
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

type bookRequest struct {
	SessionID string           `json:"sessionId"`
	Invoices  []invoice.Record `json:"invoices"`
}

// Book handles POST /api/invoice/book
// Body: {"sessionId": "...", "invoices": [...]}. The invoices replace the
// session's stored set once they pass validation.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	log := logFor(h.log, r, "")

	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, log, err, "Invalid book body")
		return
	}
	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		writeErr(w, log, newBadRequest("sessionId is required"), "Invalid book body")
		return
	}
	log = logFor(h.log, r, id)

	if err := invoice.ValidateForBooking(req.Invoices); err != nil {
		writeErr(w, log, err, "Invoices rejected")
		return
	}

	result, err := h.book(r.Context(), log, id, req.Invoices, session.StatusBooked)
	if err != nil {
		writeErr(w, log, err, "Booking failed")
		return
	}

	resp := map[string]any{
		"success":  true,
		"count":    len(result.bookings),
		"bookings": result.bookings,
	}
	if result.exportJobID != "" {
		resp["exportJobId"] = result.exportJobID
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

type bookingResult struct {
	bookings    []invoice.BookingResult
	exportJobID string
}

// book runs a guarded booking of one session. With replace == nil the
// stored invoices are booked. The session is claimed first: a session whose
// current invoice set is already booked, or which has a booking in flight,
// yields errBookingConflict. A failed batch releases the claim and leaves
// status and bookings as they were.
func (h *BookingHandler) book(ctx context.Context, log zerolog.Logger, id string, replace []invoice.Record, final session.Status) (*bookingResult, error) {
	var (
		toBook          []invoice.Record
		prevFingerprint string
		documentURI     string
	)

	_, err := h.store.Update(ctx, id, func(s *session.Session) error {
		records := s.Invoices
		if replace != nil {
			records = replace
		}
		if err := invoice.ValidateForBooking(records); err != nil {
			return err
		}
		fp, err := invoice.Fingerprint(records)
		if err != nil {
			return err
		}
		if s.BookingInFlight || s.BookingFingerprint == fp {
			return errBookingConflict
		}

		prevFingerprint = s.BookingFingerprint
		s.BookingFingerprint = fp
		s.BookingInFlight = true
		if replace != nil {
			s.Invoices = invoice.CloneRecords(replace)
		}
		toBook = invoice.CloneRecords(records)
		documentURI = s.DocumentURI
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int("count", len(toBook)).Msg("Booking invoices")

	bookings, bookErr := payables.BookAll(ctx, h.tokens, h.booker, toBook)

	_, err = h.store.Update(context.WithoutCancel(ctx), id, func(s *session.Session) error {
		s.BookingInFlight = false
		if bookErr != nil {
			s.BookingFingerprint = prevFingerprint
			return nil
		}
		s.Bookings = bookings
		s.Status = final
		return nil
	})
	if bookErr != nil {
		return nil, fmt.Errorf("%w: %w", errPayables, bookErr)
	}
	if err != nil {
		return nil, err
	}

	log.Info().Int("count", len(bookings)).Str("status", string(final)).Msg("Invoices booked")

	result := &bookingResult{bookings: bookings}
	if h.publisher != nil {
		job := jobs.NewExportBookingsJob(id, ledger.EntriesFor(id, documentURI, toBook, bookings))
		if err := h.publisher.PublishExportBookings(ctx, job); err != nil {
			log.Warn().Err(err).Msg("Failed to enqueue booking export")
		} else {
			result.exportJobID = job.JobID
		}
	}
	return result, nil
}
