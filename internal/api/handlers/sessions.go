package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-intake/internal/api/middleware"
	"github.com/dvloznov/invoice-intake/internal/invoice"
	"github.com/dvloznov/invoice-intake/internal/session"
)

// SessionsHandler handles session lifecycle and invoice read/edit endpoints.
type SessionsHandler struct {
	store     session.Store
	staticDir string
	log       zerolog.Logger
	now       func() time.Time
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(store session.Store, staticDir string, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		store:     store,
		staticDir: staticDir,
		log:       log,
		now:       time.Now,
	}
}

// NewSession handles POST /api/invoice/new
func (h *SessionsHandler) NewSession(w http.ResponseWriter, r *http.Request) {
	id := session.NewID(h.now())
	log := logFor(h.log, r, id)

	if _, err := h.store.Create(r.Context(), id); err != nil {
		writeErr(w, log, err, "Failed to create session")
		return
	}

	log.Info().Msg("Session created")
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": id,
		"uploadUrl": fmt.Sprintf("%s://%s/upload/%s", requestScheme(r), r.Host, id),
	})
}

// UploadPage handles GET /upload/{sessionId}
func (h *SessionsHandler) UploadPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if _, err := h.store.Get(r.Context(), id); err != nil {
		writeErr(w, logFor(h.log, r, id), err, "Upload page for unknown session")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, filepath.Join(h.staticDir, "upload.html"))
}

// GetInvoice handles GET /api/invoice/{sessionId}
func (h *SessionsHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	s, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeErr(w, logFor(h.log, r, id), err, "Failed to get session")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"status":   s.Status,
		"invoices": nonNilRecords(s.Invoices),
		"bookings": nonNilBookings(s.Bookings),
	})
}

// GetRawInvoice handles GET /api/invoice/raw/{sessionId}
func (h *SessionsHandler) GetRawInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	s, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeErr(w, logFor(h.log, r, id), err, "Failed to get session")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"status":   s.Status,
		"invoices": nonNilRaw(s.RawInvoices),
	})
}

type updateRequest struct {
	Data *struct {
		Invoices []invoice.Record `json:"invoices"`
		Status   string           `json:"status"`
	} `json:"data"`
}

// UpdateInvoice handles PUT /api/invoice/{sessionId}
// The invoices are stored exactly as sent.
func (h *SessionsHandler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	log := logFor(h.log, r, id)

	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, log, err, "Invalid update body")
		return
	}
	if req.Data == nil || req.Data.Invoices == nil {
		writeErr(w, log, newBadRequest("data.invoices is required"), "Invalid update body")
		return
	}
	for i, rec := range req.Data.Invoices {
		if rec == nil {
			writeErr(w, log, newBadRequest("data.invoices[%d] must be an object", i), "Invalid update body")
			return
		}
	}

	status := session.StatusUserReviewed
	if req.Data.Status != "" {
		st, err := session.ParseStatus(req.Data.Status)
		if err != nil {
			writeErr(w, log, newBadRequest("data.status: %v", err), "Invalid update body")
			return
		}
		status = st
	}

	updated, err := h.store.Update(r.Context(), id, func(s *session.Session) error {
		s.Invoices = req.Data.Invoices
		s.Status = status
		return nil
	})
	if err != nil {
		writeErr(w, log, err, "Failed to update session")
		return
	}

	log.Info().Int("count", len(updated.Invoices)).Str("status", string(updated.Status)).Msg("Invoices updated")
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Invoice data updated",
	})
}

func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
