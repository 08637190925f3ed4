package handlers

import (
	"net/http"
	"time"

	"github.com/dvloznov/invoice-intake/internal/api/middleware"
	"github.com/dvloznov/invoice-intake/internal/session"
)

// HealthHandler reports liveness and a few process counters.
type HealthHandler struct {
	store    session.Store
	provider string
	started  time.Time
	now      func() time.Time
}

// NewHealthHandler creates a health handler. provider names the
// configured extraction vendor.
func NewHealthHandler(store session.Store, provider string) *HealthHandler {
	return &HealthHandler{store: store, provider: provider, started: time.Now(), now: time.Now}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"time":               now.Format(time.RFC3339),
		"sessions":           h.store.Len(),
		"extractionProvider": h.provider,
		"uptime":             now.Sub(h.started).Round(time.Second).String(),
	})
}

// NotFound answers unknown routes with the error envelope.
func NotFound(w http.ResponseWriter, r *http.Request) {
	middleware.WriteError(w, http.StatusNotFound, middleware.CodeNotFound, "Route not found: "+r.Method+" "+r.URL.Path)
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, middleware.CodeMethodNotAllowed, "Method not allowed")
}
