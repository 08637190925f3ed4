// Package api assembles the HTTP routes of the intake service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-intake/internal/api/handlers"
	"github.com/dvloznov/invoice-intake/internal/api/middleware"
)

// Handlers groups every endpoint handler.
type Handlers struct {
	Sessions *handlers.SessionsHandler
	Upload   *handlers.UploadHandler
	Booking  *handlers.BookingHandler
	Rates    *handlers.RatesHandler
	Jobs     *handlers.JobsHandler
	Health   *handlers.HealthHandler
}

// NewRouter wires the routes behind the middleware chain. staticDir is
// served under /public/.
func NewRouter(log zerolog.Logger, h Handlers, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS())

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	r.Get("/health", h.Health.Health)
	r.Get("/upload/{sessionId}", h.Sessions.UploadPage)
	r.Handle("/public/*", http.StripPrefix("/public/", http.FileServer(http.Dir(staticDir))))

	r.Route("/api", func(r chi.Router) {
		r.Post("/invoice/new", h.Sessions.NewSession)
		r.Post("/upload", h.Upload.Upload)

		r.Get("/invoice/raw/{sessionId}", h.Sessions.GetRawInvoice)
		r.Get("/invoice/{sessionId}", h.Sessions.GetInvoice)
		r.Put("/invoice/{sessionId}", h.Sessions.UpdateInvoice)
		r.Get("/invoice/{sessionId}/document", h.Upload.Document)

		r.Post("/invoice/{sessionId}/enrich", h.Booking.Enrich)
		r.Post("/invoice/{sessionId}/finalize", h.Booking.Finalize)
		r.Post("/finalize/{sessionId}", h.Booking.Finalize)
		r.Post("/invoice/book", h.Booking.Book)

		r.Get("/exchange-rate/{currency}", h.Rates.ExchangeRate)
		r.Get("/rate/{currency}", h.Rates.Rate)
		r.Get("/exchange-rates", h.Rates.ExchangeRates)

		r.Get("/jobs", h.Jobs.ListJobs)
		r.Get("/jobs/{jobId}", h.Jobs.GetJob)
	})

	return r
}
