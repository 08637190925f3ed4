package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-intake/internal/api/middleware"
	"github.com/dvloznov/invoice-intake/internal/payables"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// RatesHandler serves the mock rate table.
type RatesHandler struct {
	rates *payables.RateTable
	log   zerolog.Logger
}

// NewRatesHandler creates a rates handler.
func NewRatesHandler(rates *payables.RateTable, log zerolog.Logger) *RatesHandler {
	return &RatesHandler{rates: rates, log: log}
}

func parseCurrency(raw, field string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !currencyCode.MatchString(code) {
		return "", newBadRequest("%s must be a three-letter currency code, got %q", field, raw)
	}
	return code, nil
}

// ExchangeRate handles GET /api/exchange-rate/{currency}?to=AED
func (h *RatesHandler) ExchangeRate(w http.ResponseWriter, r *http.Request) {
	log := logFor(h.log, r, "")

	from, err := parseCurrency(chi.URLParam(r, "currency"), "currency")
	if err != nil {
		writeErr(w, log, err, "Invalid currency")
		return
	}
	to := payables.BaseCurrency
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = parseCurrency(raw, "to"); err != nil {
			writeErr(w, log, err, "Invalid currency")
			return
		}
	}

	rate, err := h.rates.Cross(r.Context(), from, to)
	if err != nil {
		writeErr(w, log, err, "Rate lookup failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"from":    rate.Currency,
		"to":      rate.To,
		"rate":    rate.Rate,
		"asOf":    rate.AsOf,
	})
}

// Rate handles GET /api/rate/{currency}
func (h *RatesHandler) Rate(w http.ResponseWriter, r *http.Request) {
	log := logFor(h.log, r, "")

	code, err := parseCurrency(chi.URLParam(r, "currency"), "currency")
	if err != nil {
		writeErr(w, log, err, "Invalid currency")
		return
	}

	rate, err := h.rates.Lookup(r.Context(), code)
	if err != nil {
		writeErr(w, log, err, "Rate lookup failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"currency": rate.Currency,
		"rate":     rate.Rate,
		"base":     rate.To,
		"asOf":     rate.AsOf,
	})
}

// ExchangeRates handles GET /api/exchange-rates
func (h *RatesHandler) ExchangeRates(w http.ResponseWriter, r *http.Request) {
	rates, asOf := h.rates.All()
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"base":    payables.BaseCurrency,
		"rates":   rates,
		"asOf":    asOf,
	})
}
