// Package payables mocks the downstream systems an invoice is booked
// against: a currency rate table, a token service and the payables
// booker.
package payables

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// BaseCurrency is the currency every table rate is quoted in.
const BaseCurrency = "AED"

// DefaultRates holds AED per one unit of each currency.
var DefaultRates = map[string]float64{
	"AED": 1.0,
	"USD": 3.6725,
	"EUR": 3.98,
	"GBP": 4.64,
	"SAR": 0.9793,
	"CHF": 4.15,
	"SEK": 0.348,
	"INR": 0.0441,
}

// Rate is one quoted conversion. Rate converts one unit of Currency into To.
type Rate struct {
	Currency string    `json:"currency"`
	To       string    `json:"to"`
	Rate     float64   `json:"rate"`
	AsOf     time.Time `json:"asOf"`
	Known    bool      `json:"-"`
}

// RateTable is a fixed in-memory rate source with simulated latency.
type RateTable struct {
	rates   map[string]float64
	latency time.Duration
	now     func() time.Time
}

// NewRateTable builds a table from DefaultRates.
func NewRateTable(opts ...Option) *RateTable {
	o := applyOptions(opts)
	rates := make(map[string]float64, len(DefaultRates))
	for code, r := range DefaultRates {
		rates[code] = r
	}
	return &RateTable{rates: rates, latency: o.latency, now: o.now}
}

// Lookup returns the base-currency rate of a currency. Unknown codes quote
// at 1.0.
func (t *RateTable) Lookup(ctx context.Context, currency string) (Rate, error) {
	if err := sleep(ctx, t.latency); err != nil {
		return Rate{}, fmt.Errorf("Lookup: %w", err)
	}
	code := normalizeCode(currency)
	r, ok := t.rates[code]
	if !ok {
		r = 1.0
	}
	return Rate{Currency: code, To: BaseCurrency, Rate: r, AsOf: t.now().UTC(), Known: ok}, nil
}

// Cross converts between two currencies through the base currency.
func (t *RateTable) Cross(ctx context.Context, from, to string) (Rate, error) {
	if strings.TrimSpace(to) == "" {
		to = BaseCurrency
	}
	src, err := t.Lookup(ctx, from)
	if err != nil {
		return Rate{}, fmt.Errorf("Cross: from: %w", err)
	}
	dst, err := t.Lookup(ctx, to)
	if err != nil {
		return Rate{}, fmt.Errorf("Cross: to: %w", err)
	}
	return Rate{
		Currency: src.Currency,
		To:       dst.Currency,
		Rate:     src.Rate / dst.Rate,
		AsOf:     src.AsOf,
		Known:    src.Known && dst.Known,
	}, nil
}

// All returns a copy of the whole table and its quote time.
func (t *RateTable) All() (map[string]float64, time.Time) {
	out := make(map[string]float64, len(t.rates))
	for code, r := range t.rates {
		out[code] = r
	}
	return out, t.now().UTC()
}

// Currencies lists the known codes in order.
func (t *RateTable) Currencies() []string {
	codes := make([]string, 0, len(t.rates))
	for code := range t.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
