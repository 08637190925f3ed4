// Package ledger exports booking results to external reporting stores.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/invoice-intake/internal/invoice"
)

// Entry is one booked invoice as it is exported.
type Entry struct {
	SessionID   string                `json:"sessionId"`
	DocumentURI string                `json:"documentUri,omitempty"`
	Booking     invoice.BookingResult `json:"booking"`
	Invoice     invoice.Record        `json:"invoice"`
}

// EntriesFor pairs bookings with the invoices they were made from. The two
// slices are matched by position.
func EntriesFor(sessionID, documentURI string, invoices []invoice.Record, bookings []invoice.BookingResult) []Entry {
	entries := make([]Entry, len(bookings))
	for i, b := range bookings {
		entries[i] = Entry{SessionID: sessionID, DocumentURI: documentURI, Booking: b}
		if i < len(invoices) {
			entries[i].Invoice = invoices[i].Clone()
		}
	}
	return entries
}

// Sink receives exported bookings. Export must tolerate being called again
// with entries it has already seen.
type Sink interface {
	Name() string
	Export(ctx context.Context, entries []Entry) error
}

// NopSink drops everything.
type NopSink struct{}

func (NopSink) Name() string                                      { return "nop" }
func (NopSink) Export(ctx context.Context, entries []Entry) error { return nil }

// MultiSink fans an export out to several sinks. Every sink is attempted;
// failures are joined.
type MultiSink []Sink

func (m MultiSink) Name() string { return "multi" }

func (m MultiSink) Export(ctx context.Context, entries []Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Export(ctx, entries); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Combine returns the smallest sink covering all of sinks.
func Combine(sinks ...Sink) Sink {
	var active MultiSink
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if _, nop := s.(NopSink); nop {
			continue
		}
		active = append(active, s)
	}
	switch len(active) {
	case 0:
		return NopSink{}
	case 1:
		return active[0]
	default:
		return active
	}
}
