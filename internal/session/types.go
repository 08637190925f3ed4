package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/invoice-intake/internal/invoice"
	"github.com/google/uuid"
)

// Status represents where a session is in the intake lifecycle.
type Status string

const (
	// StatusPending indicates the session was created and awaits a document.
	StatusPending Status = "pending"
	// StatusSubmitted indicates a document was received and is being extracted.
	StatusSubmitted Status = "submitted"
	// StatusExtracted indicates business records were produced.
	StatusExtracted Status = "extracted"
	// StatusRawExtracted indicates raw records were produced.
	StatusRawExtracted Status = "raw_extracted"
	// StatusUserReviewed indicates the user edited the records.
	StatusUserReviewed Status = "user_reviewed"
	// StatusUpdated is accepted from clients as an alias of a reviewed edit.
	StatusUpdated Status = "updated"
	// StatusEnriched indicates exchange rates were attached.
	StatusEnriched Status = "enriched"
	// StatusBooked indicates invoices were booked through /api/invoice/book.
	StatusBooked Status = "booked"
	// StatusCompleted indicates the session was finalized.
	StatusCompleted Status = "completed"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// ParseStatus validates a client-supplied status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusPending, StatusSubmitted, StatusExtracted, StatusRawExtracted,
		StatusUserReviewed, StatusUpdated, StatusEnriched, StatusBooked, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Session is one upload's in-flight invoice data.
type Session struct {
	ID          string                  `json:"id"`
	Status      Status                  `json:"status"`
	Invoices    []invoice.Record        `json:"invoices"`
	RawInvoices []invoice.RawRecord     `json:"rawInvoices"`
	Bookings    []invoice.BookingResult `json:"bookings"`

	DocumentName string `json:"documentName,omitempty"`
	DocumentURI  string `json:"documentUri,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// BookingFingerprint identifies the invoice set that was booked or is
	// being booked. Empty when nothing is booked.
	BookingFingerprint string `json:"-"`
	// BookingInFlight is set while a finalize call holds the session.
	BookingInFlight bool `json:"-"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Invoices = invoice.CloneRecords(s.Invoices)
	if s.RawInvoices != nil {
		cp.RawInvoices = append([]invoice.RawRecord(nil), s.RawInvoices...)
	}
	if s.Bookings != nil {
		cp.Bookings = append([]invoice.BookingResult(nil), s.Bookings...)
	}
	return &cp
}

// Mutator changes a session in place. Returning an error aborts the update
// and leaves the stored session untouched.
type Mutator func(s *Session) error

// Store holds sessions for the lifetime of the process.
type Store interface {
	// Create returns the existing session for id or creates a pending one.
	Create(ctx context.Context, id string) (*Session, error)

	// Get returns a copy of the session or ErrNotFound.
	Get(ctx context.Context, id string) (*Session, error)

	// Update applies fn atomically with respect to other updates on the same id
	// and returns a copy of the result.
	Update(ctx context.Context, id string, fn Mutator) (*Session, error)

	// Len returns the number of live sessions.
	Len() int
}

// EvictionPolicy decides whether a session may be dropped.
type EvictionPolicy interface {
	Expired(s *Session, now time.Time) bool
}

// NeverEvict keeps sessions until the process exits.
type NeverEvict struct{}

// Expired implements EvictionPolicy.
func (NeverEvict) Expired(*Session, time.Time) bool { return false }

// TTLEviction drops sessions idle for longer than TTL.
type TTLEviction struct {
	TTL time.Duration
}

// Expired implements EvictionPolicy.
func (p TTLEviction) Expired(s *Session, now time.Time) bool {
	return p.TTL > 0 && now.Sub(s.UpdatedAt) > p.TTL
}

// NewID generates a session identifier such as INV-LX3K9Q2A-1F2E3D.
func NewID(now time.Time) string {
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "INV-" + stamp + "-" + suffix
}
