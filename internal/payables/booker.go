package payables

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dvloznov/invoice-intake/internal/invoice"
)

const (
	referencePrefix = "AP"
	suffixMin       = 10000
	suffixSpan      = 90000
	maxDraws        = 1000
)

var (
	// ErrNoToken is returned when Book is called without a token.
	ErrNoToken = errors.New("booking requires a token")
	// ErrReferencesExhausted is returned when no unused reference could be drawn.
	ErrReferencesExhausted = errors.New("no unused booking reference left")
)

// Booker submits one invoice to the payables system.
type Booker interface {
	Book(ctx context.Context, tok Token, rec invoice.Record) (invoice.BookingResult, error)
}

// MockBooker fabricates references of the form AP-<year>-<5 digits>. It
// keeps no record of what was booked: booking the same invoice twice gives
// two references. A reference is never handed out twice by one MockBooker.
type MockBooker struct {
	latency time.Duration
	now     func() time.Time
	intn    func(n int) int

	mu     sync.Mutex
	issued map[string]struct{}
}

// NewMockBooker creates a booker.
func NewMockBooker(opts ...Option) *MockBooker {
	o := applyOptions(opts)
	if o.intn == nil {
		o.intn = rand.IntN
	}
	return &MockBooker{
		latency: o.latency,
		now:     o.now,
		intn:    o.intn,
		issued:  make(map[string]struct{}),
	}
}

func (b *MockBooker) Book(ctx context.Context, tok Token, rec invoice.Record) (invoice.BookingResult, error) {
	if tok == "" {
		return invoice.BookingResult{}, fmt.Errorf("Book: %w", ErrNoToken)
	}
	if err := sleep(ctx, b.latency); err != nil {
		return invoice.BookingResult{}, fmt.Errorf("Book: %w", err)
	}

	bookedAt := b.now().UTC()
	ref, err := b.nextReference(bookedAt.Year())
	if err != nil {
		return invoice.BookingResult{}, fmt.Errorf("Book: %w", err)
	}

	amount, _ := rec.Number(invoice.FieldTotalAmount)
	supplier := rec.String(invoice.FieldSupplierNumber)
	if n, ok := rec.Number(invoice.FieldSupplierNumber); ok {
		supplier = fmt.Sprintf("%d", int64(n))
	}
	return invoice.BookingResult{
		Reference:      ref,
		InvoiceNumber:  rec.String(invoice.FieldInvoiceNumber),
		SupplierNumber: supplier,
		Amount:         amount,
		Currency:       rec.String(invoice.FieldCurrency),
		BookedAt:       bookedAt,
	}, nil
}

// Issued returns how many references have been handed out.
func (b *MockBooker) Issued() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.issued)
}

func (b *MockBooker) nextReference(year int) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for range maxDraws {
		ref := fmt.Sprintf("%s-%d-%05d", referencePrefix, year, suffixMin+b.intn(suffixSpan))
		if _, dup := b.issued[ref]; dup {
			continue
		}
		b.issued[ref] = struct{}{}
		return ref, nil
	}
	return "", ErrReferencesExhausted
}
