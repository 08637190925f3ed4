package payables

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/invoice-intake/internal/invoice"
)

var referencePattern = regexp.MustCompile(`^AP-\d{4}-\d{5}$`)

func fixedClock() func() time.Time {
	ts := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func TestRateTable_Lookup(t *testing.T) {
	table := NewRateTable(WithClock(fixedClock()))

	tests := []struct {
		currency string
		want     float64
		known    bool
	}{
		{"USD", 3.6725, true},
		{" eur ", 3.98, true},
		{"AED", 1.0, true},
		{"XYZ", 1.0, false},
		{"", 1.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.currency, func(t *testing.T) {
			rate, err := table.Lookup(context.Background(), tt.currency)
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if rate.Rate != tt.want || rate.Known != tt.known {
				t.Errorf("Lookup(%q) = %+v, want rate %v known %v", tt.currency, rate, tt.want, tt.known)
			}
			if rate.To != BaseCurrency {
				t.Errorf("To = %q", rate.To)
			}
		})
	}
}

func TestRateTable_Cross(t *testing.T) {
	table := NewRateTable()
	rate, err := table.Cross(context.Background(), "USD", "EUR")
	if err != nil {
		t.Fatalf("Cross() error = %v", err)
	}
	want := 3.6725 / 3.98
	if math.Abs(rate.Rate-want) > 1e-12 {
		t.Errorf("Cross(USD, EUR) = %v, want %v", rate.Rate, want)
	}

	rate, err = table.Cross(context.Background(), "GBP", "")
	if err != nil {
		t.Fatalf("Cross() error = %v", err)
	}
	if rate.To != "AED" || rate.Rate != 4.64 {
		t.Errorf("Cross(GBP, \"\") = %+v", rate)
	}
}

func TestRateTable_All(t *testing.T) {
	table := NewRateTable()
	rates, _ := table.All()
	rates["USD"] = 99
	again, _ := table.All()
	if again["USD"] != 3.6725 {
		t.Error("All() exposed the internal table")
	}
	if len(table.Currencies()) != len(DefaultRates) {
		t.Errorf("Currencies() = %v", table.Currencies())
	}
}

func TestRateTable_LookupHonoursContext(t *testing.T) {
	table := NewRateTable(WithLatency(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := table.Lookup(ctx, "USD"); !errors.Is(err, context.Canceled) {
		t.Errorf("Lookup() error = %v, want context.Canceled", err)
	}
}

func TestWithToken_ReleasesOnEveryPath(t *testing.T) {
	provider := NewMockTokenProvider()
	ctx := context.Background()

	if _, err := WithToken(ctx, provider, func(ctx context.Context, tok Token) (int, error) {
		if tok == "" {
			t.Error("empty token")
		}
		return 1, nil
	}); err != nil {
		t.Fatalf("WithToken() error = %v", err)
	}

	boom := errors.New("boom")
	if _, err := WithToken(ctx, provider, func(ctx context.Context, tok Token) (int, error) {
		return 0, boom
	}); !errors.Is(err, boom) {
		t.Errorf("WithToken() error = %v, want boom", err)
	}

	func() {
		defer func() { _ = recover() }()
		_, _ = WithToken(ctx, provider, func(ctx context.Context, tok Token) (int, error) {
			panic("booking exploded")
		})
	}()

	if n := provider.Active(); n != 0 {
		t.Errorf("Active() = %d after all scopes exited, want 0", n)
	}
}

func TestMockTokenProvider_ReleaseUnknown(t *testing.T) {
	provider := NewMockTokenProvider()
	if err := provider.Release(context.Background(), "tok_missing"); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("Release() error = %v, want ErrUnknownToken", err)
	}
}

func TestMockBooker_Book(t *testing.T) {
	booker := NewMockBooker(WithClock(fixedClock()))
	rec := invoice.Record{
		invoice.FieldInvoiceNumber:  "INV-1",
		invoice.FieldSupplierNumber: 100102,
		invoice.FieldTotalAmount:    250.5,
		invoice.FieldCurrency:       "AED",
	}

	first, err := booker.Book(context.Background(), "tok", rec)
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}
	second, err := booker.Book(context.Background(), "tok", rec)
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}

	for _, res := range []invoice.BookingResult{first, second} {
		if !referencePattern.MatchString(res.Reference) {
			t.Errorf("reference %q does not match AP-<year>-<5 digits>", res.Reference)
		}
		if res.Reference[3:7] != "2025" {
			t.Errorf("reference %q does not carry the clock year", res.Reference)
		}
	}
	if first.Reference == second.Reference {
		t.Errorf("booking twice returned the same reference %q", first.Reference)
	}
	if first.InvoiceNumber != "INV-1" || first.SupplierNumber != "100102" || first.Amount != 250.5 || first.Currency != "AED" {
		t.Errorf("Book() = %+v", first)
	}
}

func TestMockBooker_NeverReissues(t *testing.T) {
	draws := []int{5, 5, 5, 7}
	var i int
	booker := NewMockBooker(WithClock(fixedClock()), WithRandom(func(n int) int {
		v := draws[i%len(draws)]
		i++
		return v
	}))

	a, _ := booker.Book(context.Background(), "tok", invoice.Record{})
	b, _ := booker.Book(context.Background(), "tok", invoice.Record{})
	if a.Reference != "AP-2025-10005" || b.Reference != "AP-2025-10007" {
		t.Errorf("references = %q, %q", a.Reference, b.Reference)
	}
}

func TestMockBooker_Exhausted(t *testing.T) {
	booker := NewMockBooker(WithRandom(func(int) int { return 0 }))
	if _, err := booker.Book(context.Background(), "tok", invoice.Record{}); err != nil {
		t.Fatalf("first Book() error = %v", err)
	}
	if _, err := booker.Book(context.Background(), "tok", invoice.Record{}); !errors.Is(err, ErrReferencesExhausted) {
		t.Errorf("second Book() error = %v, want ErrReferencesExhausted", err)
	}
}

func TestMockBooker_RequiresToken(t *testing.T) {
	if _, err := NewMockBooker().Book(context.Background(), "", invoice.Record{}); !errors.Is(err, ErrNoToken) {
		t.Errorf("Book() error = %v, want ErrNoToken", err)
	}
}

// slowBooker completes in reverse order of submission and can fail on one
// invoice number.
type slowBooker struct {
	failOn string
	mu     sync.Mutex
	calls  int
}

func (b *slowBooker) Book(ctx context.Context, tok Token, rec invoice.Record) (invoice.BookingResult, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()

	num := rec.String(invoice.FieldInvoiceNumber)
	if num == b.failOn {
		return invoice.BookingResult{}, errors.New("payables rejected " + num)
	}
	idx, _ := rec.Number("idx")
	select {
	case <-time.After(time.Duration(10-idx) * 5 * time.Millisecond):
	case <-ctx.Done():
		return invoice.BookingResult{}, ctx.Err()
	}
	return invoice.BookingResult{Reference: "REF-" + num, InvoiceNumber: num}, nil
}

func records(n int) []invoice.Record {
	out := make([]invoice.Record, n)
	for i := range out {
		out[i] = invoice.Record{
			invoice.FieldInvoiceNumber: string(rune('A' + i)),
			"idx":                      i,
		}
	}
	return out
}

func TestBookAll_PreservesOrder(t *testing.T) {
	tokens := NewMockTokenProvider()
	results, err := BookAll(context.Background(), tokens, &slowBooker{}, records(5))
	if err != nil {
		t.Fatalf("BookAll() error = %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("BookAll() returned %d results", len(results))
	}
	for i, res := range results {
		want := string(rune('A' + i))
		if res.InvoiceNumber != want {
			t.Errorf("results[%d].InvoiceNumber = %q, want %q", i, res.InvoiceNumber, want)
		}
	}
	if tokens.Active() != 0 {
		t.Errorf("Active() = %d, want 0", tokens.Active())
	}
}

func TestBookAll_FailFast(t *testing.T) {
	tokens := NewMockTokenProvider()
	results, err := BookAll(context.Background(), tokens, &slowBooker{failOn: "C"}, records(5))
	if err == nil {
		t.Fatal("BookAll() error = nil, want failure")
	}
	if results != nil {
		t.Errorf("BookAll() results = %v, want nil on failure", results)
	}
	if tokens.Active() != 0 {
		t.Errorf("Active() = %d after failed batch, want 0", tokens.Active())
	}
}

func TestBookAll_DistinctReferences(t *testing.T) {
	results, err := BookAll(context.Background(), NewMockTokenProvider(), NewMockBooker(), records(20))
	if err != nil {
		t.Fatalf("BookAll() error = %v", err)
	}
	seen := make(map[string]bool)
	for _, res := range results {
		if !referencePattern.MatchString(res.Reference) {
			t.Errorf("reference %q does not match pattern", res.Reference)
		}
		if seen[res.Reference] {
			t.Errorf("duplicate reference %q", res.Reference)
		}
		seen[res.Reference] = true
	}
}

func TestEnrichAll(t *testing.T) {
	table := NewRateTable(WithClock(fixedClock()))
	in := []invoice.Record{
		{invoice.FieldCurrency: "USD", invoice.FieldTotalAmount: 100.0},
		{invoice.FieldCurrency: "AED", invoice.FieldTotalAmount: "50"},
		{invoice.FieldTotalAmount: 10.0},
	}

	out, err := EnrichAll(context.Background(), table, in, "")
	if err != nil {
		t.Fatalf("EnrichAll() error = %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("EnrichAll() returned %d records", len(out))
	}
	if out[0][invoice.FieldAmountInBase] != 367.25 || out[0][invoice.FieldExchangeRate] != 3.6725 {
		t.Errorf("out[0] = %v", out[0])
	}
	if out[1][invoice.FieldAmountInBase] != 50.0 || out[1][invoice.FieldBaseCurrency] != "AED" {
		t.Errorf("out[1] = %v", out[1])
	}
	if out[2][invoice.FieldExchangeRate] != 1.0 {
		t.Errorf("out[2] = %v", out[2])
	}
	if out[0][invoice.FieldRateAsOf] != "2025-03-14T10:00:00Z" {
		t.Errorf("rate_as_of = %v", out[0][invoice.FieldRateAsOf])
	}
	if _, touched := in[0][invoice.FieldExchangeRate]; touched {
		t.Error("EnrichAll() modified its input")
	}
}

func TestEnrichAll_RejectsNonNumericTotal(t *testing.T) {
	table := NewRateTable(WithClock(fixedClock()))
	for _, total := range []any{"Inf", "NaN", "lots"} {
		in := []invoice.Record{
			{invoice.FieldCurrency: "USD", invoice.FieldTotalAmount: 10.0},
			{invoice.FieldInvoiceNumber: "INV-2", invoice.FieldCurrency: "USD", invoice.FieldTotalAmount: total},
		}
		out, err := EnrichAll(context.Background(), table, in, "")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("EnrichAll(total=%v) error = %v, want ErrInvalidAmount", total, err)
		}
		if out != nil {
			t.Errorf("EnrichAll(total=%v) returned records on failure", total)
		}
	}
}
