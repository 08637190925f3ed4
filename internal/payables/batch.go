package payables

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/invoice-intake/internal/invoice"
)

// BookAll books every record in parallel, each call bracketed by its own
// token. Results keep the input order. The first failure cancels the rest
// and is returned alone.
func BookAll(ctx context.Context, tokens TokenProvider, booker Booker, records []invoice.Record) ([]invoice.BookingResult, error) {
	results := make([]invoice.BookingResult, len(records))
	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range records {
		g.Go(func() error {
			res, err := WithToken(gctx, tokens, func(ctx context.Context, tok Token) (invoice.BookingResult, error) {
				return booker.Book(ctx, tok, rec)
			})
			if err != nil {
				return fmt.Errorf("BookAll: invoices[%d] (%s): %w", i, rec.String(invoice.FieldInvoiceNumber), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ErrInvalidAmount is returned by EnrichAll for a record whose total is
// present but not a finite number.
var ErrInvalidAmount = errors.New("total_amount must be a finite number")

// EnrichAll looks up the rate of every record's currency in parallel and
// returns copies carrying exchange_rate, amount_in_base, base_currency and
// rate_as_of. Records without a currency are converted at 1.0.
func EnrichAll(ctx context.Context, rates *RateTable, records []invoice.Record, to string) ([]invoice.Record, error) {
	if to == "" {
		to = BaseCurrency
	}
	out := make([]invoice.Record, len(records))
	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range records {
		g.Go(func() error {
			total, ok := rec.Number(invoice.FieldTotalAmount)
			if !ok && rec.Has(invoice.FieldTotalAmount) {
				return fmt.Errorf("EnrichAll: invoices[%d] (%s): %w", i, rec.String(invoice.FieldInvoiceNumber), ErrInvalidAmount)
			}
			from := rec.String(invoice.FieldCurrency)
			if from == "" {
				from = to
			}
			rate, err := rates.Cross(gctx, from, to)
			if err != nil {
				return fmt.Errorf("EnrichAll: invoices[%d]: %w", i, err)
			}
			enriched, err := applyRate(rec, total, rate)
			if err != nil {
				return fmt.Errorf("EnrichAll: invoices[%d]: %w", i, err)
			}
			out[i] = enriched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func applyRate(rec invoice.Record, total float64, rate Rate) (invoice.Record, error) {
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, ErrInvalidAmount
	}
	if math.IsNaN(rate.Rate) || math.IsInf(rate.Rate, 0) {
		return nil, fmt.Errorf("rate %s->%s is not finite", rate.Currency, rate.To)
	}
	enriched := rec.Clone()
	if enriched == nil {
		enriched = invoice.Record{}
	}
	converted := decimal.NewFromFloat(total).Mul(decimal.NewFromFloat(rate.Rate)).Round(2)

	enriched[invoice.FieldExchangeRate] = rate.Rate
	enriched[invoice.FieldAmountInBase] = converted.InexactFloat64()
	enriched[invoice.FieldBaseCurrency] = rate.To
	enriched[invoice.FieldRateAsOf] = rate.AsOf.Format(time.RFC3339)
	return enriched, nil
}
