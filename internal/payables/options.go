package payables

import (
	"context"
	"time"
)

type options struct {
	latency time.Duration
	now     func() time.Time
	intn    func(n int) int
}

// Option configures the mock services.
type Option func(*options)

// WithLatency sets the simulated latency of every call.
func WithLatency(d time.Duration) Option {
	return func(o *options) { o.latency = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRandom replaces the source of reference suffixes. intn must return a
// value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(o *options) { o.intn = intn }
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
