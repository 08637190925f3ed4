package payables

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownToken is returned when releasing a token that is not held.
var ErrUnknownToken = errors.New("unknown token")

// Token is an opaque handle for one payables call.
type Token string

// TokenProvider hands out short-lived tokens.
type TokenProvider interface {
	Acquire(ctx context.Context) (Token, error)
	Release(ctx context.Context, tok Token) error
}

// MockTokenProvider issues random tokens after a fixed delay and tracks
// which ones are still held.
type MockTokenProvider struct {
	latency time.Duration

	mu     sync.Mutex
	active map[Token]struct{}
}

// NewMockTokenProvider creates a token provider.
func NewMockTokenProvider(opts ...Option) *MockTokenProvider {
	o := applyOptions(opts)
	return &MockTokenProvider{latency: o.latency, active: make(map[Token]struct{})}
}

func (p *MockTokenProvider) Acquire(ctx context.Context) (Token, error) {
	if err := sleep(ctx, p.latency); err != nil {
		return "", fmt.Errorf("Acquire: %w", err)
	}
	tok := Token("tok_" + uuid.NewString())
	p.mu.Lock()
	p.active[tok] = struct{}{}
	p.mu.Unlock()
	return tok, nil
}

func (p *MockTokenProvider) Release(ctx context.Context, tok Token) error {
	p.mu.Lock()
	_, ok := p.active[tok]
	delete(p.active, tok)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("Release: %w: %s", ErrUnknownToken, tok)
	}
	return sleep(ctx, p.latency)
}

// Active returns the number of tokens acquired and not yet released.
func (p *MockTokenProvider) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// WithToken runs fn while holding a token. The token is released on every
// exit path of fn, panics included. A release failure is reported only when
// fn itself succeeded.
func WithToken[T any](ctx context.Context, p TokenProvider, fn func(ctx context.Context, tok Token) (T, error)) (result T, err error) {
	tok, err := p.Acquire(ctx)
	if err != nil {
		return result, fmt.Errorf("WithToken: acquire: %w", err)
	}
	defer func() {
		if relErr := p.Release(context.WithoutCancel(ctx), tok); relErr != nil && err == nil {
			err = fmt.Errorf("WithToken: release: %w", relErr)
		}
	}()
	return fn(ctx, tok)
}
