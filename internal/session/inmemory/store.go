package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/invoice-intake/internal/session"
)

// Store is an in-memory implementation of session.Store.
// Updates on one session id are serialized by a per-entry mutex, so two
// requests racing on the same id never interleave their mutations.
// Data is lost on restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	policy   session.EvictionPolicy
	now      func() time.Time
}

type entry struct {
	mu      sync.Mutex
	session *session.Session
	// removed is set under mu when Sweep drops the entry from the map.
	removed bool
}

// Option configures a Store.
type Option func(*Store)

// WithEvictionPolicy sets the policy Sweep applies. Defaults to NeverEvict.
func WithEvictionPolicy(p session.EvictionPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a new in-memory session store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*entry),
		policy:   session.NeverEvict{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements the session.Store interface.
func (s *Store) Create(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	s.mu.Lock()
	e, exists := s.sessions[id]
	if !exists {
		now := s.now()
		e = &entry{session: &session.Session{
			ID:        id,
			Status:    session.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}}
		s.sessions[id] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// Get implements the session.Store interface.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	return e.session.Clone(), nil
}

// Update implements the session.Store interface.
// The mutator works on a copy that replaces the stored session only when it
// returns nil.
func (s *Store) Update(ctx context.Context, id string, fn session.Mutator) (*session.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.update(e, id, fn)
}

func (s *Store) update(e *entry, id string, fn session.Mutator) (*session.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Sweep may have dropped the entry between lookup and Lock.
	if e.removed {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}

	working := e.session.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.ID = id
	working.UpdatedAt = s.now()
	e.session = working

	return working.Clone(), nil
}

// Len implements the session.Store interface.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes every session the eviction policy reports as expired and
// returns how many were dropped.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		if s.policy.Expired(e.session, now) {
			e.removed = true
			delete(s.sessions, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// StartJanitor runs Sweep every interval until ctx is cancelled.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.sessions[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	return e, nil
}

// Ensure Store implements the session.Store interface.
var _ session.Store = (*Store)(nil)
