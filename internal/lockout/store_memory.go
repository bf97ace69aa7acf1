package lockout

import (
	"context"
	"sync"
	"time"

	"verichain/pkg/requestcontext"
)

type record struct {
	failures    int
	windowEnds  time.Time
	lockedUntil *time.Time
}

// InMemoryStore serves single-replica deployments and tests.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]*record
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*record)}
}

func (s *InMemoryStore) RecordFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	r, ok := s.records[key]
	if !ok {
		r = &record{}
		s.records[key] = r
	}
	if !now.Before(r.windowEnds) {
		r.failures = 0
		r.windowEnds = now.Add(window)
	}
	r.failures++
	return r.failures, nil
}

func (s *InMemoryStore) LockedUntil(ctx context.Context, key string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[key]
	if !ok || r.lockedUntil == nil {
		return nil, nil
	}
	if !requestcontext.Now(ctx).Before(*r.lockedUntil) {
		r.lockedUntil = nil
		return nil, nil
	}
	until := *r.lockedUntil
	return &until, nil
}

func (s *InMemoryStore) Lock(_ context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[key]
	if !ok {
		r = &record{}
		s.records[key] = r
	}
	r.lockedUntil = &until
	// Start over once the lock lapses.
	r.failures = 0
	r.windowEnds = time.Time{}
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}
