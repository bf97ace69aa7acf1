package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"verichain/pkg/platform/outbox"
)

// Store keeps outbox entries in memory for tests and local runs.
type Store struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*outbox.Entry
	order   []uuid.UUID
}

func New() *Store {
	return &Store{entries: make(map[uuid.UUID]*outbox.Entry)}
}

func (s *Store) Append(_ context.Context, entry *outbox.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.ID]; ok {
		return fmt.Errorf("outbox entry %s already exists", entry.ID)
	}
	cp := *entry
	cp.Payload = append([]byte(nil), entry.Payload...)
	s.entries[entry.ID] = &cp
	s.order = append(s.order, entry.ID)
	return nil
}

func (s *Store) FetchUnprocessed(_ context.Context, limit int) ([]*outbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		return nil, nil
	}
	var out []*outbox.Entry
	for _, key := range s.order {
		if e, ok := s.entries[key]; ok && e.IsPending() {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkProcessed(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !e.IsPending() {
		return fmt.Errorf("outbox entry not found or already processed: %s", id)
	}
	t := processedAt
	e.ProcessedAt = &t
	return nil
}

func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.entries {
		if e.IsPending() {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, e := range s.entries {
		if e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

// Events returns the event types of the stored entries in append order.
func (s *Store) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, key := range s.order {
		if e, ok := s.entries[key]; ok {
			out = append(out, e.EventType)
		}
	}
	return out
}
