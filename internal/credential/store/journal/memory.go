package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"verichain/internal/credential/models"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/sentinel"
)

// InMemory keeps issuance attempts and claim intents in memory.
type InMemory struct {
	mu       sync.RWMutex
	attempts map[string]*models.IssuanceAttempt
	intents  map[id.CredentialID]*models.ClaimIntent
}

func NewInMemory() *InMemory {
	return &InMemory{
		attempts: make(map[string]*models.IssuanceAttempt),
		intents:  make(map[id.CredentialID]*models.ClaimIntent),
	}
}

func (s *InMemory) GetAttempt(_ context.Context, requestID string) (*models.IssuanceAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.attempts[requestID]; ok {
		return cloneAttempt(a), nil
	}
	return nil, sentinel.ErrNotFound
}

// CreateAttempt returns sentinel.ErrAlreadyUsed when the request id is taken.
func (s *InMemory) CreateAttempt(_ context.Context, a *models.IssuanceAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[a.RequestID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.attempts[a.RequestID] = cloneAttempt(a)
	return nil
}

func (s *InMemory) UpdateAttempt(_ context.Context, a *models.IssuanceAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[a.RequestID]; !ok {
		return sentinel.ErrNotFound
	}
	s.attempts[a.RequestID] = cloneAttempt(a)
	return nil
}

// ListStalledAttempts returns incomplete attempts not touched since before.
func (s *InMemory) ListStalledAttempts(_ context.Context, before time.Time, limit int) ([]*models.IssuanceAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.IssuanceAttempt
	for _, a := range s.attempts {
		if a.Stage == models.StageCompleted || !a.UpdatedAt.Before(before) {
			continue
		}
		out = append(out, cloneAttempt(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindInFlightAttempt returns the oldest attempt for the serial whose mint may
// be on chain without a credential.
func (s *InMemory) FindInFlightAttempt(_ context.Context, institutionID id.InstitutionID, fingerprint string) (*models.IssuanceAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.IssuanceAttempt
	for _, a := range s.attempts {
		if a.InstitutionID != institutionID || a.Fingerprint != fingerprint || !a.Stage.MayHaveMinted() {
			continue
		}
		if found == nil || a.CreatedAt.Before(found.CreatedAt) {
			found = a
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return cloneAttempt(found), nil
}

func (s *InMemory) GetIntent(_ context.Context, credID id.CredentialID) (*models.ClaimIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if in, ok := s.intents[credID]; ok {
		cp := *in
		return &cp, nil
	}
	return nil, sentinel.ErrNotFound
}

// PutIntent creates or replaces the intent for a credential. Callers hold the
// per-credential claim lock.
func (s *InMemory) PutIntent(_ context.Context, in *models.ClaimIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *in
	s.intents[in.CredentialID] = &cp
	return nil
}

// ListOpenIntents returns pending or submitted intents not touched since before.
func (s *InMemory) ListOpenIntents(_ context.Context, before time.Time, limit int) ([]*models.ClaimIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ClaimIntent
	for _, in := range s.intents {
		if !in.State.IsOpen() || !in.UpdatedAt.Before(before) {
			continue
		}
		cp := *in
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneAttempt(a *models.IssuanceAttempt) *models.IssuanceAttempt {
	cp := *a
	if a.CredentialID != nil {
		c := *a.CredentialID
		cp.CredentialID = &c
	}
	return &cp
}
