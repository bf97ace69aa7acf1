package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"verichain/internal/authz"
	"verichain/internal/principal/models"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/sentinel"
)

// InMemory stores principals in memory for tests and local runs. It enforces
// the same uniqueness rules as the database: email case-insensitively and
// custody address across all principals.
type InMemory struct {
	mu         sync.RWMutex
	principals map[id.PrincipalID]*models.Principal
	emailIdx   map[string]id.PrincipalID
	addrIdx    map[id.Address]id.PrincipalID
}

func NewInMemory() *InMemory {
	return &InMemory{
		principals: make(map[id.PrincipalID]*models.Principal),
		emailIdx:   make(map[string]id.PrincipalID),
		addrIdx:    make(map[id.Address]id.PrincipalID),
	}
}

func (s *InMemory) Create(_ context.Context, p *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(p.Email)
	if _, exists := s.emailIdx[email]; exists {
		return fmt.Errorf("email already registered: %w", sentinel.ErrAlreadyUsed)
	}
	if p.CustodyAddress != nil {
		if _, taken := s.addrIdx[*p.CustodyAddress]; taken {
			return fmt.Errorf("custody address already linked: %w", sentinel.ErrAlreadyUsed)
		}
		s.addrIdx[*p.CustodyAddress] = p.ID
	}
	s.principals[p.ID] = clone(p)
	s.emailIdx[email] = p.ID
	return nil
}

// Update persists status and custody address changes.
func (s *InMemory) Update(_ context.Context, p *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.principals[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.CustodyAddress != nil {
		if owner, taken := s.addrIdx[*p.CustodyAddress]; taken && owner != p.ID {
			return fmt.Errorf("custody address already linked: %w", sentinel.ErrAlreadyUsed)
		}
	}
	if existing.CustodyAddress != nil {
		delete(s.addrIdx, *existing.CustodyAddress)
	}
	if p.CustodyAddress != nil {
		s.addrIdx[*p.CustodyAddress] = p.ID
	}
	s.principals[p.ID] = clone(p)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[principalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(p), nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pid, ok := s.emailIdx[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.principals[pid]), nil
}

// ListByInstitution returns principals of role in the institution, oldest first.
func (s *InMemory) ListByInstitution(_ context.Context, institutionID id.InstitutionID, role authz.Role) ([]*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Principal
	for _, p := range s.principals {
		if p.Role == role && p.BelongsTo(institutionID) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) Delete(_ context.Context, principalID id.PrincipalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.emailIdx, strings.ToLower(p.Email))
	if p.CustodyAddress != nil {
		delete(s.addrIdx, *p.CustodyAddress)
	}
	delete(s.principals, principalID)
	return nil
}

func clone(p *models.Principal) *models.Principal {
	cp := *p
	if p.InstitutionID != nil {
		inst := *p.InstitutionID
		cp.InstitutionID = &inst
	}
	if p.CustodyAddress != nil {
		addr := *p.CustodyAddress
		cp.CustodyAddress = &addr
	}
	return &cp
}
