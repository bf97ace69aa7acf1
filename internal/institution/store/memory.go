package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"verichain/internal/institution/models"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/sentinel"
)

// InMemory stores institutions in memory for tests and local runs.
type InMemory struct {
	mu           sync.RWMutex
	institutions map[id.InstitutionID]*models.Institution
	nameIdx      map[string]id.InstitutionID
}

func NewInMemory() *InMemory {
	return &InMemory{
		institutions: make(map[id.InstitutionID]*models.Institution),
		nameIdx:      make(map[string]id.InstitutionID),
	}
}

// Create stores the institution if its name is free (case-insensitive).
func (s *InMemory) Create(_ context.Context, inst *models.Institution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(inst.Name)
	if _, exists := s.nameIdx[lower]; exists {
		return fmt.Errorf("institution name must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	cp := *inst
	s.institutions[inst.ID] = &cp
	s.nameIdx[lower] = inst.ID
	return nil
}

func (s *InMemory) Update(_ context.Context, inst *models.Institution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.institutions[inst.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *inst
	s.institutions[inst.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, institutionID id.InstitutionID) (*models.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if inst, ok := s.institutions[institutionID]; ok {
		cp := *inst
		return &cp, nil
	}
	return nil, sentinel.ErrNotFound
}

// SearchByName matches a case-insensitive substring of the name.
func (s *InMemory) SearchByName(_ context.Context, fragment string, limit int) ([]*models.Institution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(fragment))
	var out []*models.Institution
	for _, inst := range s.institutions {
		if strings.Contains(strings.ToLower(inst.Name), needle) {
			cp := *inst
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
