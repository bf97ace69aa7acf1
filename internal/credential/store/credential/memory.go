package credential

import (
	"context"
	"sort"
	"strings"
	"sync"

	"verichain/internal/credential/models"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/sentinel"
)

type serialKey struct {
	institution id.InstitutionID
	fingerprint string
}

// InMemory stores credentials in memory for tests and local runs.
// Records are copied on the way in and out so callers never share state with the store.
type InMemory struct {
	mu          sync.RWMutex
	credentials map[id.CredentialID]*models.Credential
	byPublicID  map[id.PublicID]id.CredentialID
	bySerial    map[serialKey]id.CredentialID
	byToken     map[string]id.CredentialID
}

func NewInMemory() *InMemory {
	return &InMemory{
		credentials: make(map[id.CredentialID]*models.Credential),
		byPublicID:  make(map[id.PublicID]id.CredentialID),
		bySerial:    make(map[serialKey]id.CredentialID),
		byToken:     make(map[string]id.CredentialID),
	}
}

// Insert persists an issued credential. Duplicate ids, public ids, token ids
// or (institution, serial) pairs return sentinel.ErrAlreadyUsed.
func (s *InMemory) Insert(_ context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := serialKey{institution: c.InstitutionID, fingerprint: c.SerialFingerprint}
	if _, ok := s.credentials[c.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.byPublicID[c.PublicID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.bySerial[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.byToken[c.TokenID]; ok {
		return sentinel.ErrAlreadyUsed
	}

	stored := clone(c)
	s.credentials[c.ID] = stored
	s.byPublicID[c.PublicID] = c.ID
	s.bySerial[key] = c.ID
	s.byToken[c.TokenID] = c.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, credID id.CredentialID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.credentials[credID]; ok {
		return clone(c), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByPublicID(_ context.Context, publicID id.PublicID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if credID, ok := s.byPublicID[publicID]; ok {
		return clone(s.credentials[credID]), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) SerialExists(_ context.Context, institutionID id.InstitutionID, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bySerial[serialKey{institution: institutionID, fingerprint: fingerprint}]
	return ok, nil
}

// CommitClaim stores the claim fields of c only if the stored record is
// still issued. Otherwise it returns sentinel.ErrInvalidState.
func (s *InMemory) CommitClaim(_ context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.credentials[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Status != models.StatusIssued {
		return sentinel.ErrInvalidState
	}
	s.credentials[c.ID] = clone(c)
	return nil
}

// SearchByRecipient matches recipient names case-insensitively by substring,
// optionally restricted to institutions. Newest first.
func (s *InMemory) SearchByRecipient(_ context.Context, name string, institutions []id.InstitutionID, limit int) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make(map[id.InstitutionID]struct{}, len(institutions))
	for _, inst := range institutions {
		allowed[inst] = struct{}{}
	}
	needle := strings.ToLower(strings.TrimSpace(name))

	var out []*models.Credential
	for _, c := range s.credentials {
		if len(allowed) > 0 {
			if _, ok := allowed[c.InstitutionID]; !ok {
				continue
			}
		}
		if needle != "" && !strings.Contains(strings.ToLower(c.Payload.RecipientName), needle) {
			continue
		}
		out = append(out, clone(c))
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindLatestByRecipientID returns the most recently issued credential for a
// recipient identifier.
func (s *InMemory) FindLatestByRecipientID(_ context.Context, recipientID string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Credential
	for _, c := range s.credentials {
		if c.Payload.RecipientID != recipientID {
			continue
		}
		if latest == nil || c.IssuedAt.After(latest.IssuedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return clone(latest), nil
}

func (s *InMemory) StatsByInstitution(_ context.Context, institutionID id.InstitutionID) (*models.IssuerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.IssuerStats{InstitutionID: institutionID}
	for _, c := range s.credentials {
		if c.InstitutionID != institutionID {
			continue
		}
		stats.Issued++
		if c.Status == models.StatusClaimed {
			stats.Claimed++
		}
	}
	return stats, nil
}

func (s *InMemory) CountByIssuer(_ context.Context, issuerID id.PrincipalID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, c := range s.credentials {
		if c.IssuerID == issuerID {
			n++
		}
	}
	return n, nil
}

func sortNewestFirst(cs []*models.Credential) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].IssuedAt.Equal(cs[j].IssuedAt) {
			return cs[i].ID.String() < cs[j].ID.String()
		}
		return cs[i].IssuedAt.After(cs[j].IssuedAt)
	})
}

func clone(c *models.Credential) *models.Credential {
	cp := *c
	if c.HolderID != nil {
		h := *c.HolderID
		cp.HolderID = &h
	}
	if c.HolderAddress != nil {
		a := *c.HolderAddress
		cp.HolderAddress = &a
	}
	if c.ClaimedAt != nil {
		t := *c.ClaimedAt
		cp.ClaimedAt = &t
	}
	return &cp
}
