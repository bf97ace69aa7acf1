package models

import (
	"strings"
	"time"

	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

const maxNameLength = 128

// Institution is an issuing organization. Only its administrative status changes.
type Institution struct {
	ID        id.InstitutionID
	Name      string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewInstitution(institutionID id.InstitutionID, name string, now time.Time) (*Institution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "institution name cannot be empty")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "institution name must be 128 characters or less")
	}
	return &Institution{
		ID:        institutionID,
		Name:      name,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (i *Institution) IsActive() bool {
	return i.Status == StatusActive
}

// Deactivate stops the institution's issuers from issuing. Existing
// credentials stay verifiable and claimable.
func (i *Institution) Deactivate(now time.Time) error {
	if !i.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "institution is already inactive")
	}
	i.Status = StatusInactive
	i.UpdatedAt = now
	return nil
}

func (i *Institution) Reactivate(now time.Time) error {
	if i.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "institution is already active")
	}
	i.Status = StatusActive
	i.UpdatedAt = now
	return nil
}
