// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "verichain/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing PrincipalID where CredentialID is expected.
type (
	InstitutionID uuid.UUID
	PrincipalID   uuid.UUID
	CredentialID  uuid.UUID
	// PublicID is the identifier printed on verification links. It is never used
	// for state transitions.
	PublicID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseInstitutionID(s string) (InstitutionID, error) {
	id, err := parseUUID(s, "institution ID")
	return InstitutionID(id), err
}

func ParsePrincipalID(s string) (PrincipalID, error) {
	id, err := parseUUID(s, "principal ID")
	return PrincipalID(id), err
}

func ParseCredentialID(s string) (CredentialID, error) {
	id, err := parseUUID(s, "credential ID")
	return CredentialID(id), err
}

func ParsePublicID(s string) (PublicID, error) {
	id, err := parseUUID(s, "public ID")
	return PublicID(id), err
}

func (id InstitutionID) String() string { return uuid.UUID(id).String() }
func (id PrincipalID) String() string   { return uuid.UUID(id).String() }
func (id CredentialID) String() string  { return uuid.UUID(id).String() }
func (id PublicID) String() string      { return uuid.UUID(id).String() }

func (id InstitutionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PrincipalID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id PublicID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return id, nil
}
