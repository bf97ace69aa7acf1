package models

import (
	"strings"
	"time"

	"verichain/internal/authz"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
)

type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusActive          Status = "active"
)

// Principal is an authenticated account. Issuers and admins belong to an
// institution; holders may link one custody address.
type Principal struct {
	ID             id.PrincipalID
	Email          string
	FullName       string
	PasswordHash   string
	Role           authz.Role
	InstitutionID  *id.InstitutionID
	Status         Status
	CustodyAddress *id.Address
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPrincipal applies the registration rules: issuers start pending
// approval, everyone else is active immediately.
func NewPrincipal(
	principalID id.PrincipalID,
	email, fullName, passwordHash string,
	role authz.Role,
	institutionID *id.InstitutionID,
	now time.Time,
) (*Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	fullName = strings.TrimSpace(fullName)
	if email == "" || fullName == "" || passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "principal requires email, name and password")
	}
	if _, err := authz.ParseRole(string(role)); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown role")
	}
	if role != authz.RoleHolder && (institutionID == nil || institutionID.IsNil()) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "issuers and admins must belong to an institution")
	}
	if role == authz.RoleHolder {
		institutionID = nil
	}

	status := StatusActive
	if role == authz.RoleIssuer {
		status = StatusPendingApproval
	}
	return &Principal{
		ID:            principalID,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  passwordHash,
		Role:          role,
		InstitutionID: institutionID,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (p *Principal) IsActive() bool {
	return p.Status == StatusActive
}

// BelongsTo reports whether the principal is scoped to institutionID.
func (p *Principal) BelongsTo(institutionID id.InstitutionID) bool {
	return p.InstitutionID != nil && *p.InstitutionID == institutionID
}

func (p *Principal) Approve(now time.Time) error {
	if p.Role != authz.RoleIssuer {
		return dErrors.New(dErrors.CodeInvariantViolation, "only issuers need approval")
	}
	if p.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "issuer is already active")
	}
	p.Status = StatusActive
	p.UpdatedAt = now
	return nil
}

// LinkAddress sets the custody address. Uniqueness across principals is the
// store's job.
func (p *Principal) LinkAddress(addr id.Address, now time.Time) error {
	if p.Role != authz.RoleHolder {
		return dErrors.New(dErrors.CodeInvariantViolation, "only holders link custody addresses")
	}
	p.CustodyAddress = &addr
	p.UpdatedAt = now
	return nil
}
