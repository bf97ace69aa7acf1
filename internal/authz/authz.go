// Package authz holds the closed set of principal roles and the single
// decision function that maps (role, operation) to an allow/deny answer.
package authz

import (
	dErrors "verichain/pkg/domain-errors"
)

// Role is a capability class. The zero value is not a valid role.
type Role string

const (
	RoleIssuer Role = "issuer"
	RoleHolder Role = "holder"
	RoleAdmin  Role = "admin"
)

// ParseRole rejects anything outside the closed set.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleIssuer, RoleHolder, RoleAdmin:
		return r, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "role must be one of issuer, holder, admin")
	}
}

func (r Role) String() string { return string(r) }

// Operation names an authenticated action.
type Operation string

const (
	OpIssueCredential Operation = "credential.issue"
	OpClaimCredential Operation = "credential.claim"
	OpViewIssuerStats Operation = "issuer.stats"
	OpLinkAddress     Operation = "profile.link_address"
	OpViewProfile     Operation = "profile.view"
	OpListIssuers     Operation = "issuer.list"
	OpApproveIssuer   Operation = "issuer.approve"
	OpRemoveIssuer    Operation = "issuer.remove"
)

var policy = map[Operation]map[Role]bool{
	OpIssueCredential: {RoleIssuer: true},
	OpClaimCredential: {RoleHolder: true},
	OpViewIssuerStats: {RoleIssuer: true, RoleAdmin: true},
	OpLinkAddress:     {RoleHolder: true},
	OpViewProfile:     {RoleIssuer: true, RoleHolder: true, RoleAdmin: true},
	OpListIssuers:     {RoleAdmin: true},
	OpApproveIssuer:   {RoleAdmin: true},
	OpRemoveIssuer:    {RoleAdmin: true},
}

// Allowed reports whether role may perform op. Unknown operations are denied.
func Allowed(role Role, op Operation) bool {
	return policy[op][role]
}
