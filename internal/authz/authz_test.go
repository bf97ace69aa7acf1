package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, s := range []string{"issuer", "holder", "admin"} {
		r, err := ParseRole(s)
		require.NoError(t, err)
		assert.Equal(t, s, r.String())
	}

	_, err := ParseRole("Issuer")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		role Role
		op   Operation
		want bool
	}{
		{RoleIssuer, OpIssueCredential, true},
		{RoleHolder, OpIssueCredential, false},
		{RoleAdmin, OpIssueCredential, false},
		{RoleHolder, OpClaimCredential, true},
		{RoleIssuer, OpClaimCredential, false},
		{RoleHolder, OpLinkAddress, true},
		{RoleAdmin, OpLinkAddress, false},
		{RoleAdmin, OpApproveIssuer, true},
		{RoleIssuer, OpApproveIssuer, false},
		{RoleIssuer, OpViewIssuerStats, true},
		{Role(""), OpViewProfile, false},
		{RoleAdmin, Operation("unknown"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(tt.role, tt.op))
		})
	}
}
