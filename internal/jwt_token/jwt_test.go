package jwttoken

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verichain/internal/authz"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/requestcontext"
)

var (
	principalID   = id.PrincipalID(uuid.New())
	institutionID = id.InstitutionID(uuid.New())
)

func newService(ttl time.Duration) *JWTService {
	return NewJWTService("test-signing-key", "verichain-test", "verichain-api", ttl)
}

func Test_GenerateAccessToken(t *testing.T) {
	svc := newService(time.Hour)
	token, expiresAt, err := svc.GenerateAccessToken(context.Background(), principalID, authz.RoleIssuer, &institutionID)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, principalID.String(), claims.PrincipalID)
	assert.Equal(t, "issuer", claims.Role)
	assert.Equal(t, institutionID.String(), claims.InstitutionID)
	assert.NotEmpty(t, claims.ID)
}

func Test_GenerateAccessToken_HolderHasNoInstitution(t *testing.T) {
	svc := newService(time.Hour)
	token, _, err := svc.GenerateAccessToken(context.Background(), principalID, authz.RoleHolder, nil)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Empty(t, claims.InstitutionID)
}

func Test_GenerateAccessToken_RejectsUnknownRole(t *testing.T) {
	_, _, err := newService(time.Hour).GenerateAccessToken(context.Background(), principalID, authz.Role("root"), nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := newService(time.Hour).ValidateToken("invalid-token-string")
	require.ErrorContains(t, err, "invalid token")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	svc := newService(time.Minute)
	past := requestcontext.WithTime(context.Background(), time.Now().Add(-time.Hour))
	token, _, err := svc.GenerateAccessToken(past, principalID, authz.RoleHolder, nil)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.ErrorContains(t, err, "token expired")
}

func Test_ValidateToken_WrongAudience(t *testing.T) {
	token, _, err := NewJWTService("test-signing-key", "verichain-test", "other-api", time.Hour).
		GenerateAccessToken(context.Background(), principalID, authz.RoleHolder, nil)
	require.NoError(t, err)

	_, err = newService(time.Hour).ValidateToken(token)
	require.ErrorContains(t, err, "invalid token")
}

func Test_ValidateToken_RejectsAlgorithmConfusion(t *testing.T) {
	claims := AccessTokenClaims{
		PrincipalID: principalID.String(),
		Role:        "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			Issuer:    "verichain-test",
			Audience:  []string{"verichain-api"},
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newService(time.Hour).ValidateToken(token)
	require.ErrorContains(t, err, "invalid token")
}

func Test_ValidateToken_RejectsForgedRole(t *testing.T) {
	claims := AccessTokenClaims{
		PrincipalID: principalID.String(),
		Role:        "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			Issuer:    "verichain-test",
			Audience:  []string{"verichain-api"},
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	_, err = newService(time.Hour).ValidateToken(token)
	require.ErrorContains(t, err, "invalid token role")
}
