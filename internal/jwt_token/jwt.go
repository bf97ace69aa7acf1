package jwttoken

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"verichain/internal/authz"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/requestcontext"
)

// AccessTokenClaims are the claims of a principal's access token.
type AccessTokenClaims struct {
	PrincipalID   string `json:"principal_id"`
	Role          string `json:"role"`
	InstitutionID string `json:"institution_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTService creates and validates HS256 access tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	tokenTTL   time.Duration
}

func NewJWTService(signingKey, issuer, audience string, tokenTTL time.Duration) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		tokenTTL:   tokenTTL,
	}
}

// GenerateAccessToken signs a token for the principal. institutionID may be
// nil for holders.
func (s *JWTService) GenerateAccessToken(
	ctx context.Context,
	principalID id.PrincipalID,
	role authz.Role,
	institutionID *id.InstitutionID,
) (string, time.Time, error) {
	if principalID.IsNil() {
		return "", time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "principal id cannot be empty")
	}
	if _, err := authz.ParseRole(string(role)); err != nil {
		return "", time.Time{}, err
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, err
	}
	now := requestcontext.Now(ctx)
	expiresAt := now.Add(s.tokenTTL)

	claims := AccessTokenClaims{
		PrincipalID: principalID.String(),
		Role:        string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        hex.EncodeToString(b),
		},
	}
	if institutionID != nil {
		claims.InstitutionID = institutionID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*AccessTokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*AccessTokenClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if _, err := authz.ParseRole(claims.Role); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token role")
	}
	return claims, nil
}
