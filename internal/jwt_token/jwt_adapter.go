package jwttoken

import (
	"verichain/internal/platform/middleware"
)

func ToMiddlewareClaims(claims *AccessTokenClaims) *middleware.JWTClaims {
	return &middleware.JWTClaims{
		PrincipalID:   claims.PrincipalID,
		Role:          claims.Role,
		InstitutionID: claims.InstitutionID,
		JTI:           claims.ID,
	}
}

// JWTServiceAdapter lets the auth middleware validate tokens without
// importing this package.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
