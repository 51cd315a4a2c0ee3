package jwttoken

import (
	"walletfeed/internal/platform/middleware"
)

func ToMiddlewareClaims(claims *FeedTokenClaims) *middleware.JWTClaims {
	return &middleware.JWTClaims{
		AgentID: claims.AgentID,
		Scopes:  claims.Scope,
		JTI:     claims.ID,
	}
}

// JWTServiceAdapter lets the auth middleware validate feed tokens.
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
