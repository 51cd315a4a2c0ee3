package jwttoken

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "walletfeed/pkg/domain-errors"
)

// Scopes granted to feed consumers.
const (
	ScopeFeedRead = "feed:read"
	ScopeFeedAck  = "feed:ack"
)

// FeedTokenClaims are the claims of a bearer token for the notification feed.
type FeedTokenClaims struct {
	AgentID string   `json:"agent_id"`
	Scope   []string `json:"scope"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants scope.
func (c *FeedTokenClaims) HasScope(scope string) bool {
	return slices.Contains(c.Scope, scope)
}

// JWTService issues and validates HS256 feed tokens.
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

// GenerateFeedToken signs a token for agentID. It returns the token and its JTI.
func (s *JWTService) GenerateFeedToken(agentID string, scopes []string, now time.Time) (string, string, error) {
	if agentID == "" {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "agent ID cannot be empty")
	}
	if len(scopes) == 0 {
		return "", "", dErrors.New(dErrors.CodeInvalidInput, "scopes cannot be empty")
	}

	jti := uuid.NewString()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, FeedTokenClaims{
		AgentID: agentID,
		Scope:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   agentID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        jti,
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "sign feed token")
	}
	return signed, jti, nil
}

// ValidateToken verifies signature, algorithm, expiry, issuer and audience.
func (s *JWTService) ValidateToken(tokenString string) (*FeedTokenClaims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "empty token")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &FeedTokenClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*FeedTokenClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.AgentID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no agent")
	}
	return claims, nil
}
