package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	AgentID string
	Scopes  []string
	JTI     string
}

type contextKeyAgentID struct{}
type contextKeyScopes struct{}

// GetAgentID retrieves the authenticated agent ID from the context
func GetAgentID(ctx context.Context) string {
	agentID, ok := ctx.Value(contextKeyAgentID{}).(string)
	if !ok {
		return ""
	}
	return agentID
}

// GetScopes retrieves the granted scopes from the context
func GetScopes(ctx context.Context) []string {
	scopes, _ := ctx.Value(contextKeyScopes{}).([]string)
	return scopes
}

// WithClaims stores authenticated claims on ctx.
func WithClaims(ctx context.Context, claims *JWTClaims) context.Context {
	ctx = context.WithValue(ctx, contextKeyAgentID{}, claims.AgentID)
	return context.WithValue(ctx, contextKeyScopes{}, claims.Scopes)
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

// RequireScope rejects requests whose token does not grant scope. It must run
// after RequireAuth.
func RequireScope(scope string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !slices.Contains(GetScopes(ctx), scope) {
				logger.WarnContext(ctx, "forbidden - missing scope",
					"scope", scope,
					"agent_id", GetAgentID(ctx),
					"request_id", GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"Token lacks required scope"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
