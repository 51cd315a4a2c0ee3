package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// MockJWTValidator is a testify mock for JWTValidator
type MockJWTValidator struct {
	mock.Mock
}

func (m *MockJWTValidator) ValidateToken(tokenString string) (*JWTClaims, error) {
	args := m.Called(tokenString)
	if claims := args.Get(0); claims != nil {
		return claims.(*JWTClaims), args.Error(1)
	}
	return nil, args.Error(1)
}

// mockHandler is a test handler that captures if it was called and the context
type mockHandler struct {
	called  bool
	context context.Context
}

func (m *mockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.called = true
	m.context = r.Context()
	w.WriteHeader(http.StatusOK)
}

type AuthMiddlewareTestSuite struct {
	suite.Suite
	validator   *MockJWTValidator
	logger      *slog.Logger
	nextHandler *mockHandler
	middleware  func(http.Handler) http.Handler
}

func (s *AuthMiddlewareTestSuite) SetupTest() {
	s.validator = new(MockJWTValidator)
	s.logger = slog.Default()
	s.nextHandler = &mockHandler{}
	s.middleware = RequireAuth(s.validator, s.logger)
}

func (s *AuthMiddlewareTestSuite) TearDownTest() {
	s.validator.AssertExpectations(s.T())
}

func (s *AuthMiddlewareTestSuite) makeRequest(authHeader string) *httptest.ResponseRecorder {
	handler := s.middleware(s.nextHandler)
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func (s *AuthMiddlewareTestSuite) TestValidToken() {
	s.validator.On("ValidateToken", "valid-token").Return(&JWTClaims{
		AgentID: "agent-123",
		Scopes:  []string{"feed:read"},
		JTI:     "jti-1",
	}, nil)

	w := s.makeRequest("Bearer valid-token")

	require.True(s.T(), s.nextHandler.called, "next handler should be called")
	assert.Equal(s.T(), http.StatusOK, w.Code)
	assert.Equal(s.T(), "agent-123", GetAgentID(s.nextHandler.context))
	assert.Equal(s.T(), []string{"feed:read"}, GetScopes(s.nextHandler.context))
}

func (s *AuthMiddlewareTestSuite) TestInvalidToken() {
	s.validator.On("ValidateToken", "invalid-token").Return(nil, errors.New("token expired"))

	w := s.makeRequest("Bearer invalid-token")

	assert.False(s.T(), s.nextHandler.called, "next handler should not be called")
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(s.T(), "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(s.T(),
		`{"error":"unauthorized","error_description":"Invalid or expired token"}`,
		w.Body.String(),
	)
}

func (s *AuthMiddlewareTestSuite) TestMissingAuthorizationHeader() {
	w := s.makeRequest("")

	assert.False(s.T(), s.nextHandler.called, "next handler should not be called")
	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	assert.JSONEq(s.T(),
		`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`,
		w.Body.String(),
	)
}

func (s *AuthMiddlewareTestSuite) TestInvalidAuthorizationFormats() {
	testCases := []struct {
		name       string
		authHeader string
	}{
		{"no bearer prefix", "token-without-bearer"},
		{"wrong prefix", "Basic dXNlcjpwYXNz"},
		{"lowercase bearer", "bearer token"},
		{"bearer without space", "Bearertoken"},
		{"bearer with empty token", "Bearer "},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			nextHandler := &mockHandler{}
			handler := RequireAuth(s.validator, s.logger)(nextHandler)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set("Authorization", tc.authHeader)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.False(s.T(), nextHandler.called, "next handler should not be called")
			assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
			assert.JSONEq(s.T(),
				`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`,
				w.Body.String(),
			)
		})
	}
}

func (s *AuthMiddlewareTestSuite) TestRequireScope() {
	s.validator.On("ValidateToken", "read-only").Return(&JWTClaims{
		AgentID: "agent-123",
		Scopes:  []string{"feed:read"},
	}, nil)

	s.Run("granted scope passes", func() {
		next := &mockHandler{}
		handler := RequireAuth(s.validator, s.logger)(RequireScope("feed:read", s.logger)(next))
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer read-only")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		s.True(next.called)
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("missing scope is forbidden", func() {
		next := &mockHandler{}
		handler := RequireAuth(s.validator, s.logger)(RequireScope("feed:ack", s.logger)(next))
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer read-only")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		s.False(next.called)
		s.Equal(http.StatusForbidden, w.Code)
	})

	s.Run("unauthenticated request is forbidden", func() {
		next := &mockHandler{}
		handler := RequireScope("feed:read", s.logger)(next)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		s.False(next.called)
		s.Equal(http.StatusForbidden, w.Code)
	})
}

func TestAuthMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareTestSuite))
}

func TestGetAgentID(t *testing.T) {
	testCases := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{"valid agent ID", WithClaims(context.Background(), &JWTClaims{AgentID: "agent-1"}), "agent-1"},
		{"missing agent ID", context.Background(), ""},
		{"wrong type", context.WithValue(context.Background(), contextKeyAgentID{}, 123), ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, GetAgentID(tc.ctx))
		})
	}
}
