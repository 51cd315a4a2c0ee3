package attestation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"walletfeed/internal/notifications/models"
	dErrors "walletfeed/pkg/domain-errors"
)

type HTTPClassifierSuite struct {
	suite.Suite
	agent  models.AgentIdentity
	policy models.RestrictionPolicy
	proof  models.ProofRecord
}

func TestHTTPClassifierSuite(t *testing.T) {
	suite.Run(t, new(HTTPClassifierSuite))
}

func (s *HTTPClassifierSuite) SetupTest() {
	s.agent = models.AgentIdentity{ID: "agent-1"}
	s.policy = models.RestrictionPolicy{Restrictions: []models.Restriction{{CredDefID: "attestation:1"}}}
	s.proof = models.ProofRecord{ID: "p1", ConnectionID: "c1", State: models.ProofRequestReceived}
}

func (s *HTTPClassifierSuite) server(handler http.HandlerFunc) *HTTPClassifier {
	srv := httptest.NewServer(handler)
	s.T().Cleanup(srv.Close)
	return NewHTTPClassifier(HTTPConfig{BaseURL: srv.URL + "/", APIKey: "secret"})
}

func (s *HTTPClassifierSuite) TestSendsClassifyRequest() {
	var got classifyRequest
	c := s.server(func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPost, r.Method)
		s.Equal("/classify", r.URL.Path)
		s.Equal("secret", r.Header.Get("X-API-Key"))
		s.Equal("application/json", r.Header.Get("Content-Type"))
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"attestation":true}`))
	})

	isAttestation, err := c.IsAttestation(context.Background(), s.proof, s.agent, s.policy)
	s.Require().NoError(err)
	s.True(isAttestation)
	s.Equal("p1", got.ProofID)
	s.Equal("c1", got.ConnectionID)
	s.Equal(models.ProofRequestReceived, got.State)
	s.Equal("agent-1", got.AgentID)
	s.Equal(s.policy.Restrictions, got.Restrictions)
}

func (s *HTTPClassifierSuite) TestUserFacingVerdict() {
	c := s.server(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"attestation":false}`))
	})
	isAttestation, err := c.IsAttestation(context.Background(), s.proof, s.agent, s.policy)
	s.Require().NoError(err)
	s.False(isAttestation)
}

func (s *HTTPClassifierSuite) TestFailures() {
	tests := []struct {
		name    string
		status  int
		body    string
		errCode dErrors.Code
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, errCode: dErrors.CodeClassificationFailed},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{}`, errCode: dErrors.CodeClassificationFailed},
		{name: "unavailable", status: http.StatusServiceUnavailable, body: ``, errCode: dErrors.CodeClassificationFailed},
		{name: "invalid json", status: http.StatusOK, body: `not json`, errCode: dErrors.CodeClassificationFailed},
		{name: "missing verdict", status: http.StatusOK, body: `{}`, errCode: dErrors.CodeClassificationFailed},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			c := s.server(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.IsAttestation(context.Background(), s.proof, s.agent, s.policy)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, tt.errCode), "got %v", err)
		})
	}
}

func (s *HTTPClassifierSuite) TestTimeout() {
	c := s.server(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.IsAttestation(ctx, s.proof, s.agent, s.policy)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *HTTPClassifierSuite) TestUnreachable() {
	c := NewHTTPClassifier(HTTPConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := c.IsAttestation(context.Background(), s.proof, s.agent, s.policy)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeClassificationFailed))
}

func (s *HTTPClassifierSuite) TestHealth() {
	c := s.server(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	s.NoError(c.Health(context.Background()))

	down := s.server(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	s.Error(down.Health(context.Background()))
}
