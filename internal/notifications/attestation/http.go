// Package attestation implements the attestation classifier port against an
// external attestation service, plus a verdict cache that sits in front of it.
package attestation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"walletfeed/internal/notifications/models"
	"walletfeed/internal/notifications/ports"
	dErrors "walletfeed/pkg/domain-errors"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPConfig configures an HTTPClassifier.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration // Client timeout when HTTPClient is nil (default: 10s)
	HTTPClient HTTPDoer
}

// HTTPClassifier asks the attestation service whether a proof request is an
// attestation challenge.
type HTTPClassifier struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewHTTPClassifier creates a classifier for the service at cfg.BaseURL.
func NewHTTPClassifier(cfg HTTPConfig) *HTTPClassifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPClassifier{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
	}
}

type classifyRequest struct {
	ProofID      string               `json:"proof_id"`
	ConnectionID string               `json:"connection_id"`
	State        models.ProofState    `json:"state"`
	AgentID      string               `json:"agent_id"`
	Restrictions []models.Restriction `json:"restrictions"`
}

type classifyResponse struct {
	Attestation *bool `json:"attestation"`
}

// IsAttestation implements ports.AttestationClassifier.
func (c *HTTPClassifier) IsAttestation(ctx context.Context, proof models.ProofRecord, agent models.AgentIdentity, policy models.RestrictionPolicy) (bool, error) {
	restrictions := policy.Restrictions
	if restrictions == nil {
		restrictions = []models.Restriction{}
	}
	body, err := json.Marshal(classifyRequest{
		ProofID:      proof.ID,
		ConnectionID: proof.ConnectionID,
		State:        proof.State,
		AgentID:      agent.ID,
		Restrictions: restrictions,
	})
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "encode classify request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "create classify request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return false, dErrors.Wrap(err, dErrors.CodeTimeout, "attestation service timeout")
		}
		return false, dErrors.Wrap(err, dErrors.CodeClassificationFailed, "call attestation service")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeClassificationFailed, "read attestation response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return false, dErrors.New(dErrors.CodeClassificationFailed,
			fmt.Sprintf("attestation service rejected credentials: %d", resp.StatusCode))
	case resp.StatusCode == http.StatusServiceUnavailable, resp.StatusCode == http.StatusGatewayTimeout:
		return false, dErrors.New(dErrors.CodeClassificationFailed,
			fmt.Sprintf("attestation service unavailable: %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return false, dErrors.New(dErrors.CodeClassificationFailed,
			fmt.Sprintf("attestation service returned %d", resp.StatusCode))
	}

	var out classifyResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeClassificationFailed, "decode attestation response")
	}
	if out.Attestation == nil {
		return false, dErrors.New(dErrors.CodeClassificationFailed, "attestation response missing verdict")
	}
	return *out.Attestation, nil
}

// Health checks that the attestation service answers.
func (c *HTTPClassifier) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("attestation health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("attestation service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

var _ ports.AttestationClassifier = (*HTTPClassifier)(nil)
