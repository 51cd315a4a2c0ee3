package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestLivenessAndStatus(t *testing.T) {
	h := New("test")

	w, body := serve(t, h, "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", body["status"])

	w, body = serve(t, h, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["environment"])
}

func TestReadiness(t *testing.T) {
	h := New("test")
	h.RegisterCheck("feed", func(context.Context) error { return nil })

	w, body := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", body["status"])

	h.RegisterCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	w, body = serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "up", checks["feed"])
	assert.Equal(t, "down: connection refused", checks["redis"])
}

func TestReadinessRunsChecksConcurrently(t *testing.T) {
	h := New("test")
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	block := func(ctx context.Context) error {
		started.Done()
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.RegisterCheck("attestation", block)
	h.RegisterCheck("kafka", block)

	go func() {
		started.Wait()
		close(release)
	}()

	w, body := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code, "both checks must be in flight together")
	latency := body["latency_ms"].(map[string]any)
	assert.Contains(t, latency, "attestation")
	assert.Contains(t, latency, "kafka")
}
