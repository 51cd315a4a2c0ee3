// Package health serves the probes an orchestrator uses to decide whether the
// feed process is alive and whether its dependencies can serve the feed.
package health

import (
	"context"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"walletfeed/pkg/platform/httputil"
)

// Version is set at build time via ldflags.
var Version = "dev"

const checkTimeout = 2 * time.Second

// CheckFunc probes one dependency (attestation service, Redis, Kafka, the
// feed engine). nil means it can serve.
type CheckFunc func(ctx context.Context) error

// Handler runs the registered dependency checks.
type Handler struct {
	started     time.Time
	environment string

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

func New(environment string) *Handler {
	return &Handler{
		started:     time.Now(),
		environment: environment,
		checks:      make(map[string]CheckFunc),
	}
}

// RegisterCheck adds or replaces the readiness check for a dependency.
func (h *Handler) RegisterCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

type LivenessResponse struct {
	Status string `json:"status"`
}

// HandleLiveness answers without touching any dependency.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

// ReadinessResponse maps each dependency to "up" or "down: <reason>".
// Latencies are in milliseconds.
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	LatencyMS map[string]int64  `json:"latency_ms,omitempty"`
}

// HandleReadiness probes every dependency concurrently under one deadline.
// A single failing dependency makes the process not ready.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := maps.Clone(h.checks)
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := ReadinessResponse{
		Status:    "ready",
		Checks:    make(map[string]string, len(checks)),
		LatencyMS: make(map[string]int64, len(checks)),
	}
	var mu sync.Mutex
	var g errgroup.Group
	for name, check := range checks {
		g.Go(func() error {
			begin := time.Now()
			err := check(ctx)
			took := time.Since(begin).Milliseconds()

			mu.Lock()
			defer mu.Unlock()
			resp.LatencyMS[name] = took
			if err != nil {
				resp.Checks[name] = "down: " + err.Error()
				resp.Status = "not_ready"
				return nil
			}
			resp.Checks[name] = "up"
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

// HandleStatus reports build version and uptime.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
}
