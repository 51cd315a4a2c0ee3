package attestation

import (
	"context"
	"io"
	"log/slog"
	"time"

	"walletfeed/internal/notifications/metrics"
	"walletfeed/internal/notifications/models"
	"walletfeed/internal/notifications/ports"
	dErrors "walletfeed/pkg/domain-errors"
	"walletfeed/pkg/platform/circuit"
)

// BreakerConfig configures the classifier circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening (default: 5)
	Cooldown         time.Duration // Time open before a probe (default: 30s)
}

// BreakerClassifier stops calling an attestation service that keeps failing.
// While the circuit is open calls fail immediately with CodeUnavailable, which
// the proof filter handles like any other classification failure.
type BreakerClassifier struct {
	next    ports.AttestationClassifier
	breaker *circuit.Breaker
	metrics *metrics.Metrics
}

// NewBreakerClassifier wraps next. m and logger may be nil.
func NewBreakerClassifier(next ports.AttestationClassifier, cfg BreakerConfig, m *metrics.Metrics, logger *slog.Logger) *BreakerClassifier {
	if next == nil {
		panic("attestation.NewBreakerClassifier: classifier is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	b := &BreakerClassifier{next: next, metrics: m}
	b.breaker = circuit.New("attestation",
		circuit.WithFailureThreshold(cfg.FailureThreshold),
		circuit.WithCooldown(cfg.Cooldown),
		circuit.WithStateChange(func(name string, from, to circuit.State) {
			logger.Warn("classifier circuit state changed",
				"circuit", name,
				"from", from.String(),
				"to", to.String(),
			)
			if m != nil {
				m.SetCircuitState(int(to))
			}
		}),
	)
	return b
}

// IsAttestation implements ports.AttestationClassifier.
func (b *BreakerClassifier) IsAttestation(ctx context.Context, proof models.ProofRecord, agent models.AgentIdentity, policy models.RestrictionPolicy) (bool, error) {
	allowed, probe := b.breaker.Allow()
	if !allowed {
		if b.metrics != nil {
			b.metrics.IncrementCircuitRejected()
		}
		return false, dErrors.New(dErrors.CodeUnavailable, "attestation classifier circuit open")
	}

	ok, err := b.next.IsAttestation(ctx, proof, agent, policy)
	switch {
	case err == nil:
		b.breaker.RecordSuccess()
	case ctx.Err() != nil && !dErrors.HasCode(err, dErrors.CodeTimeout):
		// Cancelled by the caller: says nothing about the service. A cancelled
		// probe hands the half-open slot to the next caller.
		if probe {
			b.breaker.ReleaseProbe()
		}
	default:
		b.breaker.RecordFailure()
	}
	return ok, err
}

// State returns the current circuit state.
func (b *BreakerClassifier) State() circuit.State {
	return b.breaker.State()
}

var _ ports.AttestationClassifier = (*BreakerClassifier)(nil)
