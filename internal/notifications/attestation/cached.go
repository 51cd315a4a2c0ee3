package attestation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"walletfeed/internal/notifications/metrics"
	"walletfeed/internal/notifications/models"
	"walletfeed/internal/notifications/ports"
	psync "walletfeed/pkg/platform/sync"
)

const verdictLockShards = 256

// CachedClassifier remembers verdicts of another classifier. Failed
// classifications are never cached. Lookups for the same key are serialized,
// so duplicate proofs in one batch reach the backing classifier once.
type CachedClassifier struct {
	next  ports.AttestationClassifier
	cache Cache
	locks *psync.ShardedMutex
	now   func() time.Time

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// CachedOption configures the CachedClassifier.
type CachedOption func(*CachedClassifier)

// WithCacheMetrics sets the metrics collector.
func WithCacheMetrics(m *metrics.Metrics) CachedOption {
	return func(c *CachedClassifier) {
		c.metrics = m
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *slog.Logger) CachedOption {
	return func(c *CachedClassifier) {
		c.logger = l
	}
}

// NewCachedClassifier wraps next with cache. Panics if either is nil.
func NewCachedClassifier(next ports.AttestationClassifier, cache Cache, opts ...CachedOption) *CachedClassifier {
	if next == nil {
		panic("attestation.NewCachedClassifier: classifier is required")
	}
	if cache == nil {
		panic("attestation.NewCachedClassifier: cache is required")
	}
	c := &CachedClassifier{
		next:   next,
		cache:  cache,
		locks:  psync.NewShardedMutex(verdictLockShards),
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsAttestation implements ports.AttestationClassifier. Cache read and write
// errors degrade to calling the backing classifier.
func (c *CachedClassifier) IsAttestation(ctx context.Context, proof models.ProofRecord, agent models.AgentIdentity, policy models.RestrictionPolicy) (bool, error) {
	key := Key{AgentID: agent.ID, ProofID: proof.ID}
	c.locks.Lock(key.String())
	defer c.locks.Unlock(key.String())

	v, err := c.cache.Find(ctx, key)
	switch {
	case err == nil:
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		return v.Attestation, nil
	case !errors.Is(err, ErrCacheMiss):
		c.logger.WarnContext(ctx, "attestation cache lookup failed", "key", key.String(), "error", err)
	}
	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}

	isAttestation, err := c.next.IsAttestation(ctx, proof, agent, policy)
	if err != nil {
		return false, err
	}

	if err := c.cache.Save(ctx, key, Verdict{Attestation: isAttestation, ClassifiedAt: c.now().UTC()}); err != nil {
		c.logger.WarnContext(ctx, "attestation cache save failed", "key", key.String(), "error", err)
	}
	return isAttestation, nil
}

var _ ports.AttestationClassifier = (*CachedClassifier)(nil)
