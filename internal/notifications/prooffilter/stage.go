// Package prooffilter derives the non-attestation proof working set.
package prooffilter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"walletfeed/internal/notifications/metrics"
	"walletfeed/internal/notifications/models"
	"walletfeed/internal/notifications/ports"
	"walletfeed/internal/notifications/tracer"
	dErrors "walletfeed/pkg/domain-errors"
)

// FailurePolicy decides what a failed classification resolves to.
type FailurePolicy string

const (
	// FailClosed treats a failed classification as an attestation and hides the proof.
	FailClosed FailurePolicy = "fail_closed"

	// FailOpen treats a failed classification as user-facing and shows the proof.
	FailOpen FailurePolicy = "fail_open"
)

const (
	defaultConcurrency     = 8
	defaultClassifyTimeout = 5 * time.Second
)

// Config configures the proof filter stage.
type Config struct {
	Classifier      ports.AttestationClassifier
	Policy          models.RestrictionPolicy
	Concurrency     int           // Max in-flight classifier calls per batch (default: 8)
	ClassifyTimeout time.Duration // Per-call deadline (default: 5s)
	OnFailure       FailurePolicy // Default: FailClosed
}

// Stage classifies proof exchanges and keeps the ones that are not
// attestation challenges.
//
// Every batch carries a generation number from Next. Batches finish in any
// order; only the one holding the latest issued generation may be applied,
// so a slow batch from an older cycle can never overwrite a newer result.
type Stage struct {
	classifier  ports.AttestationClassifier
	policy      models.RestrictionPolicy
	concurrency int
	timeout     time.Duration
	onFailure   FailurePolicy

	issued atomic.Uint64

	metrics *metrics.Metrics
	tracer  tracer.Tracer
	logger  *slog.Logger
}

// Option configures the Stage.
type Option func(*Stage)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Stage) {
		s.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Stage) {
		s.tracer = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Stage) {
		s.logger = l
	}
}

// New creates a proof filter stage. Panics if no classifier is configured.
func New(cfg Config, opts ...Option) *Stage {
	if cfg.Classifier == nil {
		panic("prooffilter.New: classifier is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = defaultClassifyTimeout
	}
	if cfg.OnFailure == "" {
		cfg.OnFailure = FailClosed
	}

	s := &Stage{
		classifier:  cfg.Classifier,
		policy:      cfg.Policy,
		concurrency: cfg.Concurrency,
		timeout:     cfg.ClassifyTimeout,
		onFailure:   cfg.OnFailure,
		tracer:      tracer.NewNoop(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Failure records one proof whose classification failed.
type Failure struct {
	ProofID string
	Err     error
}

// Batch is the outcome of one Filter call.
type Batch struct {
	Generation uint64
	Proofs     []models.ProofRecord // Non-attestation proofs, input order
	Failures   []Failure
	Cancelled  bool
}

// Next issues a new generation. Call it when the inputs change, before
// starting the batch that reflects them.
func (s *Stage) Next() uint64 {
	return s.issued.Add(1)
}

// IsCurrent reports whether gen is the latest issued generation.
func (s *Stage) IsCurrent(gen uint64) bool {
	return gen == s.issued.Load()
}

// Accept reports whether b may replace the working set. Cancelled and stale
// batches are rejected and counted.
func (s *Stage) Accept(b Batch) bool {
	if b.Cancelled {
		if s.metrics != nil {
			s.metrics.IncrementCancelledBatches()
		}
		return false
	}
	if !s.IsCurrent(b.Generation) {
		if s.metrics != nil {
			s.metrics.IncrementStaleBatches()
		}
		s.logger.Debug("discarding stale proof filter batch",
			"generation", b.Generation,
			"latest", s.issued.Load(),
		)
		return false
	}
	return true
}

type verdict struct {
	include bool
	err     error
}

// Filter classifies every proof concurrently and waits for all of them
// before returning. Duplicates are classified and kept independently. A
// failed classification never aborts the batch; it resolves by the stage's
// failure policy. If ctx ends first the batch comes back Cancelled.
func (s *Stage) Filter(ctx context.Context, gen uint64, proofs []models.ProofRecord, agent models.AgentIdentity) Batch {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanFilter,
		tracer.Int64(tracer.AttrGeneration, int64(gen)),
		tracer.Int64(tracer.AttrBatchSize, int64(len(proofs))),
		tracer.String(tracer.AttrAgentID, agent.ID),
	)

	verdicts := make([]verdict, len(proofs))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, proof := range proofs {
		g.Go(func() error {
			verdicts[i] = s.classify(ctx, proof, agent)
			return nil
		})
	}
	_ = g.Wait() // per-item errors live in verdicts

	if s.metrics != nil {
		s.metrics.ObserveFilterBatch(time.Since(start))
	}

	if err := ctx.Err(); err != nil {
		span.End(err)
		return Batch{Generation: gen, Cancelled: true}
	}

	batch := Batch{Generation: gen, Proofs: make([]models.ProofRecord, 0, len(proofs))}
	for i, v := range verdicts {
		if v.err != nil {
			batch.Failures = append(batch.Failures, Failure{ProofID: proofs[i].ID, Err: v.err})
		}
		if v.include {
			batch.Proofs = append(batch.Proofs, proofs[i])
		}
	}

	span.SetAttributes(
		tracer.Int64(tracer.AttrKept, int64(len(batch.Proofs))),
		tracer.Int64(tracer.AttrFailures, int64(len(batch.Failures))),
	)
	span.End(nil)
	return batch
}

func (s *Stage) classify(ctx context.Context, proof models.ProofRecord, agent models.AgentIdentity) verdict {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, tracer.SpanClassify,
		tracer.String(tracer.AttrProofID, proof.ID),
		tracer.String(tracer.AttrProofState, string(proof.State)),
	)

	start := time.Now()
	isAttestation, err := s.classifier.IsAttestation(ctx, proof, agent, s.policy)
	elapsed := time.Since(start)

	if err != nil {
		err = classificationError(ctx, proof.ID, err)
		span.End(err)
		if s.metrics != nil {
			s.metrics.RecordClassification(metrics.OutcomeFailed, elapsed)
		}
		s.logger.WarnContext(ctx, "attestation classification failed",
			"proof_id", proof.ID,
			"proof_state", proof.State,
			"agent_id", agent.ID,
			"policy", s.onFailure,
			"error", err,
		)
		return verdict{include: s.onFailure == FailOpen, err: err}
	}

	span.SetAttributes(tracer.Bool(tracer.AttrAttestation, isAttestation))
	span.End(nil)
	if s.metrics != nil {
		outcome := metrics.OutcomeUserFacing
		if isAttestation {
			outcome = metrics.OutcomeAttestation
		}
		s.metrics.RecordClassification(outcome, elapsed)
	}
	return verdict{include: !isAttestation}
}

func classificationError(ctx context.Context, proofID string, err error) error {
	msg := fmt.Sprintf("classify proof %s", proofID)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeClassificationFailed, msg)
}
