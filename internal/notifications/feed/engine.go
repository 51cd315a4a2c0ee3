// Package feed runs the notification dataflow: it watches every source port,
// drives the proof filter stage and republishes the aggregated feed whenever
// any input changes.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"walletfeed/internal/notifications/aggregator"
	"walletfeed/internal/notifications/metrics"
	"walletfeed/internal/notifications/models"
	"walletfeed/internal/notifications/ports"
	"walletfeed/internal/notifications/prooffilter"
	"walletfeed/internal/notifications/tracer"
	psync "walletfeed/pkg/platform/sync"
)

// Input port names, also used as the "port" metric label.
const (
	PortMessages            = "messages"
	PortOffers              = "offers"
	PortDoneCredentials     = "done_credentials"
	PortReceivedCredentials = "received_credentials"
	PortRequestedProofs     = "requested_proofs"
	PortCompletedProofs     = "completed_proofs"
	PortIdentity            = "identity"
	PortFilteredProofs      = "filtered_proofs"
)

// ErrAlreadyRunning is returned when Run is called twice on one Engine.
var ErrAlreadyRunning = errors.New("feed engine already running")

// Sources bundles the ports the engine watches.
type Sources struct {
	Messages    ports.MessageSource
	Credentials ports.CredentialSource
	Proofs      ports.ProofSource
	Identity    ports.IdentitySource
}

// Snapshot is one published feed. Agent is the identity the items were
// computed for.
type Snapshot struct {
	Version     uint64
	PublishedAt time.Time
	Agent       models.AgentIdentity
	Items       []models.Item
}

// Sink receives published feeds outside the process. A sink that falls behind
// skips to the newest snapshot.
type Sink interface {
	Publish(ctx context.Context, snap Snapshot) error
}

type namedSink struct {
	name string
	sink Sink
}

// Engine owns the feed state. All port values and the published feed are
// written only by the Run goroutine.
type Engine struct {
	sources Sources
	stage   *prooffilter.Stage
	sinks   []namedSink
	out     *psync.Latest[Snapshot]
	version uint64
	running atomic.Bool

	compute func(aggregator.Inputs) []models.Item
	now     func() time.Time

	metrics *metrics.Metrics
	tracer  tracer.Tracer
	logger  *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSink registers a sink under name. Sink failures are logged and counted.
func WithSink(name string, s Sink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, namedSink{name: name, sink: s})
	}
}

// WithClock overrides the publish timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a feed engine. Panics if a source or the stage is missing.
func New(sources Sources, stage *prooffilter.Stage, opts ...Option) *Engine {
	if sources.Messages == nil || sources.Credentials == nil || sources.Proofs == nil || sources.Identity == nil {
		panic("feed.New: all sources are required")
	}
	if stage == nil {
		panic("feed.New: proof filter stage is required")
	}
	e := &Engine{
		sources: sources,
		stage:   stage,
		out:     psync.NewLatest[Snapshot](),
		compute: aggregator.Compute,
		now:     time.Now,
		tracer:  tracer.NewNoop(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe returns the live feed. The current feed, if one was published,
// arrives first. Delivery is latest-wins and the channel closes with ctx.
func (e *Engine) Subscribe(ctx context.Context) <-chan Snapshot {
	return e.out.Subscribe(ctx)
}

// Snapshot returns the last published feed, or false before the first publish.
func (e *Engine) Snapshot() (Snapshot, bool) {
	return e.out.Current()
}

const (
	bitMessages uint8 = 1 << iota
	bitOffers
	bitDone
	bitReceived
	bitRequested
	bitCompleted
	bitIdentity
	bitFiltered

	filterInputs = bitRequested | bitCompleted | bitIdentity
	allInputs    = bitMessages | bitOffers | bitDone | bitReceived | filterInputs | bitFiltered
)

// state holds the latest value of every port.
type state struct {
	seen uint8

	messages  []models.MessageRecord
	offers    []models.CredentialRecord
	done      []models.CredentialRecord
	received  []models.CredentialRecord
	requested []models.ProofRecord
	completed []models.ProofRecord
	agent     models.AgentIdentity
	filtered  []models.ProofRecord

	cancelFilter context.CancelFunc
}

func (st *state) has(bits uint8) bool { return st.seen&bits == bits }

// Run watches the sources until ctx ends. The feed is first published once
// every port has delivered a value, so a proof is never visible before its
// classification resolved.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages := e.sources.Messages.WatchMessages(ctx)
	offers := e.sources.Credentials.WatchCredentials(ctx, models.CredentialOfferReceived)
	done := e.sources.Credentials.WatchCredentials(ctx, models.CredentialDone)
	received := e.sources.Credentials.WatchCredentials(ctx, models.CredentialReceived)
	requested := e.sources.Proofs.WatchProofs(ctx, models.ProofRequestReceived)
	completed := e.sources.Proofs.WatchProofs(ctx, models.TerminalProofStates...)
	identity := e.sources.Identity.WatchIdentity(ctx)

	batches := make(chan prooffilter.Batch)
	var wg sync.WaitGroup
	defer wg.Wait()

	var wgSinks sync.WaitGroup
	for _, s := range e.sinks {
		wgSinks.Add(1)
		go func() {
			defer wgSinks.Done()
			e.drainSink(ctx, s)
		}()
	}
	defer wgSinks.Wait()

	st := &state{}
	e.logger.InfoContext(ctx, "feed engine started", "sinks", len(e.sinks))

	for {
		var port string
		select {
		case <-ctx.Done():
			e.logger.InfoContext(ctx, "feed engine stopped", "version", e.version)
			return nil

		case v, ok := <-messages:
			if !ok {
				messages = nil
				e.portClosed(ctx, PortMessages)
				continue
			}
			st.messages, st.seen, port = v, st.seen|bitMessages, PortMessages

		case v, ok := <-offers:
			if !ok {
				offers = nil
				e.portClosed(ctx, PortOffers)
				continue
			}
			st.offers, st.seen, port = v, st.seen|bitOffers, PortOffers

		case v, ok := <-done:
			if !ok {
				done = nil
				e.portClosed(ctx, PortDoneCredentials)
				continue
			}
			st.done, st.seen, port = v, st.seen|bitDone, PortDoneCredentials

		case v, ok := <-received:
			if !ok {
				received = nil
				e.portClosed(ctx, PortReceivedCredentials)
				continue
			}
			st.received, st.seen, port = v, st.seen|bitReceived, PortReceivedCredentials

		case v, ok := <-requested:
			if !ok {
				requested = nil
				e.portClosed(ctx, PortRequestedProofs)
				continue
			}
			st.requested, st.seen, port = v, st.seen|bitRequested, PortRequestedProofs
			e.launchFilter(ctx, st, batches, &wg)

		case v, ok := <-completed:
			if !ok {
				completed = nil
				e.portClosed(ctx, PortCompletedProofs)
				continue
			}
			st.completed, st.seen, port = v, st.seen|bitCompleted, PortCompletedProofs
			e.launchFilter(ctx, st, batches, &wg)

		case v, ok := <-identity:
			if !ok {
				identity = nil
				e.portClosed(ctx, PortIdentity)
				continue
			}
			st.agent, st.seen, port = v, st.seen|bitIdentity, PortIdentity
			e.launchFilter(ctx, st, batches, &wg)

		case b := <-batches:
			if !e.stage.Accept(b) {
				continue
			}
			st.filtered, st.seen, port = b.Proofs, st.seen|bitFiltered, PortFilteredProofs
		}

		if !st.has(allInputs) {
			continue
		}
		if e.metrics != nil {
			e.metrics.IncrementRecomputations(port)
		}
		e.recompute(ctx, st, port)
	}
}

// portClosed records a source channel that ended before the engine did. The
// port keeps its last value.
func (e *Engine) portClosed(ctx context.Context, port string) {
	if ctx.Err() != nil {
		return
	}
	e.logger.WarnContext(ctx, "feed source closed, keeping last value", "port", port)
}

// launchFilter supersedes any in-flight batch and classifies the current
// requested and completed proofs for the current agent.
func (e *Engine) launchFilter(ctx context.Context, st *state, out chan<- prooffilter.Batch, wg *sync.WaitGroup) {
	if !st.has(filterInputs) {
		return
	}
	if st.cancelFilter != nil {
		st.cancelFilter()
	}

	gen := e.stage.Next()
	proofs := slices.Concat(st.requested, st.completed)
	agent := st.agent

	fctx, cancel := context.WithCancel(ctx)
	st.cancelFilter = cancel

	wg.Add(1)
	go func() {
		defer wg.Done()
		batch := e.stage.Filter(fctx, gen, proofs, agent)
		select {
		case out <- batch:
		case <-ctx.Done():
		}
	}()
}

// recompute rebuilds the feed from the current port values. A failure keeps
// the last published feed in place.
func (e *Engine) recompute(ctx context.Context, st *state, port string) {
	defer func() {
		if r := recover(); r != nil {
			if e.metrics != nil {
				e.metrics.IncrementRecomputeFailures()
			}
			e.logger.ErrorContext(ctx, "feed recomputation failed, keeping last published feed",
				"port", port,
				"version", e.version,
				"error", fmt.Sprint(r),
			)
		}
	}()

	items := e.compute(aggregator.Inputs{
		Messages:        st.messages,
		Offers:          st.offers,
		DoneCredentials: st.done,
		FilteredProofs:  st.filtered,
	})
	e.publish(ctx, st.agent, items)
}

func (e *Engine) publish(ctx context.Context, agent models.AgentIdentity, items []models.Item) {
	e.version++
	snap := Snapshot{
		Version:     e.version,
		PublishedAt: e.now().UTC(),
		Agent:       agent,
		Items:       items,
	}

	_, span := e.tracer.Start(ctx, tracer.SpanPublish,
		tracer.Int64(tracer.AttrFeedVersion, int64(snap.Version)),
		tracer.Int64(tracer.AttrFeedSize, int64(len(items))),
	)
	e.out.Publish(snap)
	span.End(nil)

	if e.metrics != nil {
		counts := make(map[string]int, 4)
		for _, it := range items {
			counts[string(it.Kind)]++
		}
		e.metrics.SetFeed(snap.Version, counts)
	}
	e.logger.DebugContext(ctx, "feed published", "version", snap.Version, "items", len(items))
}

// drainSink forwards published feeds to one sink until ctx ends.
func (e *Engine) drainSink(ctx context.Context, s namedSink) {
	for snap := range e.out.Subscribe(ctx) {
		if err := s.sink.Publish(ctx, snap); err != nil {
			if ctx.Err() != nil {
				return
			}
			if e.metrics != nil {
				e.metrics.IncrementSinkFailures(s.name)
			}
			e.logger.ErrorContext(ctx, "feed sink publish failed",
				"sink", s.name,
				"version", snap.Version,
				"error", err,
			)
		}
	}
}
