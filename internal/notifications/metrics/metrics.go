// Package metrics provides Prometheus metrics for the notification feed.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Classification outcomes used as the "outcome" label.
const (
	OutcomeAttestation = "attestation"
	OutcomeUserFacing  = "user_facing"
	OutcomeFailed      = "failed"
)

// Metrics contains all notification feed metrics.
type Metrics struct {
	// Feed recomputation
	RecomputationsTotal  *prometheus.CounterVec // Recomputations by triggering port
	RecomputeFailures    prometheus.Counter     // Recomputations that kept the last-known-good feed
	FeedItems            *prometheus.GaugeVec   // Items in the published feed by kind
	FeedPublishedVersion prometheus.Gauge

	// Proof filter stage
	ClassificationsTotal      *prometheus.CounterVec // Classifier results by outcome
	ClassificationDuration    prometheus.Histogram
	FilterBatchDuration       prometheus.Histogram
	StaleBatchesDiscarded     prometheus.Counter
	CancelledBatchesDiscarded prometheus.Counter

	// Verdict cache
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Classifier circuit breaker
	CircuitState         prometheus.Gauge // 0 closed, 1 open, 2 half-open
	CircuitRejectedTotal prometheus.Counter

	// Sinks and ingest
	SinkFailuresTotal   *prometheus.CounterVec // Failed sink publishes by sink name
	IngestEventsTotal   *prometheus.CounterVec // Applied record-change events by kind
	IngestRejectedTotal prometheus.Counter
}

// New creates a new Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the metrics with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecomputationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "walletfeed_recomputations_total",
			Help: "Total number of feed recomputations, labeled by the port that triggered them",
		}, []string{"port"}),
		RecomputeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "walletfeed_recompute_failures_total",
			Help: "Total number of recomputations that failed and kept the last-known-good feed",
		}),
		FeedItems: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "walletfeed_feed_items",
			Help: "Current number of items in the published feed, labeled by kind",
		}, []string{"kind"}),
		FeedPublishedVersion: f.NewGauge(prometheus.GaugeOpts{
			Name: "walletfeed_feed_published_version",
			Help: "Version of the most recently published feed",
		}),
		ClassificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "walletfeed_classifications_total",
			Help: "Total number of attestation classifications, labeled by outcome",
		}, []string{"outcome"}),
		ClassificationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "walletfeed_classification_duration_seconds",
			Help:    "Duration of single attestation classifier calls",
			Buckets: prometheus.DefBuckets,
		}),
		FilterBatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "walletfeed_filter_batch_duration_seconds",
			Help:    "Duration of a full proof filter batch including the join barrier",
			Buckets: prometheus.DefBuckets,
		}),
		StaleBatchesDiscarded: f.NewCounter(prometheus.CounterOpts{
			Name: "walletfeed_stale_batches_discarded_total",
			Help: "Total number of proof filter batches discarded because a newer batch was issued",
		}),
		CancelledBatchesDiscarded: f.NewCounter(prometheus.CounterOpts{
			Name: "walletfeed_cancelled_batches_discarded_total",
			Help: "Total number of proof filter batches discarded because their context ended",
		}),
		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "walletfeed_classification_cache_hits_total",
			Help: "Total number of attestation verdict cache hits",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "walletfeed_classification_cache_misses_total",
			Help: "Total number of attestation verdict cache misses",
		}),
		CircuitState: f.NewGauge(prometheus.GaugeOpts{
			Name: "walletfeed_classifier_circuit_state",
			Help: "Attestation classifier circuit state: 0 closed, 1 open, 2 half-open",
		}),
		CircuitRejectedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "walletfeed_classifier_circuit_rejected_total",
			Help: "Total number of classifier calls rejected by the open circuit",
		}),
		SinkFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "walletfeed_sink_failures_total",
			Help: "Total number of failed feed sink publishes, labeled by sink",
		}, []string{"sink"}),
		IngestEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "walletfeed_ingest_events_total",
			Help: "Total number of applied record-change events, labeled by record kind",
		}, []string{"kind"}),
		IngestRejectedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "walletfeed_ingest_rejected_total",
			Help: "Total number of record-change events that could not be decoded or applied",
		}),
	}
}

// IncrementRecomputations records a recomputation triggered by port.
func (m *Metrics) IncrementRecomputations(port string) {
	m.RecomputationsTotal.WithLabelValues(port).Inc()
}

// IncrementRecomputeFailures records a recomputation that kept the previous feed.
func (m *Metrics) IncrementRecomputeFailures() {
	m.RecomputeFailures.Inc()
}

// SetFeed updates the feed gauges from per-kind counts.
func (m *Metrics) SetFeed(version uint64, counts map[string]int) {
	m.FeedPublishedVersion.Set(float64(version))
	m.FeedItems.Reset()
	for kind, n := range counts {
		m.FeedItems.WithLabelValues(kind).Set(float64(n))
	}
}

// RecordClassification records a classifier outcome and its latency.
func (m *Metrics) RecordClassification(outcome string, d time.Duration) {
	m.ClassificationsTotal.WithLabelValues(outcome).Inc()
	m.ClassificationDuration.Observe(d.Seconds())
}

// ObserveFilterBatch records how long a full filter batch took.
func (m *Metrics) ObserveFilterBatch(d time.Duration) {
	m.FilterBatchDuration.Observe(d.Seconds())
}

// IncrementStaleBatches records a batch discarded by the generation check.
func (m *Metrics) IncrementStaleBatches() {
	m.StaleBatchesDiscarded.Inc()
}

// IncrementCancelledBatches records a batch discarded after cancellation.
func (m *Metrics) IncrementCancelledBatches() {
	m.CancelledBatchesDiscarded.Inc()
}

// RecordCacheHit records a verdict cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss records a verdict cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

// SetCircuitState records the classifier circuit state.
func (m *Metrics) SetCircuitState(state int) {
	m.CircuitState.Set(float64(state))
}

// IncrementCircuitRejected records a call rejected by the open circuit.
func (m *Metrics) IncrementCircuitRejected() {
	m.CircuitRejectedTotal.Inc()
}

// IncrementSinkFailures records a failed publish to the named sink.
func (m *Metrics) IncrementSinkFailures(sink string) {
	m.SinkFailuresTotal.WithLabelValues(sink).Inc()
}

// IncrementIngestEvents records an applied record-change event.
func (m *Metrics) IncrementIngestEvents(kind string) {
	m.IngestEventsTotal.WithLabelValues(kind).Inc()
}

// IncrementIngestRejected records a record-change event that was skipped.
func (m *Metrics) IncrementIngestRejected() {
	m.IngestRejectedTotal.Inc()
}
