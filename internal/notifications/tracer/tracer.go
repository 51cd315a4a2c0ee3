// Package tracer provides a small tracing abstraction for the notification feed.
//
// Components depend on the Tracer interface rather than OpenTelemetry directly.
// NoopTracer is used in tests and when tracing is disabled; OTelTracer adapts
// the global OpenTelemetry provider for production.
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks it failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span; the returned context carries it to child
	// operations.
	//
	// Example:
	//   ctx, span := tr.Start(ctx, tracer.SpanFilter,
	//       tracer.Int64(tracer.AttrBatchSize, int64(len(proofs))),
	//   )
	//   defer span.End(nil)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanFilter   = "notifications.filter"
	SpanClassify = "notifications.classify"
	SpanPublish  = "notifications.publish"
)

// Attribute keys.
const (
	AttrGeneration  = "filter.generation"
	AttrBatchSize   = "filter.batch_size"
	AttrKept        = "filter.kept"
	AttrFailures    = "filter.failures"
	AttrProofID     = "proof.id"
	AttrProofState  = "proof.state"
	AttrAgentID     = "agent.id"
	AttrAttestation = "attestation"
	AttrCacheHit    = "cache.hit"
	AttrFeedVersion = "feed.version"
	AttrFeedSize    = "feed.size"
)
