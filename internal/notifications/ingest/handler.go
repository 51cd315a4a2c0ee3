// Package ingest applies wallet record-change events from Kafka to the
// wallet store the feed watches.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"walletfeed/internal/notifications/metrics"
	"walletfeed/internal/notifications/models"
	"walletfeed/internal/platform/kafka/consumer"
	dErrors "walletfeed/pkg/domain-errors"
)

// Wallet is the writable side of the wallet store.
type Wallet interface {
	UpsertMessage(m models.MessageRecord) error
	UpsertCredential(c models.CredentialRecord) error
	UpsertProof(p models.ProofRecord) error
	DeleteMessage(id string) error
	DeleteCredential(id string) error
	DeleteProof(id string) error
	SetAgent(agent models.AgentIdentity)
}

// Handler implements consumer.Handler.
type Handler struct {
	wallet  Wallet
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures the Handler.
type Option func(*Handler)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// New creates an ingest handler. Panics if wallet is nil.
func New(wallet Wallet, opts ...Option) *Handler {
	if wallet == nil {
		panic("ingest.New: wallet is required")
	}
	h := &Handler{
		wallet: wallet,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ consumer.Handler = (*Handler)(nil)

// Handle applies one event. Events that can never succeed are logged and
// acknowledged; only store failures are returned so the offset is retried.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		h.reject(ctx, msg, "undecodable envelope", err)
		return nil
	}

	err := h.apply(ctx, env)
	switch {
	case err == nil:
		if h.metrics != nil {
			h.metrics.IncrementIngestEvents(env.Kind)
		}
		return nil
	case env.Op == OpDelete && dErrors.HasCode(err, dErrors.CodeNotFound):
		// Already gone; deletes are idempotent.
		return nil
	case dErrors.HasCode(err, dErrors.CodeInvalidInput):
		h.reject(ctx, msg, "invalid record", err)
		return nil
	default:
		return fmt.Errorf("apply %s %s: %w", env.Op, env.Kind, err)
	}
}

func (h *Handler) reject(ctx context.Context, msg *consumer.Message, reason string, err error) {
	if h.metrics != nil {
		h.metrics.IncrementIngestRejected()
	}
	h.logger.WarnContext(ctx, "skipping record event",
		"reason", reason,
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"error", err,
	)
}

func (h *Handler) apply(ctx context.Context, env Envelope) error {
	switch env.Op {
	case OpUpsert:
		return h.upsert(ctx, env)
	case OpDelete:
		if env.Kind == KindAgent {
			return dErrors.New(dErrors.CodeInvalidInput, "agent cannot be deleted")
		}
		var rec deleteRecord
		if err := decode(env.Record, &rec); err != nil {
			return err
		}
		switch env.Kind {
		case KindMessage:
			return h.wallet.DeleteMessage(rec.ID)
		case KindCredential:
			return h.wallet.DeleteCredential(rec.ID)
		case KindProof:
			return h.wallet.DeleteProof(rec.ID)
		}
		return unknownKind(env.Kind)
	default:
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown op %q", env.Op))
	}
}

func (h *Handler) upsert(ctx context.Context, env Envelope) error {
	switch env.Kind {
	case KindMessage:
		var rec messageRecord
		if err := decode(env.Record, &rec); err != nil {
			return err
		}
		return h.wallet.UpsertMessage(models.MessageRecord{
			ID:           rec.ID,
			ConnectionID: rec.ConnectionID,
			CreatedAt:    rec.CreatedAt,
			Content:      rec.Content,
			Metadata:     models.MessageMetadata{Seen: h.ack(ctx, rec.ID, rec.Metadata, "seen")},
		})
	case KindCredential:
		var rec credentialRecord
		if err := decode(env.Record, &rec); err != nil {
			return err
		}
		return h.wallet.UpsertCredential(models.CredentialRecord{
			ID:                     rec.ID,
			ConnectionID:           rec.ConnectionID,
			CreatedAt:              rec.CreatedAt,
			State:                  rec.State,
			RevocationNotification: rec.RevocationNotification,
			Metadata:               models.CredentialMetadata{RevokedSeen: h.ack(ctx, rec.ID, rec.Metadata, "revoked_seen")},
		})
	case KindProof:
		var rec proofRecord
		if err := decode(env.Record, &rec); err != nil {
			return err
		}
		return h.wallet.UpsertProof(models.ProofRecord{
			ID:           rec.ID,
			ConnectionID: rec.ConnectionID,
			CreatedAt:    rec.CreatedAt,
			State:        rec.State,
			IsVerified:   rec.IsVerified,
			Metadata:     models.ProofMetadata{DetailsSeen: h.ack(ctx, rec.ID, rec.Metadata, "details_seen")},
		})
	case KindAgent:
		var agent models.AgentIdentity
		if err := decode(env.Record, &agent); err != nil {
			return err
		}
		if agent.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "agent ID is required")
		}
		h.wallet.SetAgent(agent)
		return nil
	}
	return unknownKind(env.Kind)
}

// ack reads an acknowledgement flag. Malformed values fall back to
// unrecorded so the notification stays visible.
func (h *Handler) ack(ctx context.Context, id string, meta metadata, key string) models.Ack {
	a, err := models.ParseAck(meta[key])
	if err != nil {
		h.logger.WarnContext(ctx, "malformed acknowledgement metadata",
			"record_id", id,
			"key", key,
			"error", err,
		)
	}
	return a
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "record is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "decode record")
	}
	return nil
}

func unknownKind(kind string) error {
	return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown kind %q", kind))
}
