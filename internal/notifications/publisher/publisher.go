// Package publisher forwards published feeds to a Kafka topic so other
// services can render the same notification list.
package publisher

//go:generate mockgen -destination=mocks/mocks.go -package=mocks walletfeed/internal/notifications/publisher Producer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"walletfeed/internal/notifications/feed"
	"walletfeed/internal/notifications/models"
	"walletfeed/internal/platform/kafka/producer"
)

// Producer sends a record to Kafka.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// FeedEvent is the record value written for each published feed.
type FeedEvent struct {
	AgentID     string      `json:"agent_id"`
	Version     uint64      `json:"version"`
	PublishedAt time.Time   `json:"published_at"`
	Items       []ItemEvent `json:"items"`
}

// ItemEvent is one feed entry in a FeedEvent.
type ItemEvent struct {
	Kind         models.Kind `json:"kind"`
	ID           string      `json:"id"`
	CreatedAt    time.Time   `json:"created_at"`
	ConnectionID string      `json:"connection_id,omitempty"`
	State        string      `json:"state,omitempty"`
}

// KafkaSink implements feed.Sink. Records are keyed by the snapshot's agent
// so a compacted topic keeps the newest feed per wallet.
type KafkaSink struct {
	producer Producer
	topic    string
}

// NewKafkaSink creates a sink writing to topic.
func NewKafkaSink(p Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

var _ feed.Sink = (*KafkaSink)(nil)

// Publish encodes snap and produces it synchronously.
func (s *KafkaSink) Publish(ctx context.Context, snap feed.Snapshot) error {
	event := FeedEvent{
		AgentID:     snap.Agent.ID,
		Version:     snap.Version,
		PublishedAt: snap.PublishedAt,
		Items:       make([]ItemEvent, 0, len(snap.Items)),
	}
	for _, item := range snap.Items {
		event.Items = append(event.Items, ItemEvent{
			Kind:         item.Kind,
			ID:           item.ID,
			CreatedAt:    item.CreatedAt,
			ConnectionID: item.ConnectionID(),
			State:        item.State(),
		})
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode feed event: %w", err)
	}

	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(snap.Agent.ID),
		Value: value,
		Headers: map[string]string{
			"event_type":   "notification_feed.published",
			"feed_version": strconv.FormatUint(snap.Version, 10),
		},
	})
}
