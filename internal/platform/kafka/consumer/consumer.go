package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message represents a received Kafka message.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes consumed messages.
type Handler interface {
	// Handle processes a message. Return an error to leave its offset unmarked.
	Handle(ctx context.Context, msg *Message) error
}

// Consumer reads a consumer group's topics with franz-go and marks offsets
// only after the handler accepted the record.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// Config holds consumer configuration.
type Config struct {
	Brokers string
	GroupID string
	Topics  []string
	// FromLatest starts new groups at the end of the log instead of the start.
	FromLatest bool
}

// New creates a new Kafka consumer.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if cfg.Brokers == "" {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer group ID not configured")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("kafka consumer topics not configured")
	}
	if handler == nil {
		return nil, fmt.Errorf("kafka consumer handler is required")
	}

	reset := kgo.NewOffset().AtStart()
	if cfg.FromLatest {
		reset = kgo.NewOffset().AtEnd()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(cfg.Brokers, ",")...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ConsumeResetOffset(reset),
		kgo.AutoCommitMarks(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	return &Consumer{
		client:  client,
		handler: handler,
		logger:  logger,
	}, nil
}

// Start begins the consumption loop in a background goroutine.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run(ctx)
}

func (c *Consumer) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			if c.logger != nil {
				c.logger.Error("kafka fetch error",
					"topic", topic,
					"partition", partition,
					"error", err,
				)
			}
		})

		fetches.EachRecord(func(r *kgo.Record) {
			if c.process(ctx, r) {
				c.client.MarkCommitRecords(r)
			}
		})
	}
}

// process hands one record to the handler and reports whether its offset
// may be committed.
func (c *Consumer) process(ctx context.Context, r *kgo.Record) bool {
	msg := toMessage(r)
	if err := c.handler.Handle(ctx, msg); err != nil {
		if c.logger != nil {
			c.logger.Error("failed to handle message",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
		return false
	}
	return true
}

func toMessage(r *kgo.Record) *Message {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   headers,
		Timestamp: r.Timestamp,
	}
}

// Stop ends the loop, commits marked offsets and closes the client.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.client.Close()
		return ctx.Err()
	}

	err := c.client.CommitMarkedOffsets(ctx)
	c.client.Close()
	if err != nil {
		return fmt.Errorf("commit marked offsets: %w", err)
	}
	return nil
}

// Healthy checks if the consumer can reach the brokers.
func (c *Consumer) Healthy(ctx context.Context) bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false
	}
	return c.client.Ping(ctx) == nil
}
