package attestation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisVerdictKeyPrefix = "walletfeed:attestation:"

// RedisCache persists verdicts in Redis with TTL-based eviction, so restarts
// and replicas share classifications.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a Redis-backed verdict cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Find loads a cached verdict.
//
// Errors: returns ErrCacheMiss when the key is absent; wraps Redis or JSON decode errors.
func (c *RedisCache) Find(ctx context.Context, key Key) (Verdict, error) {
	data, err := c.client.Get(ctx, verdictKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Verdict{}, ErrCacheMiss
		}
		return Verdict{}, fmt.Errorf("find attestation verdict: %w", err)
	}

	var v Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return Verdict{}, fmt.Errorf("decode attestation verdict: %w", err)
	}
	return v, nil
}

// Save writes a verdict with TTL eviction, overwriting any existing entry.
func (c *RedisCache) Save(ctx context.Context, key Key, v Verdict) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode attestation verdict: %w", err)
	}
	if err := c.client.Set(ctx, verdictKey(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("save attestation verdict: %w", err)
	}
	return nil
}

func verdictKey(key Key) string {
	return fmt.Sprintf("%s%s:%s", redisVerdictKeyPrefix, key.AgentID, key.ProofID)
}
