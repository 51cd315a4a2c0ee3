package attestation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCacheMiss is returned by a Cache that holds no live verdict for a key.
var ErrCacheMiss = errors.New("attestation verdict not cached")

// Key identifies a cached verdict. A proof can classify differently per agent.
type Key struct {
	AgentID string
	ProofID string
}

func (k Key) String() string {
	return k.AgentID + "/" + k.ProofID
}

// Verdict is a cached classification.
type Verdict struct {
	Attestation  bool      `json:"attestation"`
	ClassifiedAt time.Time `json:"classified_at"`
}

// Cache stores verdicts with TTL eviction.
type Cache interface {
	Find(ctx context.Context, key Key) (Verdict, error)
	Save(ctx context.Context, key Key, v Verdict) error
}

type cachedVerdict struct {
	verdict  Verdict
	storedAt time.Time
}

// InMemoryCache keeps verdicts in process memory.
type InMemoryCache struct {
	mu       sync.RWMutex
	verdicts map[Key]cachedVerdict
	ttl      time.Duration
	now      func() time.Time
}

// NewInMemoryCache creates an in-memory cache with the given TTL.
func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{
		verdicts: make(map[Key]cachedVerdict),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Find returns ErrCacheMiss when the key is absent or expired. An expired
// entry is removed.
func (c *InMemoryCache) Find(_ context.Context, key Key) (Verdict, error) {
	c.mu.RLock()
	cached, ok := c.verdicts[key]
	c.mu.RUnlock()
	if !ok {
		return Verdict{}, ErrCacheMiss
	}
	if c.expired(cached) {
		c.mu.Lock()
		// A concurrent Save may have refreshed the entry.
		if current, ok := c.verdicts[key]; ok && c.expired(current) {
			delete(c.verdicts, key)
		}
		c.mu.Unlock()
		return Verdict{}, ErrCacheMiss
	}
	return cached.verdict, nil
}

func (c *InMemoryCache) expired(v cachedVerdict) bool {
	return c.now().Sub(v.storedAt) >= c.ttl
}

// Len reports how many entries are held, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.verdicts)
}

// Save stores v, replacing any previous verdict for key.
func (c *InMemoryCache) Save(_ context.Context, key Key, v Verdict) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdicts[key] = cachedVerdict{verdict: v, storedAt: c.now()}
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (c *InMemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, v := range c.verdicts {
		if c.expired(v) {
			delete(c.verdicts, k)
			removed++
		}
	}
	return removed
}

// PurgeEvery drops expired entries on every tick until ctx ends. Verdicts for
// proofs that are never looked up again are only reclaimed here.
func (c *InMemoryCache) PurgeEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}
