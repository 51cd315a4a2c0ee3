package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"walletfeed/internal/platform/config"
)

var (
	poolHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletfeed_redis_pool_hits_total",
		Help: "Number of times a connection was found in the pool",
	})
	poolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletfeed_redis_pool_misses_total",
		Help: "Number of times a connection was not found in the pool",
	})
	poolTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletfeed_redis_pool_timeouts_total",
		Help: "Number of times a connection was not obtained due to timeout",
	})
	poolTotalConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletfeed_redis_pool_total_conns",
		Help: "Number of total connections in the pool",
	})
	poolIdleConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletfeed_redis_pool_idle_conns",
		Help: "Number of idle connections in the pool",
	})
)

// Client wraps the go-redis client used by the attestation verdict cache.
type Client struct {
	*redis.Client
	lastStats *redis.PoolStats
}

// New connects to Redis. Returns nil, nil when no URL is configured so
// callers can fall back to the in-memory cache.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RecordPoolStats updates the pool metrics from the client's counters.
func (c *Client) RecordPoolStats() {
	stats := c.PoolStats()
	poolTotalConns.Set(float64(stats.TotalConns))
	poolIdleConns.Set(float64(stats.IdleConns))

	var last redis.PoolStats
	if c.lastStats != nil {
		last = *c.lastStats
	}
	if stats.Hits > last.Hits {
		poolHits.Add(float64(stats.Hits - last.Hits))
	}
	if stats.Misses > last.Misses {
		poolMisses.Add(float64(stats.Misses - last.Misses))
	}
	if stats.Timeouts > last.Timeouts {
		poolTimeouts.Add(float64(stats.Timeouts - last.Timeouts))
	}
	c.lastStats = stats
}

// RecordPoolStatsEvery records pool stats on every tick until ctx ends.
func (c *Client) RecordPoolStatsEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RecordPoolStats()
		}
	}
}
