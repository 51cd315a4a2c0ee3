package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletfeed/internal/notifications/models"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"FEED_ADDR", "JWT_SIGNING_KEY", "AGENT_ID", "ATTESTATION_URL", "ATTESTATION_TIMEOUT",
		"ATTESTATION_CONCURRENCY", "ATTESTATION_FAIL_OPEN", "ATTESTATION_CRED_DEF_IDS",
		"ATTESTATION_SCHEMA_IDS", "ATTESTATION_BREAKER_THRESHOLD", "ATTESTATION_BREAKER_COOLDOWN",
		"KAFKA_BROKERS", "REDIS_URL",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, devSigningKey, cfg.JWTSigningKey)
	assert.Equal(t, "local-agent", cfg.Agent.ID)
	assert.Equal(t, 5*time.Second, cfg.Attestation.Timeout)
	assert.Equal(t, 8, cfg.Attestation.Concurrency)
	assert.False(t, cfg.Attestation.FailOpen)
	assert.Empty(t, cfg.Attestation.Policy.Restrictions)
	assert.Equal(t, 5, cfg.Attestation.BreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Attestation.BreakerCooldown)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Empty(t, cfg.Redis.URL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FEED_ADDR", ":9090")
	t.Setenv("AGENT_ID", "agent-7")
	t.Setenv("AGENT_LABEL", "Alice's wallet")
	t.Setenv("ATTESTATION_TIMEOUT", "250ms")
	t.Setenv("ATTESTATION_CONCURRENCY", "3")
	t.Setenv("ATTESTATION_FAIL_OPEN", "true")
	t.Setenv("ATTESTATION_CRED_DEF_IDS", " def:1 ,def:2,def:1,")
	t.Setenv("ATTESTATION_SCHEMA_IDS", "schema:1")
	t.Setenv("CLASSIFICATION_CACHE_TTL", "1h")
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("KAFKA_FEED_TOPIC", "wallet.feed")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, models.AgentIdentity{ID: "agent-7", Label: "Alice's wallet"}, cfg.Agent)
	assert.Equal(t, 250*time.Millisecond, cfg.Attestation.Timeout)
	assert.Equal(t, 3, cfg.Attestation.Concurrency)
	assert.True(t, cfg.Attestation.FailOpen)
	assert.Equal(t, time.Hour, cfg.Attestation.CacheTTL)
	require.Len(t, cfg.Attestation.Policy.Restrictions, 3)
	assert.Equal(t, []models.Restriction{
		{CredDefID: "def:1"},
		{CredDefID: "def:2"},
		{SchemaID: "schema:1"},
	}, cfg.Attestation.Policy.Restrictions)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "wallet.records", cfg.Kafka.RecordsTopic)
	assert.Equal(t, "wallet.feed", cfg.Kafka.FeedTopic)
}

func TestFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("ATTESTATION_TIMEOUT", "soon")
	t.Setenv("ATTESTATION_CONCURRENCY", "-2")

	cfg := FromEnv()

	assert.Equal(t, 5*time.Second, cfg.Attestation.Timeout)
	assert.Equal(t, 8, cfg.Attestation.Concurrency)
}
