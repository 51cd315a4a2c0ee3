package config

import (
	"os"
	"strconv"
	"time"

	"walletfeed/internal/notifications/models"
	"walletfeed/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	Environment   string
	JWTSigningKey string
	TokenIssuer   string
	TokenAudience string

	Agent       models.AgentIdentity
	Attestation Attestation
	Redis       RedisConfig
	Kafka       KafkaConfig
}

// Attestation configures the attestation classifier and the proof filter stage.
type Attestation struct {
	URL         string
	APIKey      string
	Timeout     time.Duration
	Concurrency int
	FailOpen    bool
	CacheTTL    time.Duration
	Policy      models.RestrictionPolicy

	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// RedisConfig configures the optional verdict cache backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures record ingest and feed publishing. Empty Brokers
// disables both.
type KafkaConfig struct {
	Brokers      string
	RecordsTopic string
	FeedTopic    string
	GroupID      string
}

// Enabled reports whether Kafka is configured.
func (k KafkaConfig) Enabled() bool { return k.Brokers != "" }

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = devSigningKey
	}

	return Server{
		Addr:          envOr("FEED_ADDR", ":8080"),
		Environment:   envOr("FEED_ENV", "dev"),
		JWTSigningKey: jwtSigningKey,
		TokenIssuer:   envOr("TOKEN_ISSUER", "http://localhost:8080"),
		TokenAudience: envOr("TOKEN_AUDIENCE", "walletfeed"),
		Agent: models.AgentIdentity{
			ID:    envOr("AGENT_ID", "local-agent"),
			Label: os.Getenv("AGENT_LABEL"),
		},
		Attestation: Attestation{
			URL:         os.Getenv("ATTESTATION_URL"),
			APIKey:      os.Getenv("ATTESTATION_API_KEY"),
			Timeout:     durationOr("ATTESTATION_TIMEOUT", 5*time.Second),
			Concurrency: intOr("ATTESTATION_CONCURRENCY", 8),
			FailOpen:    os.Getenv("ATTESTATION_FAIL_OPEN") == "true",
			CacheTTL:    durationOr("CLASSIFICATION_CACHE_TTL", 10*time.Minute),
			Policy:      restrictionPolicy(os.Getenv("ATTESTATION_CRED_DEF_IDS"), os.Getenv("ATTESTATION_SCHEMA_IDS")),

			BreakerThreshold: intOr("ATTESTATION_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  durationOr("ATTESTATION_BREAKER_COOLDOWN", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: intOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:      os.Getenv("KAFKA_BROKERS"),
			RecordsTopic: envOr("KAFKA_RECORDS_TOPIC", "wallet.records"),
			FeedTopic:    os.Getenv("KAFKA_FEED_TOPIC"),
			GroupID:      envOr("KAFKA_GROUP_ID", "walletfeed"),
		},
	}
}

// restrictionPolicy builds one restriction per credential definition and
// schema ID.
func restrictionPolicy(credDefIDs, schemaIDs string) models.RestrictionPolicy {
	var policy models.RestrictionPolicy
	for _, id := range strings.SplitCSV(credDefIDs) {
		policy.Restrictions = append(policy.Restrictions, models.Restriction{CredDefID: id})
	}
	for _, id := range strings.SplitCSV(schemaIDs) {
		policy.Restrictions = append(policy.Restrictions, models.Restriction{SchemaID: id})
	}
	return policy
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
