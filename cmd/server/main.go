package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "walletfeed/internal/jwt_token"
	"walletfeed/internal/notifications/attestation"
	"walletfeed/internal/notifications/feed"
	"walletfeed/internal/notifications/handler"
	"walletfeed/internal/notifications/ingest"
	"walletfeed/internal/notifications/metrics"
	"walletfeed/internal/notifications/prooffilter"
	"walletfeed/internal/notifications/publisher"
	"walletfeed/internal/notifications/store"
	"walletfeed/internal/notifications/tracer"
	"walletfeed/internal/platform/config"
	"walletfeed/internal/platform/health"
	"walletfeed/internal/platform/kafka"
	"walletfeed/internal/platform/kafka/consumer"
	"walletfeed/internal/platform/kafka/producer"
	"walletfeed/internal/platform/logger"
	"walletfeed/internal/platform/middleware"
	"walletfeed/internal/platform/redis"
	"walletfeed/pkg/platform/validation"
)

const (
	shutdownTimeout   = 10 * time.Second
	poolStatsInterval = 15 * time.Second
	feedTokenTTL      = 15 * time.Minute
)

// main wires the wallet store, the proof filter and the feed engine, then
// serves the feed until SIGINT or SIGTERM.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("walletfeed stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("walletfeed stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if cfg.Attestation.URL == "" {
		return errors.New("ATTESTATION_URL is required")
	}

	log.Info("initializing walletfeed",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"agent_id", cfg.Agent.ID,
		"kafka_enabled", cfg.Kafka.Enabled(),
	)

	m := metrics.New()
	tr := tracer.NewOTel()
	healthHandler := health.New(cfg.Environment)
	wallet := store.NewInMemoryWallet(cfg.Agent)

	g, ctx := errgroup.WithContext(ctx)

	classifier, err := buildClassifier(ctx, g, cfg, m, log, healthHandler)
	if err != nil {
		return err
	}

	onFailure := prooffilter.FailClosed
	if cfg.Attestation.FailOpen {
		onFailure = prooffilter.FailOpen
	}
	stage := prooffilter.New(prooffilter.Config{
		Classifier:      classifier,
		Policy:          cfg.Attestation.Policy,
		Concurrency:     cfg.Attestation.Concurrency,
		ClassifyTimeout: cfg.Attestation.Timeout,
		OnFailure:       onFailure,
	},
		prooffilter.WithMetrics(m),
		prooffilter.WithTracer(tr),
		prooffilter.WithLogger(log),
	)

	engineOpts := []feed.Option{
		feed.WithMetrics(m),
		feed.WithTracer(tr),
		feed.WithLogger(log),
	}

	var (
		prod *producer.Producer
		cons *consumer.Consumer
	)
	if cfg.Kafka.Enabled() {
		kafkaHealth := kafka.NewHealthChecker(cfg.Kafka.Brokers)
		healthHandler.RegisterCheck(kafkaHealth.Name(), kafkaHealth.Check)

		if cfg.Kafka.FeedTopic != "" {
			prod, err = producer.New(producer.DefaultConfig(cfg.Kafka.Brokers), log)
			if err != nil {
				return fmt.Errorf("create feed producer: %w", err)
			}
			defer prod.Close() //nolint:errcheck // Close always returns nil after flushing
			engineOpts = append(engineOpts, feed.WithSink("kafka", publisher.NewKafkaSink(prod, cfg.Kafka.FeedTopic)))
		}

		cons, err = consumer.New(consumer.Config{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topics:  []string{cfg.Kafka.RecordsTopic},
		}, ingest.New(wallet, ingest.WithMetrics(m), ingest.WithLogger(log)), log)
		if err != nil {
			return fmt.Errorf("create records consumer: %w", err)
		}
	}

	engine := feed.New(feed.Sources{
		Messages:    wallet,
		Credentials: wallet,
		Proofs:      wallet,
		Identity:    wallet,
	}, stage, engineOpts...)
	healthHandler.RegisterCheck("feed", func(context.Context) error {
		if _, ok := engine.Snapshot(); !ok {
			return errors.New("feed not yet published")
		}
		return nil
	})

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.TokenIssuer, cfg.TokenAudience, feedTokenTTL)
	router := newRouter(log, healthHandler, handler.New(engine, wallet, log), jwttoken.NewJWTServiceAdapter(jwtService))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		return engine.Run(ctx)
	})

	if cons != nil {
		cons.Start(ctx)
	}

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if cons != nil {
			if err := cons.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("consumer shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildClassifier returns the HTTP classifier behind a circuit breaker and a
// verdict cache. Redis is used when configured, otherwise verdicts are cached
// in process.
func buildClassifier(ctx context.Context, g *errgroup.Group, cfg config.Server, m *metrics.Metrics, log *slog.Logger, hh *health.Handler) (*attestation.CachedClassifier, error) {
	httpClassifier := attestation.NewHTTPClassifier(attestation.HTTPConfig{
		BaseURL: cfg.Attestation.URL,
		APIKey:  cfg.Attestation.APIKey,
		Timeout: cfg.Attestation.Timeout,
	})
	hh.RegisterCheck("attestation", httpClassifier.Health)

	var cache attestation.Cache
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rc == nil {
		memory := attestation.NewInMemoryCache(cfg.Attestation.CacheTTL)
		cache = memory
		g.Go(func() error {
			memory.PurgeEvery(ctx, cfg.Attestation.CacheTTL)
			return nil
		})
	} else {
		log.Info("using redis verdict cache")
		cache = attestation.NewRedisCache(rc.Client, cfg.Attestation.CacheTTL)
		hh.RegisterCheck("redis", rc.Health)
		g.Go(func() error {
			rc.RecordPoolStatsEvery(ctx, poolStatsInterval)
			return rc.Close()
		})
	}

	guarded := attestation.NewBreakerClassifier(httpClassifier, attestation.BreakerConfig{
		FailureThreshold: cfg.Attestation.BreakerThreshold,
		Cooldown:         cfg.Attestation.BreakerCooldown,
	}, m, log)

	return attestation.NewCachedClassifier(guarded, cache,
		attestation.WithCacheMetrics(m),
		attestation.WithCacheLogger(log),
	), nil
}

func newRouter(log *slog.Logger, hh *health.Handler, feedHandler *handler.Handler, validator middleware.JWTValidator) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.NewHTTPMetrics(prometheus.DefaultRegisterer).Instrument)
	r.Use(middleware.BodyLimit(validation.MaxBodySize))

	hh.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, log))
		feedHandler.Register(r)
	})
	return r
}
