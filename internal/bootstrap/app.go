// Package bootstrap wires configuration, logging, tracing, storage and the
// Stripe client shared by the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/pspadapter/internal/application/ledger"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/config"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/observability"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/postgres"
	infraRedis "github.com/cassiomorais/pspadapter/internal/infrastructure/redis"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics

	Types     *postgres.TypeRepository
	Accessor  *ledger.Accessor
	Payments  *postgres.PaymentRepository
	Customers *postgres.CustomerRepository
	Outbox    *postgres.OutboxRepository
	TxManager *postgres.TxManager
	Stripe    stripe.Client
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, serviceName, os.Stdout)
	logger.Info().Str("instance_id", cfg.InstanceID).Str("stripe_mode", cfg.Stripe.Mode).Msg("Starting")

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			go func() {
				<-ctx.Done()
				observability.Shutdown(context.Background(), tp)
			}()
			logger.Info().Msg("Tracing enabled")
		}
	}

	metrics := observability.NewMetrics(metricsNamespace, nil)

	pool, err := postgres.NewPool(ctx, &cfg.Database, serviceName)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("Connected to PostgreSQL")

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("Connected to Redis")

	types := postgres.NewTypeRepository(pool)
	resolver := ledger.NewTypeResolver(types)
	accessor := ledger.NewAccessor(resolver,
		ledger.WithLogger(logger),
		ledger.WithUnresolvedHook(func(key string) {
			metrics.UnresolvedTypes.WithLabelValues(key).Inc()
		}),
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,

		Types:     types,
		Accessor:  accessor,
		Payments:  postgres.NewPaymentRepository(pool, resolver.ID),
		Customers: postgres.NewCustomerRepository(pool),
		Outbox:    postgres.NewOutboxRepository(pool),
		TxManager: postgres.NewTxManager(pool),
		Stripe:    NewStripeClient(cfg.Stripe, metrics, logger),
	}, nil
}

// NewStripeClient returns the configured Stripe client behind a circuit
// breaker whose state is exported as a metric.
func NewStripeClient(cfg config.StripeConfig, metrics *observability.Metrics, logger zerolog.Logger) stripe.Client {
	var next stripe.Client
	switch cfg.Mode {
	case "live":
		next = stripe.NewHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout, logger)
	default:
		logger.Warn().Msg("Using the in-process Stripe simulator")
		next = stripe.NewMockClient()
	}

	var onChange stripe.StateListener
	if metrics != nil {
		onChange = metrics.ObserveBreaker
	}
	return stripe.NewBreakerClient(next, cfg.Breaker, onChange)
}

func (a *App) Close() {
	a.Redis.Close()
	a.Pool.Close()
}
