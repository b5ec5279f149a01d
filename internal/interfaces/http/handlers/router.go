package handlers

import (
	"time"

	"github.com/cassiomorais/pspadapter/internal/infrastructure/config"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/pspadapter/internal/interfaces/http/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Logger     zerolog.Logger
	Metrics    *observability.Metrics
	Gatherer   prometheus.Gatherer
	CORSConfig config.CORSConfig
	RateLimit  int
	JWTSecret  string

	// Idempotency may be nil, which disables Idempotency-Key replay.
	Idempotency    customMW.IdempotencyStore
	IdempotencyTTL time.Duration

	Webhook  *WebhookHandler
	Payments *PaymentHandler
	Health   *HealthHandler
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(customMW.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "Stripe-Signature"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	r.Get("/health", deps.Health.Health)
	r.Get("/health/live", deps.Health.Liveness)
	r.Get("/health/ready", deps.Health.Readiness)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Post("/stripe/event", deps.Webhook.StripeEvent)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RateLimit(deps.RateLimit))
		r.Use(customMW.RequireServiceToken(deps.JWTSecret))
		r.With(customMW.Idempotency(deps.Idempotency, deps.IdempotencyTTL)).Post("/payments", deps.Payments.Create)
		r.Get("/payments/{id}", deps.Payments.Get)
	})

	return r
}
