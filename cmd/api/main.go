package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/pspadapter/internal/application/dispute"
	paymentApp "github.com/cassiomorais/pspadapter/internal/application/payment"
	"github.com/cassiomorais/pspadapter/internal/bootstrap"
	infraRedis "github.com/cassiomorais/pspadapter/internal/infrastructure/redis"
	"github.com/cassiomorais/pspadapter/internal/interfaces/http/handlers"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "pspadapter-api", "pspadapter")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Application services ---
	disputes := dispute.NewProcessor(app.Payments, app.Accessor, app.Logger, app.Metrics)
	createPaymentUC := paymentApp.NewCreatePaymentUseCase(app.Payments, app.Outbox, app.TxManager)
	getPaymentUC := paymentApp.NewGetPaymentUseCase(app.Payments)

	// --- Build router ---
	router := handlers.NewRouter(handlers.RouterDeps{
		Logger:         app.Logger,
		Metrics:        app.Metrics,
		CORSConfig:     app.Config.Server.CORS,
		RateLimit:      app.Config.Server.RateLimit,
		JWTSecret:      app.Config.Auth.JWTSecret,
		Idempotency:    infraRedis.NewIdempotencyStore(app.Redis),
		IdempotencyTTL: app.Config.Server.IdempotencyTTL,
		Webhook:        handlers.NewWebhookHandler(app.Stripe, disputes),
		Payments:       handlers.NewPaymentHandler(createPaymentUC, getPaymentUC),
		Health: handlers.NewHealthHandler(
			handlers.Dependency{Name: "database", Ping: app.Pool.Ping},
			handlers.Dependency{Name: "redis", Ping: func(ctx context.Context) error {
				return app.Redis.Ping(ctx).Err()
			}},
		),
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
