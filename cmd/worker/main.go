package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/pspadapter/internal/application/execution"
	paymentApp "github.com/cassiomorais/pspadapter/internal/application/payment"
	"github.com/cassiomorais/pspadapter/internal/bootstrap"
	infraRedis "github.com/cassiomorais/pspadapter/internal/infrastructure/redis"
	"github.com/cassiomorais/pspadapter/internal/interfaces/worker"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "pspadapter-worker", "pspadapter_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	workerCfg := app.Config.Worker

	// --- Payment creation listener ---
	listener := paymentApp.NewProcessPaymentUseCase(
		app.Payments, app.Customers, app.Stripe, app.Accessor,
		paymentApp.ConflictPolicy{Retries: workerCfg.ConflictRetries, Delay: workerCfg.ConflictRetryDelay},
		app.Logger,
		execution.WithLogger(app.Logger),
		execution.WithMetrics(app.Metrics),
	)

	// --- Streams ---
	producer := infraRedis.NewStreamProducer(app.Redis)
	stream := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.PaymentCreatedStream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := stream.CreateGroup(ctx); err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to create consumer group")
	}

	consumer := worker.NewPaymentConsumer(
		stream,
		producer,
		func(paymentID uuid.UUID) worker.Lock {
			return infraRedis.NewPaymentLock(app.Redis, paymentID, workerCfg.LockTTL)
		},
		listener,
		worker.ConsumerConfig{
			ProcessingTimeout: workerCfg.ProcessingTimeout,
			ReclaimMinIdle:    workerCfg.ReclaimMinIdle,
		},
		app.Logger,
		app.Metrics,
	)
	relay := worker.NewOutboxRelay(
		app.TxManager, app.Outbox, producer,
		workerCfg.OutboxPollInterval, int(workerCfg.BatchSize),
		app.Logger, app.Metrics,
	)

	app.Logger.Info().
		Str("stream", infraRedis.PaymentCreatedStream).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started, listening for messages...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error { return consumer.Run(gCtx) })
	g.Go(func() error { return relay.Run(gCtx) })
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
