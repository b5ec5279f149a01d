package worker

import (
	"context"
	"errors"
	"time"

	paymentApp "github.com/cassiomorais/pspadapter/internal/application/payment"
	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/pspadapter/internal/infrastructure/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Stream is a consumer-group view of one Redis stream.
type Stream interface {
	Stream() string
	Read(ctx context.Context) ([]redis.XMessage, error)
	Reclaim(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error)
	Ack(ctx context.Context, messageID string) error
}

type DeadLetters interface {
	PublishToDLQ(ctx context.Context, msg redis.XMessage, reason string) error
}

type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory returns an unacquired lock for one payment.
type LockFactory func(paymentID uuid.UUID) Lock

type PaymentProcessor interface {
	Execute(ctx context.Context, paymentID uuid.UUID) (*paymentApp.ProcessResult, error)
}

// ConsumerConfig tunes the payment-created consumer.
type ConsumerConfig struct {
	ProcessingTimeout time.Duration
	ReclaimMinIdle    time.Duration
}

// PaymentConsumer runs the creation listener for each payment-created
// message. Messages are acknowledged once the listener finished without a
// temporary Stripe failure. A message that can never succeed is moved to the
// dead-letter stream first. Anything else stays pending and is reclaimed after
// ReclaimMinIdle, which re-sends the recorded request.
type PaymentConsumer struct {
	stream    Stream
	dlq       DeadLetters
	locks     LockFactory
	processor PaymentProcessor
	cfg       ConsumerConfig
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

func NewPaymentConsumer(
	stream Stream,
	dlq DeadLetters,
	locks LockFactory,
	processor PaymentProcessor,
	cfg ConsumerConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *PaymentConsumer {
	return &PaymentConsumer{
		stream:    stream,
		dlq:       dlq,
		locks:     locks,
		processor: processor,
		cfg:       cfg,
		logger:    logger.With().Str("component", "payment_consumer").Str("stream", stream.Stream()).Logger(),
		metrics:   metrics,
	}
}

// Run reads until ctx is cancelled. Every read is preceded by a reclaim of
// messages abandoned by other consumers.
func (c *PaymentConsumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if c.cfg.ReclaimMinIdle > 0 {
			stale, err := c.stream.Reclaim(ctx, c.cfg.ReclaimMinIdle)
			if err != nil {
				c.logger.Warn().Err(err).Msg("Failed to reclaim pending messages")
			}
			for _, msg := range stale {
				c.Handle(ctx, msg)
			}
		}

		messages, err := c.stream.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Msg("Failed to read from stream")
			sleep(ctx, time.Second)
			continue
		}
		for _, msg := range messages {
			c.Handle(ctx, msg)
		}
	}
}

// Outcome labels of Handle, also used as metric status values.
const (
	OutcomeProcessed = "success"
	OutcomeInvalid   = "invalid"
	OutcomeLocked    = "locked"
	OutcomeRetry     = "retry"
	OutcomeDead      = "dead_letter"
)

// Handle processes one message and returns what happened to it.
func (c *PaymentConsumer) Handle(ctx context.Context, msg redis.XMessage) string {
	start := time.Now()
	outcome := c.handle(ctx, msg)
	if c.metrics != nil {
		c.metrics.WorkerMessagesProcessed.WithLabelValues(c.stream.Stream(), outcome).Inc()
		c.metrics.WorkerProcessingDuration.WithLabelValues(c.stream.Stream()).Observe(time.Since(start).Seconds())
	}
	return outcome
}

func (c *PaymentConsumer) handle(ctx context.Context, msg redis.XMessage) string {
	log := c.logger.With().Str("message_id", msg.ID).Logger()

	event, err := infraRedis.DecodePaymentCreated(msg)
	if err != nil {
		log.Error().Err(err).Msg("Undecodable message")
		c.deadLetter(ctx, msg, err.Error(), log)
		return OutcomeInvalid
	}
	log = log.With().Str("payment_id", event.PaymentID.String()).Logger()

	lock := c.locks(event.PaymentID)
	acquired, err := lock.Acquire(ctx)
	if err != nil || !acquired {
		log.Warn().Err(err).Msg("Payment is being processed elsewhere, leaving message pending")
		return OutcomeLocked
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Msg("Failed to release payment lock")
		}
	}()

	runCtx := ctx
	if c.cfg.ProcessingTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.ProcessingTimeout)
		defer cancel()
	}

	res, err := c.processor.Execute(runCtx, event.PaymentID)
	switch {
	case errors.Is(err, domainErrors.ErrPaymentNotFound):
		log.Error().Err(err).Msg("Payment does not exist")
		c.deadLetter(ctx, msg, err.Error(), log)
		return OutcomeDead
	case err != nil:
		log.Error().Err(err).Msg("Listener failed, message will be retried")
		return OutcomeRetry
	}

	if res.NeedsRetry() {
		log.Warn().Msg("Stripe temporarily unavailable, leaving message pending for retry")
		return OutcomeRetry
	}

	ev := log.Info().Bool("skipped", res.Skipped).Str("customer_decision", string(res.Customer.Decision))
	if res.Charge != nil {
		ev = ev.Str("charge_decision", string(res.Charge.Decision)).Str("charge_id", res.ChargeID())
	}
	ev.Msg("Payment processed")

	c.ack(ctx, msg, log)
	return OutcomeProcessed
}

func (c *PaymentConsumer) deadLetter(ctx context.Context, msg redis.XMessage, reason string, log zerolog.Logger) {
	if err := c.dlq.PublishToDLQ(ctx, msg, reason); err != nil {
		log.Error().Err(err).Msg("Failed to dead-letter message, leaving it pending")
		return
	}
	c.ack(ctx, msg, log)
}

func (c *PaymentConsumer) ack(ctx context.Context, msg redis.XMessage, log zerolog.Logger) {
	if err := c.stream.Ack(ctx, msg.ID); err != nil {
		log.Error().Err(err).Msg("Failed to ack message")
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
