// Package worker runs the background side of the adapter: relaying outbox
// entries to the payment-created stream and consuming that stream.
package worker

import (
	"context"
	"time"

	"github.com/cassiomorais/pspadapter/internal/domain/outbox"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxStore is the publisher's view of the outbox table.
type OutboxStore interface {
	ClaimPending(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

type Publisher interface {
	PublishOutboxEntry(ctx context.Context, entry *outbox.Entry) error
}

// OutboxRelay moves pending outbox entries onto the stream. Entries are
// claimed with row locks inside one transaction, so several relays can run
// side by side without publishing an entry twice per attempt.
type OutboxRelay struct {
	tx        TransactionManager
	store     OutboxStore
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

func NewOutboxRelay(
	tx TransactionManager,
	store OutboxStore,
	publisher Publisher,
	interval time.Duration,
	batchSize int,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *OutboxRelay {
	return &OutboxRelay{
		tx:        tx,
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "outbox_relay").Logger(),
		metrics:   metrics,
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if _, err := r.RelayOnce(ctx); err != nil {
			r.logger.Error().Err(err).Msg("Outbox relay error")
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were published.
// A failed publish counts an attempt against the entry; it stays pending
// until its attempts are used up.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := r.store.ClaimPending(txCtx, r.batchSize)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			log := r.logger.With().
				Str("outbox_id", entry.ID.String()).
				Str("payment_id", entry.AggregateID.String()).
				Logger()

			if err := r.publisher.PublishOutboxEntry(ctx, entry); err != nil {
				log.Error().Err(err).Int("attempts", entry.Attempts+1).Msg("Failed to publish outbox entry")
				r.count(entry.EventType, "failed")
				if err := r.store.MarkFailed(txCtx, entry.ID); err != nil {
					return err
				}
				continue
			}
			if err := r.store.MarkPublished(txCtx, entry.ID); err != nil {
				return err
			}
			r.count(entry.EventType, "published")
			published++
			log.Debug().Msg("Outbox entry published")
		}
		return nil
	})
	return published, err
}

func (r *OutboxRelay) count(eventType, status string) {
	if r.metrics != nil {
		r.metrics.WorkerMessagesProcessed.WithLabelValues("outbox:"+eventType, status).Inc()
	}
}
