package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cassiomorais/pspadapter/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload, status,
	attempts, max_attempts, created_at, published_at`

// OutboxRepository stores announcements written in the same transaction as the
// payment they describe. The worker relay drains it.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *OutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	if _, err := r.db(ctx).Exec(ctx,
		`INSERT INTO outbox (`+outboxColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.AggregateType, entry.AggregateID, entry.EventType, payload,
		string(entry.Status), entry.Attempts, entry.MaxAttempts, entry.CreatedAt, entry.PublishedAt,
	); err != nil {
		return fmt.Errorf("insert outbox entry %s: %w", entry.EventType, err)
	}
	return nil
}

// ClaimPending locks up to limit pending entries, oldest first. Call it inside
// a transaction; concurrent relays skip the rows it holds.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+outboxColumns+` FROM outbox
		 WHERE status = 'pending'
		 ORDER BY created_at ASC
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("claim pending outbox entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanOutboxEntry)
	if err != nil {
		return nil, fmt.Errorf("collect outbox entries: %w", err)
	}
	return entries, nil
}

func scanOutboxEntry(row pgx.CollectableRow) (*outbox.Entry, error) {
	var (
		e       outbox.Entry
		payload []byte
		status  string
	)
	if err := row.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &payload, &status,
		&e.Attempts, &e.MaxAttempts, &e.CreatedAt, &e.PublishedAt); err != nil {
		return nil, err
	}
	e.Status = outbox.Status(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal outbox payload: %w", err)
		}
	}
	return &e, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox SET status = 'published', published_at = NOW() WHERE id = $1`, id,
	); err != nil {
		return fmt.Errorf("mark outbox entry %s published: %w", id, err)
	}
	return nil
}

// MarkFailed counts a failed publish. The entry stays pending until it runs
// out of attempts.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox SET attempts = attempts + 1,
		        status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END
		 WHERE id = $1`, id,
	); err != nil {
		return fmt.Errorf("mark outbox entry %s failed: %w", id, err)
	}
	return nil
}
