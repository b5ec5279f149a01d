package outbox

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Insert stores a new entry, joining the caller's transaction when present
	Insert(ctx context.Context, entry *Entry) error

	// ClaimPending returns up to limit pending entries, locked for the current transaction
	ClaimPending(ctx context.Context, limit int) ([]*Entry, error)

	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed records a failed publish; the entry turns failed once its attempts run out
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
