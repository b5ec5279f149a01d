package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TypeRepository implements interaction.TypeRepository using PostgreSQL.
type TypeRepository struct {
	pool *pgxpool.Pool
}

func NewTypeRepository(pool *pgxpool.Pool) *TypeRepository {
	return &TypeRepository{pool: pool}
}

func (r *TypeRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *TypeRepository) IDByKey(ctx context.Context, key string) (string, error) {
	var id string
	err := r.db(ctx).QueryRow(ctx, `SELECT id::text FROM interaction_types WHERE key = $1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", domainErrors.ErrTypeNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("lookup interaction type %s: %w", key, err)
	}
	return id, nil
}

// Ensure inserts the type unless a type with the same key exists. Field
// definitions of an existing type are left untouched.
func (r *TypeRepository) Ensure(ctx context.Context, def interaction.TypeDefinition) (string, error) {
	if _, err := r.db(ctx).Exec(ctx,
		`INSERT INTO interaction_types (key, fields) VALUES ($1, $2)
		 ON CONFLICT (key) DO NOTHING`,
		def.Key, def.Fields,
	); err != nil {
		return "", fmt.Errorf("ensure interaction type %s: %w", def.Key, err)
	}
	return r.IDByKey(ctx, def.Key)
}
