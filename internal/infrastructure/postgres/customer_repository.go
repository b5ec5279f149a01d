package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/pspadapter/internal/domain/customer"
	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CustomerRepository implements customer.Repository using PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	c := &customer.Customer{}
	err := ConnFromCtx(ctx, r.pool).QueryRow(ctx,
		`SELECT id, version, email, first_name, last_name FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Version, &c.Email, &c.FirstName, &c.LastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainErrors.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return c, nil
}
