package customer

import (
	"context"

	"github.com/google/uuid"
)

// Customer is the commerce-side customer a payment may reference.
type Customer struct {
	ID        uuid.UUID
	Version   int64
	Email     string
	FirstName string
	LastName  string
}

type Repository interface {
	// GetByID returns ErrCustomerNotFound when no customer has the id
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)
}
