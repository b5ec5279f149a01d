package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for payment persistence
type Repository interface {
	// Create persists a new payment
	Create(ctx context.Context, payment *Payment) error

	// GetByID retrieves a payment by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByInterfaceID returns the first payment (oldest first) carrying the
	// given interface id on the given payment interface.
	FindByInterfaceID(ctx context.Context, interfaceID, paymentInterface string) (*Payment, error)

	// Update applies actions as one batch conditioned on payment.Version and
	// returns the new snapshot. A stale version yields ErrConcurrentModification.
	Update(ctx context.Context, payment *Payment, actions []UpdateAction) (*Payment, error)
}
