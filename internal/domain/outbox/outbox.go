package outbox

import (
	"time"

	"github.com/google/uuid"
)

const (
	AggregatePayment    = "payment"
	EventPaymentCreated = "payment.created"
)

// Entry is a pending notification written in the same transaction as the
// aggregate change it announces.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       map[string]any
	Status        Status
	Attempts      int
	MaxAttempts   int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

func NewEntry(aggregateType string, aggregateID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		MaxAttempts:   5,
		CreatedAt:     time.Now().UTC(),
	}
}

// NewPaymentCreated announces a payment that the creation listener must process.
func NewPaymentCreated(paymentID uuid.UUID, version int64) *Entry {
	return NewEntry(AggregatePayment, paymentID, EventPaymentCreated, map[string]any{
		"payment_id": paymentID.String(),
		"version":    version,
	})
}

// Exhausted reports whether the entry used up its publish attempts.
func (e *Entry) Exhausted() bool {
	return e.Attempts >= e.MaxAttempts
}
