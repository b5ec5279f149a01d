package payment

import (
	"maps"
	"slices"
	"time"

	"github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/google/uuid"
)

// InterfaceStripe is the payment interface name under which Stripe-backed
// payments are registered.
const InterfaceStripe = "STRIPE"

// TransactionType represents the kind of money movement recorded on a payment
type TransactionType string

const (
	TransactionAuthorization TransactionType = "Authorization"
	TransactionCharge        TransactionType = "Charge"
	TransactionRefund        TransactionType = "Refund"
	TransactionChargeback    TransactionType = "Chargeback"
)

// Transaction is a money movement attached to a payment.
type Transaction struct {
	ID            uuid.UUID
	Type          TransactionType
	Amount        Money
	Timestamp     time.Time
	InteractionID string
}

// Interaction is one append-only interface interaction record. TypeID refers
// to the platform-assigned id of the interaction type, Fields holds its
// string-valued custom fields.
type Interaction struct {
	TypeID    string
	Fields    map[string]string
	CreatedAt time.Time
}

// Field returns the value of the named field, or "" when absent.
func (i Interaction) Field(name string) string {
	return i.Fields[name]
}

// MethodInfo identifies the payment interface serving the payment.
type MethodInfo struct {
	PaymentInterface string
	Method           string
}

// Status carries the interface-level status of a payment.
type Status struct {
	InterfaceCode *string
	InterfaceText *string
}

// Payment is the commerce-side payment aggregate. It is versioned: every
// accepted update batch increments Version by exactly one.
type Payment struct {
	ID            uuid.UUID
	Version       int64
	CustomerID    *uuid.UUID
	AmountPlanned Money
	AmountPaid    *Money
	InterfaceID   string
	MethodInfo    MethodInfo
	Status        Status
	Transactions  []Transaction
	Interactions  []Interaction
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPayment creates a new Stripe payment draft
func NewPayment(amountPlanned Money, customerID *uuid.UUID) (*Payment, error) {
	if err := amountPlanned.Validate(); err != nil {
		return nil, errors.NewDomainError("invalid_payment", "amount planned", err)
	}

	now := time.Now().UTC()
	return &Payment{
		ID:            uuid.New(),
		Version:       1,
		CustomerID:    customerID,
		AmountPlanned: amountPlanned,
		MethodInfo:    MethodInfo{PaymentInterface: InterfaceStripe},
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// InterfaceText returns the current status interface text, "" when unset.
func (p *Payment) InterfaceText() string {
	if p.Status.InterfaceText == nil {
		return ""
	}
	return *p.Status.InterfaceText
}

// Clone returns a deep copy of the payment.
func (p *Payment) Clone() *Payment {
	c := *p
	if p.CustomerID != nil {
		id := *p.CustomerID
		c.CustomerID = &id
	}
	if p.AmountPaid != nil {
		paid := *p.AmountPaid
		c.AmountPaid = &paid
	}
	c.Status = Status{
		InterfaceCode: clonePtr(p.Status.InterfaceCode),
		InterfaceText: clonePtr(p.Status.InterfaceText),
	}
	c.Transactions = slices.Clone(p.Transactions)
	c.Interactions = make([]Interaction, len(p.Interactions))
	for i, rec := range p.Interactions {
		rec.Fields = maps.Clone(rec.Fields)
		c.Interactions[i] = rec
	}
	return &c
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
