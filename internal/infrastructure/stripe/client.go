package stripe

import (
	"context"
	"encoding/json"
	"strings"
)

// Params is a request body. Values may be strings, numbers (including
// json.Number), booleans or nested Params; nested keys are form-encoded as
// parent[child].
type Params = map[string]any

// Client is the subset of the Stripe API the adapter uses. Create calls carry
// an idempotency key; Stripe replays the original response for a repeated key.
type Client interface {
	CreateCustomer(ctx context.Context, params Params, idempotencyKey string) (*Customer, error)
	CreateCharge(ctx context.Context, params Params, idempotencyKey string) (*Charge, error)
	RetrieveEvent(ctx context.Context, id string) (*Event, error)
}

type Customer struct {
	ID       string            `json:"id"`
	Email    string            `json:"email,omitempty"`
	Created  int64             `json:"created"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Charge struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Customer string `json:"customer,omitempty"`
	Captured bool   `json:"captured"`
	Status   string `json:"status"`
	Created  int64  `json:"created"`
}

type Dispute struct {
	ID       string `json:"id"`
	Object   string `json:"object"`
	Amount   int64  `json:"amount"`
	Charge   string `json:"charge"`
	Currency string `json:"currency"`
	Reason   string `json:"reason"`
	Status   string `json:"status"`
	Created  int64  `json:"created"`
}

type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

type EventData struct {
	Object json.RawMessage `json:"object"`
}

const (
	ObjectDispute = "dispute"

	EventDisputePrefix = "charge.dispute"
	EventDisputeClosed = "charge.dispute.closed"

	DisputeStatusLost = "lost"
)

// ObjectType returns the "object" discriminator of the event payload.
func (e *Event) ObjectType() string {
	var head struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(e.Data.Object, &head); err != nil {
		return ""
	}
	return head.Object
}

// Dispute decodes the event payload when it is a dispute.
func (e *Event) Dispute() (*Dispute, bool) {
	if e.ObjectType() != ObjectDispute {
		return nil, false
	}
	var d Dispute
	if err := json.Unmarshal(e.Data.Object, &d); err != nil {
		return nil, false
	}
	return &d, true
}

// IsDisputeEvent reports whether an event type belongs to the dispute family.
func IsDisputeEvent(eventType string) bool {
	return strings.HasPrefix(eventType, EventDisputePrefix)
}
