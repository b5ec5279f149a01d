package execution

import (
	"bytes"
	"encoding/json"
	"fmt"

	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
	"github.com/google/uuid"
)

// Request is a remote call envelope: the parameters sent to Stripe and the
// de-duplication token that makes the call idempotent.
type Request struct {
	Params         stripe.Params
	IdempotencyKey string
}

// NewRequest mints a fresh token for params.
func NewRequest(params stripe.Params) Request {
	return Request{Params: params, IdempotencyKey: uuid.NewString()}
}

// RequestFromInteraction rebuilds the exact request stored in a request record.
// Numbers decode as json.Number so they round-trip unchanged.
func RequestFromInteraction(rec payment.Interaction) (Request, error) {
	key := rec.Field(interaction.FieldIdempotencyKey)
	if key == "" {
		return Request{}, fmt.Errorf("%w: request record has no %s", domainErrors.ErrMalformedRecord, interaction.FieldIdempotencyKey)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(rec.Field(interaction.FieldParams))))
	dec.UseNumber()

	var params stripe.Params
	if err := dec.Decode(&params); err != nil {
		return Request{}, fmt.Errorf("%w: decode params: %v", domainErrors.ErrMalformedRecord, err)
	}
	return Request{Params: params, IdempotencyKey: key}, nil
}

// Interaction builds the request record to append before the call is made.
func (r Request) Interaction(typeKey string) (payment.AddInterfaceInteraction, error) {
	raw, err := json.Marshal(r.Params)
	if err != nil {
		return payment.AddInterfaceInteraction{}, fmt.Errorf("encode params: %w", err)
	}
	return payment.AddInterfaceInteraction{
		TypeKey: typeKey,
		Fields: map[string]string{
			interaction.FieldParams:         string(raw),
			interaction.FieldIdempotencyKey: r.IdempotencyKey,
		},
	}, nil
}
