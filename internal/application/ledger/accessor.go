// Package ledger reads the append-only interaction records of a payment.
package ledger

import (
	"context"

	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/rs/zerolog"
)

// Accessor answers typed questions about a payment's interaction history.
// A type key that cannot be resolved reads as "no records of that type".
type Accessor struct {
	types     *TypeResolver
	logger    zerolog.Logger
	onUnknown func(key string)
}

type AccessorOption func(*Accessor)

func WithLogger(l zerolog.Logger) AccessorOption {
	return func(a *Accessor) { a.logger = l }
}

// WithUnresolvedHook is called every time a type key fails to resolve.
func WithUnresolvedHook(fn func(key string)) AccessorOption {
	return func(a *Accessor) { a.onUnknown = fn }
}

func NewAccessor(types *TypeResolver, opts ...AccessorOption) *Accessor {
	a := &Accessor{
		types:  types,
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Types exposes the resolver used for writes.
func (a *Accessor) Types() *TypeResolver {
	return a.types
}

// Records returns all records of the given type in insertion order.
func (a *Accessor) Records(ctx context.Context, p *payment.Payment, typeKey string) []payment.Interaction {
	typeID, ok := a.resolve(ctx, p, typeKey)
	if !ok {
		return nil
	}

	var out []payment.Interaction
	for _, rec := range p.Interactions {
		if rec.TypeID == typeID {
			out = append(out, rec)
		}
	}
	return out
}

// Last returns the most recently appended record of the given type.
func (a *Accessor) Last(ctx context.Context, p *payment.Payment, typeKey string) (payment.Interaction, bool) {
	typeID, ok := a.resolve(ctx, p, typeKey)
	if !ok {
		return payment.Interaction{}, false
	}

	for i := len(p.Interactions) - 1; i >= 0; i-- {
		if p.Interactions[i].TypeID == typeID {
			return p.Interactions[i], true
		}
	}
	return payment.Interaction{}, false
}

// LastWithField returns the most recent record of the given type whose field equals value.
func (a *Accessor) LastWithField(ctx context.Context, p *payment.Payment, typeKey, field, value string) (payment.Interaction, bool) {
	typeID, ok := a.resolve(ctx, p, typeKey)
	if !ok {
		return payment.Interaction{}, false
	}

	for i := len(p.Interactions) - 1; i >= 0; i-- {
		rec := p.Interactions[i]
		if rec.TypeID == typeID && rec.Field(field) == value {
			return rec, true
		}
	}
	return payment.Interaction{}, false
}

// Failure is a failure record correlated to a request.
type Failure struct {
	Record    payment.Interaction
	Permanent bool
}

// CorrelatedFailure finds the failure record sharing the request's
// idempotency key. A permanent failure is reported ahead of a temporary one.
func (a *Accessor) CorrelatedFailure(ctx context.Context, p *payment.Payment, request payment.Interaction) (Failure, bool) {
	key := request.Field(interaction.FieldIdempotencyKey)
	if key == "" {
		return Failure{}, false
	}

	if rec, ok := a.LastWithField(ctx, p, interaction.TypeException, interaction.FieldIdempotencyKey, key); ok {
		return Failure{Record: rec, Permanent: true}, true
	}
	if rec, ok := a.LastWithField(ctx, p, interaction.TypeTemporaryException, interaction.FieldIdempotencyKey, key); ok {
		return Failure{Record: rec}, true
	}
	return Failure{}, false
}

// Token returns the last recorded payment token, if any.
func (a *Accessor) Token(ctx context.Context, p *payment.Payment) (string, bool) {
	rec, ok := a.Last(ctx, p, interaction.TypeTokenReceived)
	if !ok {
		return "", false
	}
	token := rec.Field(interaction.FieldToken)
	return token, token != ""
}

func (a *Accessor) resolve(ctx context.Context, p *payment.Payment, typeKey string) (string, bool) {
	id, err := a.types.ID(ctx, typeKey)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Str("payment_id", p.ID.String()).
			Str("type_key", typeKey).
			Msg("Interaction type unresolved, treating history as empty")
		if a.onUnknown != nil {
			a.onUnknown(typeKey)
		}
		return "", false
	}
	return id, true
}
