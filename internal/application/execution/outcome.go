package execution

import (
	"errors"
	"strconv"

	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
)

// FailureKind separates failures worth retrying with the same token from
// failures that end the operation for the payment.
type FailureKind int

const (
	FailureTemporary FailureKind = iota + 1
	FailurePermanent
)

func (k FailureKind) String() string {
	if k == FailurePermanent {
		return "permanent"
	}
	return "temporary"
}

// RecordType is the interaction type a failure of this kind is recorded as.
func (k FailureKind) RecordType() string {
	if k == FailurePermanent {
		return interaction.TypeException
	}
	return interaction.TypeTemporaryException
}

// Failure is a classified remote failure.
type Failure struct {
	Kind FailureKind
	Err  error
}

// Classify decides the failure kind of a remote call error. Anything that is
// not explicitly permanent (network errors, cancelled contexts, an open
// breaker) is temporary.
func Classify(err error) Failure {
	if errors.Is(err, domainErrors.ErrPermanentRemote) {
		return Failure{Kind: FailurePermanent, Err: err}
	}
	return Failure{Kind: FailureTemporary, Err: err}
}

// Label is a low-cardinality name for metrics.
func (f Failure) Label() string {
	var se *stripe.Error
	if errors.As(f.Err, &se) {
		return string(se.Kind)
	}
	return f.Kind.String()
}

// actions records the failure and mirrors it on the payment status.
func (f Failure) actions(idempotencyKey string) []payment.UpdateAction {
	actions := []payment.UpdateAction{
		payment.AddInterfaceInteraction{
			TypeKey: f.Kind.RecordType(),
			Fields: map[string]string{
				interaction.FieldResponse:       f.Err.Error(),
				interaction.FieldIdempotencyKey: idempotencyKey,
			},
		},
	}

	var se *stripe.Error
	if errors.As(f.Err, &se) {
		actions = append(actions, payment.SetStatusInterfaceText{Text: payment.TextPtr(se.Message)})
		if se.StatusCode != 0 {
			actions = append(actions, payment.SetStatusInterfaceCode{Code: payment.TextPtr(strconv.Itoa(se.StatusCode))})
		}
	} else {
		actions = append(actions, payment.SetStatusInterfaceText{Text: payment.TextPtr(f.Err.Error())})
	}
	return actions
}

// Outcome is either a success value of T or a Failure, never both. Both
// variants carry the token of the request that produced them.
type Outcome[T any] struct {
	idempotencyKey string
	value          T
	failure        *Failure
}

func Succeeded[T any](idempotencyKey string, value T) Outcome[T] {
	return Outcome[T]{idempotencyKey: idempotencyKey, value: value}
}

func Failed[T any](idempotencyKey string, err error) Outcome[T] {
	f := Classify(err)
	return Outcome[T]{idempotencyKey: idempotencyKey, failure: &f}
}

func (o Outcome[T]) IdempotencyKey() string {
	return o.idempotencyKey
}

// Value returns the success value; ok is false for a failed outcome.
func (o Outcome[T]) Value() (value T, ok bool) {
	if o.failure != nil {
		var zero T
		return zero, false
	}
	return o.value, true
}

// Failure returns the failure; ok is false for a successful outcome.
func (o Outcome[T]) Failure() (Failure, bool) {
	if o.failure == nil {
		return Failure{}, false
	}
	return *o.failure, true
}

// Actions derives the ledger mutations for the outcome: onSuccess for a
// success, the failure record plus status update otherwise.
func (o Outcome[T]) Actions(onSuccess func(T) []payment.UpdateAction) []payment.UpdateAction {
	if o.failure != nil {
		return o.failure.actions(o.idempotencyKey)
	}
	return onSuccess(o.value)
}
