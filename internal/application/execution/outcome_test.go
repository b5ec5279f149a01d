package execution

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"connection", &stripe.Error{Kind: stripe.KindAPIConnection}, FailureTemporary},
		{"api", &stripe.Error{Kind: stripe.KindAPI}, FailureTemporary},
		{"authentication", &stripe.Error{Kind: stripe.KindAuthentication}, FailureTemporary},
		{"rate limit", &stripe.Error{Kind: stripe.KindRateLimit}, FailureTemporary},
		{"card", &stripe.Error{Kind: stripe.KindCard}, FailurePermanent},
		{"invalid request", &stripe.Error{Kind: stripe.KindInvalidRequest}, FailurePermanent},
		{"idempotency", &stripe.Error{Kind: stripe.KindIdempotency}, FailurePermanent},
		{"permission", &stripe.Error{Kind: stripe.KindPermission}, FailurePermanent},
		{"untyped", errors.New("connection reset by peer"), FailureTemporary},
		{"deadline", context.DeadlineExceeded, FailureTemporary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err).Kind)
		})
	}
}

func TestOutcome_IsExclusive(t *testing.T) {
	ok := Succeeded("k1", "cus_1")
	v, isValue := ok.Value()
	_, isFailure := ok.Failure()
	assert.True(t, isValue)
	assert.False(t, isFailure)
	assert.Equal(t, "cus_1", v)
	assert.Equal(t, "k1", ok.IdempotencyKey())

	failed := Failed[string]("k2", &stripe.Error{Kind: stripe.KindCard, Message: "declined"})
	_, isValue = failed.Value()
	f, isFailure := failed.Failure()
	assert.False(t, isValue)
	assert.True(t, isFailure)
	assert.Equal(t, FailurePermanent, f.Kind)
	assert.Equal(t, "k2", failed.IdempotencyKey())
}

func TestOutcome_FailureActions(t *testing.T) {
	err := &stripe.Error{
		Kind:       stripe.KindInvalidRequest,
		StatusCode: http.StatusBadRequest,
		Message:    "No such token: tk_invalid",
	}
	actions := Failed[string]("k1", err).Actions(func(string) []payment.UpdateAction {
		t.Fatal("success branch must not run for a failure")
		return nil
	})

	require.Len(t, actions, 3)
	rec := actions[0].(payment.AddInterfaceInteraction)
	assert.Equal(t, interaction.TypeException, rec.TypeKey)
	assert.Equal(t, "k1", rec.Fields[interaction.FieldIdempotencyKey])
	assert.Contains(t, rec.Fields[interaction.FieldResponse], "No such token")
	assert.Equal(t, "No such token: tk_invalid", *actions[1].(payment.SetStatusInterfaceText).Text)
	assert.Equal(t, "400", *actions[2].(payment.SetStatusInterfaceCode).Code)
}

func TestOutcome_TemporaryUntypedFailureActions(t *testing.T) {
	actions := Failed[string]("k1", errors.New("dial tcp: i/o timeout")).Actions(nil)

	require.Len(t, actions, 2)
	rec := actions[0].(payment.AddInterfaceInteraction)
	assert.Equal(t, interaction.TypeTemporaryException, rec.TypeKey)
	assert.Equal(t, "dial tcp: i/o timeout", *actions[1].(payment.SetStatusInterfaceText).Text)
}

func TestFailure_Label(t *testing.T) {
	assert.Equal(t, "card_error", Classify(&stripe.Error{Kind: stripe.KindCard}).Label())
	assert.Equal(t, "temporary", Classify(errors.New("boom")).Label())
}
