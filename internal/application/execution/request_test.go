package execution

import (
	"encoding/json"
	"errors"
	"testing"

	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest_MintsDistinctTokens(t *testing.T) {
	a := NewRequest(stripe.Params{"source": "tok"})
	b := NewRequest(stripe.Params{"source": "tok"})

	assert.NotEmpty(t, a.IdempotencyKey)
	assert.NotEqual(t, a.IdempotencyKey, b.IdempotencyKey)
}

func TestRequest_RoundTripsThroughRecord(t *testing.T) {
	req := NewRequest(stripe.Params{
		"amount":   int64(1999),
		"currency": "EUR",
		"capture":  true,
		"ratio":    0.1,
		"metadata": map[string]any{"ctp_version": int64(9007199254740993)},
	})

	action, err := req.Interaction(interaction.TypeChargeCreateRequest)
	require.NoError(t, err)
	assert.Equal(t, interaction.TypeChargeCreateRequest, action.TypeKey)
	assert.Equal(t, req.IdempotencyKey, action.Fields[interaction.FieldIdempotencyKey])

	restored, err := RequestFromInteraction(payment.Interaction{Fields: action.Fields})
	require.NoError(t, err)
	assert.Equal(t, req.IdempotencyKey, restored.IdempotencyKey)

	// numbers survive exactly, including ones float64 cannot hold
	assert.Equal(t, json.Number("1999"), restored.Params["amount"])
	assert.Equal(t, json.Number("9007199254740993"), restored.Params["metadata"].(map[string]any)["ctp_version"])

	again, err := restored.Interaction(interaction.TypeChargeCreateRequest)
	require.NoError(t, err)
	assert.Equal(t, action.Fields[interaction.FieldParams], again.Fields[interaction.FieldParams])
}

func TestRequestFromInteraction_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"missing key", map[string]string{interaction.FieldParams: "{}"}},
		{"bad json", map[string]string{interaction.FieldParams: "{", interaction.FieldIdempotencyKey: "k"}},
		{"missing params", map[string]string{interaction.FieldIdempotencyKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RequestFromInteraction(payment.Interaction{Fields: tt.fields})
			require.Error(t, err)
			assert.True(t, errors.Is(err, domainErrors.ErrMalformedRecord))
		})
	}
}
