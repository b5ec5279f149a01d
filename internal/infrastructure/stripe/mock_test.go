package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_ReplaysByIdempotencyKey(t *testing.T) {
	m := NewMockClient()
	ctx := context.Background()

	first, err := m.CreateCustomer(ctx, Params{"source": "tok_visa"}, "key-1")
	require.NoError(t, err)
	again, err := m.CreateCustomer(ctx, Params{"source": "tok_visa"}, "key-1")
	require.NoError(t, err)
	other, err := m.CreateCustomer(ctx, Params{"source": "tok_visa"}, "key-2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, 3, m.Calls())
}

func TestMockClient_TokenRejections(t *testing.T) {
	m := NewMockClient()

	_, err := m.CreateCustomer(context.Background(), Params{"source": "tok_invalid"}, "k1")
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindInvalidRequest, se.Kind)
	assert.Contains(t, se.Message, "No such token")

	_, err = m.CreateCustomer(context.Background(), Params{"source": "tok_declined"}, "k2")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindCard, se.Kind)
	assert.ErrorIs(t, err, domainErrors.ErrPermanentRemote)
}

func TestMockClient_CreateCharge(t *testing.T) {
	created := time.Unix(1700000000, 0)
	m := NewMockClient(WithClock(func() time.Time { return created }))

	ch, err := m.CreateCharge(context.Background(), Params{
		"amount":   json.Number("4200"),
		"currency": "EUR",
		"customer": "cus_1",
		"capture":  true,
	}, "key")
	require.NoError(t, err)

	assert.Equal(t, int64(4200), ch.Amount)
	assert.Equal(t, "eur", ch.Currency)
	assert.Equal(t, created.Unix(), ch.Created)
	assert.True(t, ch.Captured)
}

func TestMockClient_FailNextThenSucceed(t *testing.T) {
	m := NewMockClient()
	m.FailNext(&Error{Kind: KindRateLimit, StatusCode: 429, Message: "slow down"})

	_, err := m.CreateCustomer(context.Background(), Params{"source": "tok_visa"}, "k")
	assert.ErrorIs(t, err, domainErrors.ErrTemporaryRemote)

	_, err = m.CreateCustomer(context.Background(), Params{"source": "tok_visa"}, "k")
	assert.NoError(t, err)
}

func TestMockClient_WithLatencyHonoursContext(t *testing.T) {
	m := NewMockClient(WithLatency(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.RetrieveEvent(ctx, "evt")
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindAPIConnection, se.Kind)
}

func TestMockClient_UnknownEvent(t *testing.T) {
	m := NewMockClient()
	_, err := m.RetrieveEvent(context.Background(), "evt_missing")
	assert.ErrorIs(t, err, domainErrors.ErrPermanentRemote)
}
