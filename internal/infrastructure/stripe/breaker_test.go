package stripe

import (
	"context"
	"net/http"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/config"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func breakerConfig() config.BreakerConfig {
	return config.BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  2,
		FailureRatio: 0.5,
	}
}

func TestBreakerClient_OpensOnTemporaryFailures(t *testing.T) {
	mock := NewMockClient()
	mock.FailNext(
		&Error{Kind: KindAPI, StatusCode: http.StatusInternalServerError, Message: "boom"},
		&Error{Kind: KindAPI, StatusCode: http.StatusInternalServerError, Message: "boom"},
	)

	var transitions []gobreaker.State
	client := NewBreakerClient(mock, breakerConfig(), func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	})

	for range 2 {
		_, err := client.CreateCustomer(context.Background(), Params{"source": "tok_visa"}, "k")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, client.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	// open breaker fails fast without reaching the client
	_, err := client.CreateCustomer(context.Background(), Params{"source": "tok_visa"}, "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrTemporaryRemote)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, mock.Calls())
}

func TestBreakerClient_PermanentFailuresDoNotTrip(t *testing.T) {
	mock := NewMockClient()
	client := NewBreakerClient(mock, breakerConfig(), nil)

	for range 4 {
		_, err := client.CreateCustomer(context.Background(), Params{"source": "tok_declined"}, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, domainErrors.ErrPermanentRemote)
	}
	assert.Equal(t, gobreaker.StateClosed, client.State())
}

func TestBreakerClient_PassesResultsThrough(t *testing.T) {
	mock := NewMockClient()
	mock.AddEvent(&Event{ID: "evt_1", Type: "charge.dispute.created"})
	client := NewBreakerClient(mock, breakerConfig(), nil)

	ev, err := client.RetrieveEvent(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, "charge.dispute.created", ev.Type)

	ch, err := client.CreateCharge(context.Background(), Params{"amount": int64(100), "currency": "EUR", "customer": "cus_1"}, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(100), ch.Amount)
}
