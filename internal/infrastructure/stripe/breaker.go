package stripe

import (
	"context"
	"errors"

	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/config"
	"github.com/sony/gobreaker/v2"
)

// StateListener observes breaker transitions.
type StateListener func(name string, from, to gobreaker.State)

// BreakerClient guards a Client with a circuit breaker. Only temporary
// failures count against the breaker; a declined card says nothing about
// Stripe's health. While open, calls fail fast with a temporary connection error.
type BreakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerClient(next Client, cfg config.BreakerConfig, onChange StateListener) *BreakerClient {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 10
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 {
		ratio = 0.6
	}

	settings := gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= ratio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domainErrors.ErrPermanentRemote)
		},
	}
	if onChange != nil {
		settings.OnStateChange = onChange
	}

	return &BreakerClient{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State returns the current breaker state.
func (c *BreakerClient) State() gobreaker.State {
	return c.cb.State()
}

func (c *BreakerClient) CreateCustomer(ctx context.Context, params Params, idempotencyKey string) (*Customer, error) {
	res, err := c.execute(func() (any, error) {
		return c.next.CreateCustomer(ctx, params, idempotencyKey)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Customer), nil
}

func (c *BreakerClient) CreateCharge(ctx context.Context, params Params, idempotencyKey string) (*Charge, error) {
	res, err := c.execute(func() (any, error) {
		return c.next.CreateCharge(ctx, params, idempotencyKey)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Charge), nil
}

func (c *BreakerClient) RetrieveEvent(ctx context.Context, id string) (*Event, error) {
	res, err := c.execute(func() (any, error) {
		return c.next.RetrieveEvent(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Event), nil
}

func (c *BreakerClient) execute(fn func() (any, error)) (any, error) {
	res, err := c.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &Error{Kind: KindAPIConnection, Message: "circuit breaker open", Err: err}
	}
	return res, err
}
