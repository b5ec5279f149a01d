package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockClient simulates Stripe in-process. It honours idempotency keys: a
// repeated key returns the object created for it the first time. Tokens
// starting with "tok_invalid" are rejected as invalid requests and
// "tok_declined" as card errors.
type MockClient struct {
	mu          sync.Mutex
	failureRate float64
	latency     time.Duration
	failNext    []error
	customers   map[string]*Customer
	charges     map[string]*Charge
	events      map[string]*Event
	calls       int
	now         func() time.Time
}

type MockOption func(*MockClient)

// WithFailureRate makes a share of calls fail with a temporary api_error.
func WithFailureRate(rate float64) MockOption {
	return func(m *MockClient) { m.failureRate = rate }
}

func WithLatency(d time.Duration) MockOption {
	return func(m *MockClient) { m.latency = d }
}

func WithClock(now func() time.Time) MockOption {
	return func(m *MockClient) { m.now = now }
}

func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		customers: make(map[string]*Customer),
		charges:   make(map[string]*Charge),
		events:    make(map[string]*Event),
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// FailNext queues errors returned by the next calls, in order.
func (m *MockClient) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = append(m.failNext, errs...)
}

// AddEvent registers an event for RetrieveEvent.
func (m *MockClient) AddEvent(e *Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
}

// Calls returns the number of calls received, including failed ones.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) CreateCustomer(ctx context.Context, params Params, idempotencyKey string) (*Customer, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.customers[idempotencyKey]; ok && idempotencyKey != "" {
		return c, nil
	}
	if err := checkSource(params); err != nil {
		return nil, err
	}

	c := &Customer{
		ID:      "cus_" + shortID(),
		Created: m.now().Unix(),
	}
	if email, ok := params["email"].(string); ok {
		c.Email = email
	}
	if meta, ok := params["metadata"].(map[string]any); ok {
		c.Metadata = make(map[string]string, len(meta))
		for k, v := range meta {
			c.Metadata[k] = fmt.Sprint(v)
		}
	}
	m.customers[idempotencyKey] = c
	return c, nil
}

func (m *MockClient) CreateCharge(ctx context.Context, params Params, idempotencyKey string) (*Charge, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.charges[idempotencyKey]; ok && idempotencyKey != "" {
		return ch, nil
	}

	amount, err := int64Param(params["amount"])
	if err != nil || amount <= 0 {
		return nil, &Error{Kind: KindInvalidRequest, StatusCode: http.StatusBadRequest, Code: "parameter_invalid_integer", Message: "Invalid positive integer"}
	}
	currency, _ := params["currency"].(string)
	customerID, _ := params["customer"].(string)
	if customerID == "" {
		return nil, &Error{Kind: KindInvalidRequest, StatusCode: http.StatusBadRequest, Code: "parameter_missing", Message: "Must provide source or customer."}
	}

	ch := &Charge{
		ID:       "ch_" + shortID(),
		Amount:   amount,
		Currency: strings.ToLower(currency),
		Customer: customerID,
		Captured: true,
		Status:   "succeeded",
		Created:  m.now().Unix(),
	}
	m.charges[idempotencyKey] = ch
	return ch, nil
}

func (m *MockClient) RetrieveEvent(ctx context.Context, id string) (*Event, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[id]
	if !ok {
		return nil, &Error{Kind: KindInvalidRequest, StatusCode: http.StatusNotFound, Code: "resource_missing", Message: "No such event: " + id}
	}
	return e, nil
}

func (m *MockClient) begin(ctx context.Context) error {
	if m.latency > 0 {
		select {
		case <-time.After(m.latency):
		case <-ctx.Done():
			return &Error{Kind: KindAPIConnection, Message: "request cancelled", Err: ctx.Err()}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if len(m.failNext) > 0 {
		err := m.failNext[0]
		m.failNext = m.failNext[1:]
		return err
	}
	if m.failureRate > 0 && rand.Float64() < m.failureRate {
		return &Error{Kind: KindAPI, StatusCode: http.StatusInternalServerError, Message: "simulated processing failure"}
	}
	return nil
}

func checkSource(params Params) error {
	source, _ := params["source"].(string)
	switch {
	case source == "":
		return &Error{Kind: KindInvalidRequest, StatusCode: http.StatusBadRequest, Code: "parameter_missing", Message: "Missing required param: source."}
	case strings.HasPrefix(source, "tok_invalid"):
		return &Error{Kind: KindInvalidRequest, StatusCode: http.StatusBadRequest, Code: "resource_missing", Message: "No such token: " + source}
	case strings.HasPrefix(source, "tok_declined"):
		return &Error{Kind: KindCard, StatusCode: http.StatusPaymentRequired, Code: "card_declined", Message: "Your card was declined."}
	}
	return nil
}

func int64Param(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case float64:
		return int64(n), nil
	}
	return 0, fmt.Errorf("not an integer: %v", v)
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}
