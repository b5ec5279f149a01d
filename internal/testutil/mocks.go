package testutil

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cassiomorais/pspadapter/internal/domain/customer"
	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/outbox"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
	"github.com/google/uuid"
)

// --- Payment Repository Mock ---

// MockPaymentRepository is an in-memory payment.Repository that enforces
// optimistic versions the way the real store does. Snapshots handed out are
// copies; callers never alias stored state.
type MockPaymentRepository struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*payment.Payment
	types    *MockTypeRepository
	updates  int

	CreateFunc            func(ctx context.Context, p *payment.Payment) error
	GetByIDFunc           func(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	FindByInterfaceIDFunc func(ctx context.Context, interfaceID, paymentInterface string) (*payment.Payment, error)
	UpdateFunc            func(ctx context.Context, p *payment.Payment, actions []payment.UpdateAction) (*payment.Payment, error)
	// BeforeUpdate runs ahead of the version check, e.g. to simulate a concurrent writer.
	BeforeUpdate func(p *payment.Payment)
}

func NewMockPaymentRepository(types *MockTypeRepository) *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[uuid.UUID]*payment.Payment),
		types:    types,
	}
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[p.ID] = p.Clone()
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	return p.Clone(), nil
}

func (m *MockPaymentRepository) FindByInterfaceID(ctx context.Context, interfaceID, paymentInterface string) (*payment.Payment, error) {
	if m.FindByInterfaceIDFunc != nil {
		return m.FindByInterfaceIDFunc(ctx, interfaceID, paymentInterface)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []*payment.Payment
	for _, p := range m.payments {
		if p.InterfaceID == interfaceID && p.MethodInfo.PaymentInterface == paymentInterface {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return nil, domainErrors.ErrPaymentNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		return matches[i].ID.String() < matches[j].ID.String()
	})
	return matches[0].Clone(), nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, p *payment.Payment, actions []payment.UpdateAction) (*payment.Payment, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, p, actions)
	}
	if m.BeforeUpdate != nil {
		m.BeforeUpdate(p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.payments[p.ID]
	if !ok {
		return nil, domainErrors.ErrPaymentNotFound
	}
	if current.Version != p.Version {
		return nil, domainErrors.ErrConcurrentModification
	}

	next, err := payment.Apply(ctx, current, actions, m.types.IDByKey)
	if err != nil {
		return nil, err
	}
	m.payments[p.ID] = next
	m.updates++
	return next.Clone(), nil
}

// Bump simulates a concurrent writer by incrementing the stored version.
func (m *MockPaymentRepository) Bump(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payments[id]; ok {
		p.Version++
	}
}

// Stored returns a copy of the stored payment (test helper, no context needed).
func (m *MockPaymentRepository) Stored(id uuid.UUID) *payment.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil
	}
	return p.Clone()
}

// Updates returns the number of accepted update batches.
func (m *MockPaymentRepository) Updates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates
}

// --- Interaction Type Repository Mock ---

// MockTypeRepository is an in-memory interaction.TypeRepository.
type MockTypeRepository struct {
	mu      sync.Mutex
	ids     map[string]string
	lookups int

	IDByKeyFunc func(ctx context.Context, key string) (string, error)
}

// NewMockTypeRepository returns a repository with every adapter type provisioned.
func NewMockTypeRepository() *MockTypeRepository {
	r := &MockTypeRepository{ids: make(map[string]string)}
	for _, def := range interaction.Definitions() {
		r.ids[def.Key] = TypeID(def.Key)
	}
	return r
}

// NewEmptyTypeRepository returns a repository with no types provisioned.
func NewEmptyTypeRepository() *MockTypeRepository {
	return &MockTypeRepository{ids: make(map[string]string)}
}

// TypeID is the id the mock assigns to a type key.
func TypeID(key string) string {
	return "type-" + key
}

func (r *MockTypeRepository) IDByKey(ctx context.Context, key string) (string, error) {
	if r.IDByKeyFunc != nil {
		return r.IDByKeyFunc(ctx, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	id, ok := r.ids[key]
	if !ok {
		return "", domainErrors.ErrTypeNotFound
	}
	return id, nil
}

func (r *MockTypeRepository) Ensure(ctx context.Context, def interaction.TypeDefinition) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[def.Key]; ok {
		return id, nil
	}
	id := TypeID(def.Key)
	r.ids[def.Key] = id
	return id, nil
}

// Remove deletes a type, making it unresolvable.
func (r *MockTypeRepository) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, key)
}

// Lookups returns how many IDByKey calls reached the repository.
func (r *MockTypeRepository) Lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}

// --- Customer Repository Mock ---

type MockCustomerRepository struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*customer.Customer

	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
}

func NewMockCustomerRepository() *MockCustomerRepository {
	return &MockCustomerRepository{customers: make(map[uuid.UUID]*customer.Customer)}
}

// AddCustomer pre-populates the mock with a customer.
func (m *MockCustomerRepository) AddCustomer(c *customer.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, domainErrors.ErrCustomerNotFound
	}
	return c, nil
}

// --- Stripe Client Mock ---

// StripeCall records one create call.
type StripeCall struct {
	Params         stripe.Params
	IdempotencyKey string
}

// MockStripeClient is a scripted stripe.Client recording every create call.
type MockStripeClient struct {
	mu              sync.Mutex
	CustomerCalls   []StripeCall
	ChargeCalls     []StripeCall
	EventRetrievals []string

	CreateCustomerFunc func(ctx context.Context, params stripe.Params, idempotencyKey string) (*stripe.Customer, error)
	CreateChargeFunc   func(ctx context.Context, params stripe.Params, idempotencyKey string) (*stripe.Charge, error)
	RetrieveEventFunc  func(ctx context.Context, id string) (*stripe.Event, error)
}

func (m *MockStripeClient) CreateCustomer(ctx context.Context, params stripe.Params, idempotencyKey string) (*stripe.Customer, error) {
	m.mu.Lock()
	m.CustomerCalls = append(m.CustomerCalls, StripeCall{Params: params, IdempotencyKey: idempotencyKey})
	m.mu.Unlock()
	if m.CreateCustomerFunc != nil {
		return m.CreateCustomerFunc(ctx, params, idempotencyKey)
	}
	return &stripe.Customer{ID: "cus_test"}, nil
}

func (m *MockStripeClient) CreateCharge(ctx context.Context, params stripe.Params, idempotencyKey string) (*stripe.Charge, error) {
	m.mu.Lock()
	m.ChargeCalls = append(m.ChargeCalls, StripeCall{Params: params, IdempotencyKey: idempotencyKey})
	m.mu.Unlock()
	if m.CreateChargeFunc != nil {
		return m.CreateChargeFunc(ctx, params, idempotencyKey)
	}
	ch := &stripe.Charge{ID: "ch_test", Captured: true, Status: "succeeded", Created: time.Now().Unix()}
	switch amount := params["amount"].(type) {
	case int64:
		ch.Amount = amount
	case json.Number:
		ch.Amount, _ = amount.Int64()
	}
	ch.Currency, _ = params["currency"].(string)
	return ch, nil
}

func (m *MockStripeClient) RetrieveEvent(ctx context.Context, id string) (*stripe.Event, error) {
	m.mu.Lock()
	m.EventRetrievals = append(m.EventRetrievals, id)
	m.mu.Unlock()
	if m.RetrieveEventFunc != nil {
		return m.RetrieveEventFunc(ctx, id)
	}
	return nil, &stripe.Error{Kind: stripe.KindInvalidRequest, StatusCode: 404, Message: "No such event: " + id}
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository.
type MockOutboxRepository struct {
	mu       sync.Mutex
	Inserted []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	ClaimPendingFunc  func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inserted = append(m.Inserted, entry)
	return nil
}

// ClaimPending returns inserted entries that are still pending.
func (m *MockOutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.ClaimPendingFunc != nil {
		return m.ClaimPendingFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*outbox.Entry
	for _, e := range m.Inserted {
		if e.Status == outbox.StatusPending && len(pending) < limit {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.find(id); e != nil {
		now := time.Now().UTC()
		e.Status = outbox.StatusPublished
		e.PublishedAt = &now
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.find(id); e != nil {
		e.Attempts++
		if e.Exhausted() {
			e.Status = outbox.StatusFailed
		}
	}
	return nil
}

func (m *MockOutboxRepository) find(id uuid.UUID) *outbox.Entry {
	for _, e := range m.Inserted {
		if e.ID == id {
			return e
		}
	}
	return nil
}
