package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/cassiomorais/pspadapter/internal/application/dispute"
	"github.com/cassiomorais/pspadapter/internal/application/ledger"
	paymentApp "github.com/cassiomorais/pspadapter/internal/application/payment"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/observability"
	"github.com/cassiomorais/pspadapter/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router   *chi.Mux
	types    *testutil.MockTypeRepository
	payments *testutil.MockPaymentRepository
	outbox   *testutil.MockOutboxRepository
	client   *testutil.MockStripeClient
	accessor *ledger.Accessor
}

func newTestServer(t *testing.T, deps ...Dependency) *testServer {
	t.Helper()
	return newConfiguredServer(t, nil, deps...)
}

// newConfiguredServer lets configure adjust the router dependencies before the
// router is built.
func newConfiguredServer(t *testing.T, configure func(*RouterDeps), deps ...Dependency) *testServer {
	t.Helper()
	types := testutil.NewMockTypeRepository()
	payments := testutil.NewMockPaymentRepository(types)
	outboxRepo := &testutil.MockOutboxRepository{}
	client := &testutil.MockStripeClient{}
	accessor := ledger.NewAccessor(ledger.NewTypeResolver(types))
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)

	processor := dispute.NewProcessor(payments, accessor, testutil.NopLogger(), metrics)
	routerDeps := RouterDeps{
		Logger:   zerolog.Nop(),
		Metrics:  metrics,
		Gatherer: reg,
		Webhook:  NewWebhookHandler(client, processor),
		Payments: NewPaymentHandler(
			paymentApp.NewCreatePaymentUseCase(payments, outboxRepo, testutil.NewMockTransactionManager()),
			paymentApp.NewGetPaymentUseCase(payments),
		),
		Health: NewHealthHandler(deps...),
	}
	if configure != nil {
		configure(&routerDeps)
	}
	return &testServer{
		router:   NewRouter(routerDeps),
		types:    types,
		payments: payments,
		outbox:   outboxRepo,
		client:   client,
		accessor: accessor,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func ping(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}
