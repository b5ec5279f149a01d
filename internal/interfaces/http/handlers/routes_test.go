package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/pspadapter/internal/interfaces/http/dto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const routeSecret = "route-test-secret-route-test-secret"

type mapStore struct {
	mu     sync.Mutex
	values map[string][]byte
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *mapStore) Reserve(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value
	return true, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *mapStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func serviceToken(t *testing.T, subject string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(routeSecret))
	require.NoError(t, err)
	return signed
}

func newSecuredServer(t *testing.T, store *mapStore) *testServer {
	t.Helper()
	return newConfiguredServer(t, func(d *RouterDeps) {
		d.JWTSecret = routeSecret
		d.Idempotency = store
		d.IdempotencyTTL = time.Hour
	})
}

func (s *testServer) send(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

const createBody = `{"amount_minor":1500,"currency":"USD","token":"tok_visa"}`

func TestPaymentRoutes_RequireServiceToken(t *testing.T) {
	s := newSecuredServer(t, &mapStore{values: map[string][]byte{}})

	w := s.send(http.MethodPost, "/api/v1/payments", createBody, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, s.outbox.Inserted)

	w = s.send(http.MethodPost, "/api/v1/payments", createBody, map[string]string{
		"Authorization": "Bearer " + serviceToken(t, "checkout"),
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestPaymentRoutes_WebhookNeedsNoToken(t *testing.T) {
	s := newSecuredServer(t, &mapStore{values: map[string][]byte{}})

	w := s.send(http.MethodPost, "/stripe/event", `{"id":"evt_1","object":"event","type":"charge.succeeded"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPaymentRoutes_CreateReplaysIdempotencyKey(t *testing.T) {
	store := &mapStore{values: map[string][]byte{}}
	s := newSecuredServer(t, store)
	headers := map[string]string{
		"Authorization":   "Bearer " + serviceToken(t, "checkout"),
		"Idempotency-Key": "order-42",
	}

	first := s.send(http.MethodPost, "/api/v1/payments", createBody, headers)
	second := s.send(http.MethodPost, "/api/v1/payments", createBody, headers)

	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replayed"))
	assert.Equal(t, decode[dto.PaymentResponse](t, first).ID, decode[dto.PaymentResponse](t, second).ID)
	assert.Len(t, s.outbox.Inserted, 1)
	assert.Contains(t, store.values, "checkout:order-42")
}
