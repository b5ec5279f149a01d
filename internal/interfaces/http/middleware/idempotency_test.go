package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu         sync.Mutex
	values     map[string][]byte
	ttls       map[string]time.Duration
	reserveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *memoryStore) Reserve(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserveErr != nil {
		return false, s.reserveErr
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value
	s.ttls[key] = ttl
	return true, nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	delete(s.ttls, key)
	return nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.ttls[key] = ttl
	return nil
}

func countingHandler(status int, calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"n":1}`))
	})
}

func postWithKey(h http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysRecordedResponse(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	h := Idempotency(store, time.Hour)(countingHandler(http.StatusCreated, &calls))

	first := postWithKey(h, "k1")
	second := postWithKey(h, "k1")

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replayed"))
	assert.Equal(t, time.Hour, store.ttls["k1"])
}

func TestIdempotency_ServerErrorsAreNotRecorded(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	h := Idempotency(store, time.Hour)(countingHandler(http.StatusServiceUnavailable, &calls))

	postWithKey(h, "k1")
	postWithKey(h, "k1")

	assert.Equal(t, 2, calls)
	assert.Empty(t, store.values)
}

func TestIdempotency_WithoutKeyPassesThrough(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	h := Idempotency(store, time.Hour)(countingHandler(http.StatusCreated, &calls))

	postWithKey(h, "")
	postWithKey(h, "")

	assert.Equal(t, 2, calls)
	assert.Empty(t, store.values)
}

func TestIdempotency_StoreFailureStillServes(t *testing.T) {
	store := newMemoryStore()
	store.reserveErr = errors.New("redis down")
	calls := 0
	h := Idempotency(store, time.Hour)(countingHandler(http.StatusCreated, &calls))

	w := postWithKey(h, "k1")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotency_InFlightKeyIsRejected(t *testing.T) {
	store := newMemoryStore()
	started := make(chan struct{})
	release := make(chan struct{})
	calls := 0
	h := Idempotency(store, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		close(started)
		<-release
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"p-1"}`))
	}))

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- postWithKey(h, "k1") }()
	<-started

	second := postWithKey(h, "k1")
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.JSONEq(t, `{"error":"a request with this idempotency key is in progress","code":"idempotency_in_progress"}`, second.Body.String())
	assert.Equal(t, idempotencyPendingTTL, store.ttls["k1"])

	close(release)
	first := <-done
	assert.Equal(t, http.StatusCreated, first.Code)

	third := postWithKey(h, "k1")
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.JSONEq(t, `{"id":"p-1"}`, third.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotency_ConcurrentRequestsExecuteOnce(t *testing.T) {
	store := newMemoryStore()
	var calls atomic.Int32
	h := Idempotency(store, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"p-1"}`))
	}))

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = postWithKey(h, "k1").Code
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, code := range codes {
		assert.Contains(t, []int{http.StatusCreated, http.StatusConflict}, code)
	}

	var rec recordedResponse
	require.NoError(t, json.Unmarshal(store.values["k1"], &rec))
	assert.Equal(t, http.StatusCreated, rec.Status)
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	store := newMemoryStore()
	status := http.StatusBadGateway
	calls := 0
	h := Idempotency(store, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
		w.Write([]byte(`{"n":1}`))
	}))

	assert.Equal(t, http.StatusBadGateway, postWithKey(h, "k1").Code)
	status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, postWithKey(h, "k1").Code)

	assert.Equal(t, 2, calls)
	assert.Contains(t, store.values, "k1")
}
