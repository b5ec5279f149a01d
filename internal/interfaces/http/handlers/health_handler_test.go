package handlers

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealth_Endpoints(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, "alive", decode[map[string]string](t, s.do(t, http.MethodGet, "/health/live", nil))["status"])
}

func TestHealth_Ready(t *testing.T) {
	s := newTestServer(t,
		Dependency{Name: "database", Ping: ping(nil)},
		Dependency{Name: "redis", Ping: ping(nil)},
	)

	w := s.do(t, http.MethodGet, "/health/ready", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, w)["status"])
}

func TestHealth_NotReadyNamesFirstFailure(t *testing.T) {
	s := newTestServer(t,
		Dependency{Name: "database", Ping: ping(nil)},
		Dependency{Name: "redis", Ping: ping(errors.New("dial tcp: refused"))},
	)

	w := s.do(t, http.MethodGet, "/health/ready", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "redis unavailable", decode[map[string]string](t, w)["reason"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health", nil)

	w := s.do(t, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "test_http_requests_total"))
}
