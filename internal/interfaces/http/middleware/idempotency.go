package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
)

const (
	maxIdempotencyBodySize = 1 << 20

	// idempotencyPendingTTL bounds how long a crashed request can hold a key.
	idempotencyPendingTTL = time.Minute
)

// IdempotencyStore keeps recorded responses keyed by Idempotency-Key. Get
// returns nil without error for an unknown key. Reserve stores value only when
// the key is absent and reports whether it did.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Reserve(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// recordedResponse with a zero Status marks a request still in flight.
type recordedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
}

var pendingResponse = []byte(`{"status":0}`)

// Idempotency replays the recorded response for a repeated Idempotency-Key.
// The key is reserved before the handler runs, so a concurrent request with
// the same key gets 409 instead of being executed twice. Responses with
// status >= 500 release the key so the client may retry. Store failures
// degrade to passing the request through.
func Idempotency(store IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if caller, ok := Caller(r.Context()); ok {
				key = caller + ":" + key
			}
			log := hlog.FromRequest(r)

			reserved, err := store.Reserve(r.Context(), key, pendingResponse, idempotencyPendingTTL)
			if err != nil {
				log.Warn().Err(err).Msg("Idempotency reservation failed")
				next.ServeHTTP(w, r)
				return
			}
			if !reserved {
				replay(w, r, store, key)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			ctx := context.WithoutCancel(r.Context())
			value, err := json.Marshal(recordedResponse{Status: rec.statusCode, Body: rec.body.Bytes()})
			if err != nil || rec.statusCode >= 500 || rec.bodyTruncated || !json.Valid(rec.body.Bytes()) {
				if err := store.Delete(ctx, key); err != nil {
					log.Warn().Err(err).Msg("Idempotency release failed")
				}
				return
			}
			if err := store.Set(ctx, key, value, ttl); err != nil {
				log.Warn().Err(err).Msg("Idempotency record failed")
			}
		})
	}
}

// replay answers a request whose key is already taken: the recorded response
// when there is one, 409 while the first request is still running.
func replay(w http.ResponseWriter, r *http.Request, store IdempotencyStore, key string) {
	raw, err := store.Get(r.Context(), key)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Idempotency lookup failed")
	}

	var rec recordedResponse
	if raw == nil || json.Unmarshal(raw, &rec) != nil || rec.Status == 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "a request with this idempotency key is in progress",
			"code":  "idempotency_in_progress",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(rec.Status)
	w.Write(rec.Body)
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	body          *bytes.Buffer
	bodyTruncated bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.bodyTruncated {
		if r.body.Len()+len(b) > maxIdempotencyBodySize {
			r.bodyTruncated = true
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}
