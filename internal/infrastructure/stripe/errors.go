package stripe

import (
	"fmt"
	"net/http"

	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	stripeapi "github.com/stripe/stripe-go/v82"
)

// ErrorKind is the class of a failed Stripe call.
type ErrorKind string

const (
	KindAPIConnection  ErrorKind = "api_connection_error"
	KindAPI            ErrorKind = "api_error"
	KindAuthentication ErrorKind = "authentication_error"
	KindRateLimit      ErrorKind = "rate_limit_error"
	KindInvalidRequest ErrorKind = "invalid_request_error"
	KindCard           ErrorKind = "card_error"
	KindIdempotency    ErrorKind = "idempotency_error"
	KindPermission     ErrorKind = "permission_error"
)

// Temporary reports whether a retry with the same idempotency key may succeed.
func (k ErrorKind) Temporary() bool {
	switch k {
	case KindAPIConnection, KindAPI, KindAuthentication, KindRateLimit:
		return true
	}
	return false
}

// Error is a failed Stripe call. It unwraps to ErrTemporaryRemote or
// ErrPermanentRemote depending on its kind.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("stripe %s: %s", e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	sentinel := domainErrors.ErrPermanentRemote
	if e.Kind.Temporary() {
		sentinel = domainErrors.ErrTemporaryRemote
	}
	if e.Err != nil {
		return []error{sentinel, e.Err}
	}
	return []error{sentinel}
}

// Temporary reports whether the failure is retryable.
func (e *Error) Temporary() bool {
	return e.Kind.Temporary()
}

// kindFor derives the error kind from the HTTP status and the error type
// Stripe reported. Status-derived kinds win for 401, 403 and 429.
func kindFor(status int, errType stripeapi.ErrorType) ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return KindAuthentication
	case http.StatusForbidden:
		return KindPermission
	case http.StatusTooManyRequests:
		return KindRateLimit
	}
	switch errType {
	case stripeapi.ErrorTypeCard:
		return KindCard
	case stripeapi.ErrorTypeIdempotency:
		return KindIdempotency
	case stripeapi.ErrorTypeInvalidRequest:
		return KindInvalidRequest
	case stripeapi.ErrorTypeAPI:
		return KindAPI
	}
	if status >= http.StatusInternalServerError {
		return KindAPI
	}
	return KindInvalidRequest
}
