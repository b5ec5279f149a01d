package errors

import (
	"errors"
	"fmt"
)

var (
	// Payment errors
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidCurrency        = errors.New("invalid currency")
	ErrConcurrentModification = errors.New("payment was modified concurrently")

	// Ledger errors
	ErrTypeNotFound        = errors.New("interaction type not found")
	ErrMalformedRecord     = errors.New("malformed interaction record")
	ErrUnknownUpdateAction = errors.New("unknown update action")

	// Customer errors
	ErrCustomerNotFound = errors.New("customer not found")

	// Processor errors
	ErrTemporaryRemote = errors.New("temporary processor failure")
	ErrPermanentRemote = errors.New("permanent processor failure")

	// Webhook errors
	ErrUnexpectedPayload = errors.New("unexpected event payload")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")
	ErrLockNotHeld           = errors.New("lock not held")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsConflict reports whether err signals a lost optimistic-version race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
