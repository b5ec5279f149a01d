package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteFailureSentinels(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTemporary bool
		wantPermanent bool
	}{
		{"temporary", ErrTemporaryRemote, true, false},
		{"permanent", ErrPermanentRemote, false, true},
		{"wrapped temporary", fmt.Errorf("create customer: %w", ErrTemporaryRemote), true, false},
		{"permanent inside domain error", NewDomainError("charge_failed", "create charge", ErrPermanentRemote), false, true},
		{"unrelated", ErrPaymentNotFound, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTemporary, errors.Is(tt.err, ErrTemporaryRemote))
			assert.Equal(t, tt.wantPermanent, errors.Is(tt.err, ErrPermanentRemote))
		})
	}
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "with cause",
			err:      NewDomainError("invalid_payment", "amount planned", NewValidationError("amount", "must be greater than 0")),
			expected: "amount planned: validation failed for field amount: must be greater than 0",
		},
		{
			name:     "without cause",
			err:      NewDomainError("malformed", "interaction record has no type", nil),
			expected: "interaction record has no type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestValidationError_UnwrapsToValidationFailed(t *testing.T) {
	err := fmt.Errorf("decode webhook: %w", NewValidationError("type", "is required"))

	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.NotErrorIs(t, err, ErrPermanentRemote)

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "type", ve.Field)
	assert.Equal(t, "validation failed for field type: is required", ve.Error())
}

func TestValidationError_ThroughDomainError(t *testing.T) {
	err := NewDomainError("invalid_payment", "amount planned", NewValidationError("currency", "must be a 3-letter ISO code"))

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "currency", ve.Field)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bare sentinel", ErrConcurrentModification, true},
		{"wrapped", fmt.Errorf("record outcome: %w", ErrConcurrentModification), true},
		{"domain error", NewDomainError("conflict", "version moved", ErrConcurrentModification), true},
		{"remote failure", ErrTemporaryRemote, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConflict(tt.err))
		})
	}
}
