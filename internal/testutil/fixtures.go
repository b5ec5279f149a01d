package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cassiomorais/pspadapter/internal/domain/customer"
	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func NewTestPayment(amountMinor int64, currency string) *payment.Payment {
	now := time.Now().UTC()
	return &payment.Payment{
		ID:            uuid.New(),
		Version:       1,
		AmountPlanned: payment.MoneyFromMinor(amountMinor, currency),
		MethodInfo:    payment.MethodInfo{PaymentInterface: payment.InterfaceStripe},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SeedPayment stores p and applies the given actions as one batch, returning
// the stored snapshot.
func SeedPayment(t testing.TB, repo *MockPaymentRepository, p *payment.Payment, actions ...payment.UpdateAction) *payment.Payment {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, p))
	if len(actions) == 0 {
		return repo.Stored(p.ID)
	}
	seeded, err := repo.Update(ctx, p, actions)
	require.NoError(t, err)
	return seeded
}

func TokenReceived(token string) payment.UpdateAction {
	return payment.AddInterfaceInteraction{
		TypeKey: interaction.TypeTokenReceived,
		Fields:  map[string]string{interaction.FieldToken: token},
	}
}

func NewTestCustomer(email, firstName, lastName string) *customer.Customer {
	return &customer.Customer{
		ID:        uuid.New(),
		Version:   3,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
	}
}

// DisputeEvent builds a dispute webhook event whose payload targets chargeID.
func DisputeEvent(id, eventType, chargeID, status, reason string, amount int64, currency string, created time.Time) *stripe.Event {
	obj, _ := json.Marshal(stripe.Dispute{
		ID:       "dp_" + id,
		Object:   stripe.ObjectDispute,
		Amount:   amount,
		Charge:   chargeID,
		Currency: currency,
		Reason:   reason,
		Status:   status,
		Created:  created.Unix(),
	})
	return &stripe.Event{
		ID:      id,
		Type:    eventType,
		Created: created.Unix(),
		Data:    stripe.EventData{Object: obj},
	}
}

func UUIDPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}
