package payment

import (
	"context"
	"fmt"
	"strings"

	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/outbox"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/google/uuid"
)

// CreatePaymentRequest holds the input for creating a payment.
type CreatePaymentRequest struct {
	AmountMinor int64
	Currency    string
	CustomerID  *uuid.UUID
	// Token is the Stripe payment token collected by the checkout.
	Token string
}

// CreatePaymentUseCase stores a payment draft carrying its payment token and
// announces it to the creation listener through the outbox.
type CreatePaymentUseCase struct {
	paymentRepo payment.Repository
	outboxRepo  OutboxWriter
	txManager   TransactionManager
}

// NewCreatePaymentUseCase creates a new CreatePaymentUseCase.
func NewCreatePaymentUseCase(
	paymentRepo payment.Repository,
	outboxRepo OutboxWriter,
	txManager TransactionManager,
) *CreatePaymentUseCase {
	return &CreatePaymentUseCase{
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		txManager:   txManager,
	}
}

// Execute creates the payment, records its token and writes the
// payment.created outbox entry in one transaction.
func (uc *CreatePaymentUseCase) Execute(ctx context.Context, req CreatePaymentRequest) (*payment.Payment, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, domainErrors.NewValidationError("token", "required")
	}

	p, err := payment.NewPayment(payment.MoneyFromMinor(req.AmountMinor, req.Currency), req.CustomerID)
	if err != nil {
		return nil, err
	}

	var created *payment.Payment
	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.paymentRepo.Create(txCtx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		withToken, err := uc.paymentRepo.Update(txCtx, p, []payment.UpdateAction{tokenReceived(token)})
		if err != nil {
			return fmt.Errorf("record payment token: %w", err)
		}

		if err := uc.outboxRepo.Insert(txCtx, outbox.NewPaymentCreated(withToken.ID, withToken.Version)); err != nil {
			return fmt.Errorf("write outbox entry: %w", err)
		}
		created = withToken
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func tokenReceived(token string) payment.AddInterfaceInteraction {
	return payment.AddInterfaceInteraction{
		TypeKey: interaction.TypeTokenReceived,
		Fields:  map[string]string{interaction.FieldToken: token},
	}
}
