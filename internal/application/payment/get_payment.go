package payment

import (
	"context"

	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/google/uuid"
)

type GetPaymentUseCase struct {
	paymentRepo payment.Repository
}

func NewGetPaymentUseCase(paymentRepo payment.Repository) *GetPaymentUseCase {
	return &GetPaymentUseCase{paymentRepo: paymentRepo}
}

func (uc *GetPaymentUseCase) Execute(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return uc.paymentRepo.GetByID(ctx, id)
}
