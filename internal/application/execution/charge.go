package execution

import (
	"context"
	"time"

	"github.com/cassiomorais/pspadapter/internal/application/ledger"
	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
)

const OperationCreateCharge = "create_charge"

// NewChargeExecutor charges the planned amount to the given Stripe customer
// with immediate capture. A successful charge also adds a Charge transaction,
// sets the amount paid and stores the charge id as the payment interface id
// so dispute events can find the payment.
func NewChargeExecutor(
	client stripe.Client,
	payments payment.Repository,
	accessor *ledger.Accessor,
	stripeCustomerID string,
	opts ...Option,
) *Executor[*stripe.Charge] {
	hooks := Hooks[*stripe.Charge]{
		Operation:    OperationCreateCharge,
		RequestType:  interaction.TypeChargeCreateRequest,
		SuccessType:  interaction.TypeCharged,
		SuccessField: interaction.FieldChargeID,
		Params: func(_ context.Context, p *payment.Payment) (stripe.Params, error) {
			return stripe.Params{
				"amount":   p.AmountPlanned.Minor(),
				"currency": p.AmountPlanned.Currency,
				"customer": stripeCustomerID,
				"capture":  true,
			}, nil
		},
		Call: func(ctx context.Context, req Request) (*stripe.Charge, error) {
			return client.CreateCharge(ctx, req.Params, req.IdempotencyKey)
		},
		ID:    func(ch *stripe.Charge) string { return ch.ID },
		Apply: chargeActions,
	}
	return newExecutor(hooks, accessor, payments, opts)
}

func chargeActions(ch *stripe.Charge) []payment.UpdateAction {
	amount := payment.MoneyFromMinor(ch.Amount, ch.Currency)
	return []payment.UpdateAction{
		payment.AddTransaction{Transaction: payment.Transaction{
			Type:          payment.TransactionCharge,
			Amount:        amount,
			Timestamp:     time.Unix(ch.Created, 0).UTC(),
			InteractionID: ch.ID,
		}},
		payment.SetAmountPaid{Amount: amount},
		payment.SetInterfaceID{InterfaceID: ch.ID},
	}
}
