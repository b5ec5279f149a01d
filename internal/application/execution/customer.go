package execution

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/pspadapter/internal/application/ledger"
	"github.com/cassiomorais/pspadapter/internal/domain/customer"
	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
)

const OperationCreateCustomer = "create_customer"

// NewCustomerExecutor creates the Stripe customer for a payment from its
// recorded payment token. Without a token the executor returns an empty
// result and records nothing.
func NewCustomerExecutor(
	client stripe.Client,
	customers customer.Repository,
	payments payment.Repository,
	accessor *ledger.Accessor,
	opts ...Option,
) *Executor[*stripe.Customer] {
	hooks := Hooks[*stripe.Customer]{
		Operation:    OperationCreateCustomer,
		RequestType:  interaction.TypeCustomerCreateRequest,
		SuccessType:  interaction.TypeCustomerChecked,
		SuccessField: interaction.FieldStripeCustomerID,
		Ready: func(ctx context.Context, p *payment.Payment) bool {
			_, ok := accessor.Token(ctx, p)
			return ok
		},
		Params: func(ctx context.Context, p *payment.Payment) (stripe.Params, error) {
			token, _ := accessor.Token(ctx, p)
			return customerParams(ctx, customers, p, token)
		},
		Call: func(ctx context.Context, req Request) (*stripe.Customer, error) {
			return client.CreateCustomer(ctx, req.Params, req.IdempotencyKey)
		},
		ID: func(c *stripe.Customer) string { return c.ID },
	}
	return newExecutor(hooks, accessor, payments, opts)
}

// customerParams links the Stripe customer to the commerce customer when the
// payment references one.
func customerParams(ctx context.Context, customers customer.Repository, p *payment.Payment, token string) (stripe.Params, error) {
	params := stripe.Params{"source": token}
	if p.CustomerID == nil {
		return params, nil
	}

	c, err := customers.GetByID(ctx, *p.CustomerID)
	if errors.Is(err, domainErrors.ErrCustomerNotFound) {
		return params, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load customer %s: %w", p.CustomerID, err)
	}

	params["email"] = c.Email
	params["metadata"] = map[string]any{
		"ctp_id":      c.ID.String(),
		"firstName":   c.FirstName,
		"lastName":    c.LastName,
		"ctp_version": c.Version,
	}
	return params, nil
}
