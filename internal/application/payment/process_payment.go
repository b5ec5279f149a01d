package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/pspadapter/internal/application/execution"
	"github.com/cassiomorais/pspadapter/internal/application/ledger"
	"github.com/cassiomorais/pspadapter/internal/domain/customer"
	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
	"github.com/cassiomorais/pspadapter/pkg/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConflictPolicy bounds how often an invocation is re-run from a fresh read
// after losing a version race.
type ConflictPolicy struct {
	Retries uint
	Delay   time.Duration
}

// ProcessResult summarises one listener run.
type ProcessResult struct {
	Payment  *payment.Payment
	Customer execution.Result
	// Charge is nil when no Stripe customer was available to charge.
	Charge *execution.Result
	// Skipped is set for payments that belong to another payment interface.
	Skipped bool
}

// ChargeID returns the Stripe charge id, if the payment was charged.
func (r *ProcessResult) ChargeID() string {
	if r.Charge == nil {
		return ""
	}
	return r.Charge.ID
}

// NeedsRetry reports whether a step ended in a temporary failure. The
// recorded request is re-sent with its token when the payment is processed
// again.
func (r *ProcessResult) NeedsRetry() bool {
	if f := r.Customer.Failure; f != nil && f.Kind == execution.FailureTemporary {
		return true
	}
	if r.Charge != nil {
		if f := r.Charge.Failure; f != nil && f.Kind == execution.FailureTemporary {
			return true
		}
	}
	return false
}

// ProcessPaymentUseCase reacts to a newly created payment: it makes sure a
// Stripe customer exists for the payment token and then charges that customer.
// Both steps are idempotent, so the use case may run any number of times for
// the same payment.
type ProcessPaymentUseCase struct {
	paymentRepo  payment.Repository
	customerRepo customer.Repository
	client       stripe.Client
	accessor     *ledger.Accessor
	conflicts    ConflictPolicy
	logger       zerolog.Logger
	execOpts     []execution.Option
}

// NewProcessPaymentUseCase creates a new ProcessPaymentUseCase.
func NewProcessPaymentUseCase(
	paymentRepo payment.Repository,
	customerRepo customer.Repository,
	client stripe.Client,
	accessor *ledger.Accessor,
	conflicts ConflictPolicy,
	logger zerolog.Logger,
	execOpts ...execution.Option,
) *ProcessPaymentUseCase {
	return &ProcessPaymentUseCase{
		paymentRepo:  paymentRepo,
		customerRepo: customerRepo,
		client:       client,
		accessor:     accessor,
		conflicts:    conflicts,
		logger:       logger,
		execOpts:     execOpts,
	}
}

// Execute processes a single payment by ID. A version conflict re-runs the
// whole invocation from a fresh read, up to the configured number of times.
func (uc *ProcessPaymentUseCase) Execute(ctx context.Context, paymentID uuid.UUID) (*ProcessResult, error) {
	log := uc.logger.With().Str("payment_id", paymentID.String()).Logger()

	cfg := retry.Config{
		MaxAttempts:  uc.conflicts.Retries + 1,
		InitialDelay: uc.conflicts.Delay,
		MaxDelay:     uc.conflicts.Delay * 4,
		RetryIf:      domainErrors.IsConflict,
		OnRetry: func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("Payment changed concurrently, re-running from a fresh read")
		},
	}
	return retry.DoWithResult(ctx, cfg, func() (*ProcessResult, error) {
		return uc.run(ctx, paymentID, log)
	})
}

func (uc *ProcessPaymentUseCase) run(ctx context.Context, paymentID uuid.UUID, log zerolog.Logger) (*ProcessResult, error) {
	p, err := uc.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("load payment: %w", err)
	}

	if iface := p.MethodInfo.PaymentInterface; iface != "" && iface != payment.InterfaceStripe {
		log.Debug().Str("payment_interface", iface).Msg("Payment handled by another interface")
		return &ProcessResult{Payment: p, Skipped: true}, nil
	}

	customers := execution.NewCustomerExecutor(uc.client, uc.customerRepo, uc.paymentRepo, uc.accessor, uc.execOpts...)
	custRes, err := customers.Execute(ctx, p)
	if err != nil {
		return nil, err
	}
	result := &ProcessResult{Payment: custRes.Payment, Customer: custRes}
	if !custRes.OK() {
		log.Info().Str("decision", string(custRes.Decision)).Msg("No Stripe customer, charge not attempted")
		return result, nil
	}

	charges := execution.NewChargeExecutor(uc.client, uc.paymentRepo, uc.accessor, custRes.ID, uc.execOpts...)
	chargeRes, err := charges.Execute(ctx, custRes.Payment)
	if err != nil {
		return nil, err
	}
	result.Payment = chargeRes.Payment
	result.Charge = &chargeRes

	if chargeRes.OK() {
		log.Info().Str("stripe_customer_id", custRes.ID).Str("charge_id", chargeRes.ID).Msg("Payment charged")
	}
	return result, nil
}
