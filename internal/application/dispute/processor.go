// Package dispute reconciles Stripe dispute events into payment ledgers.
package dispute

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cassiomorais/pspadapter/internal/application/ledger"
	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/observability"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Processor applies one dispute event to the payment of the disputed charge.
//
// Status codes: 400 when the payload is not a dispute, 404 when no payment
// carries the charge id, 200 when the event was already recorded and 201
// after recording it. Redelivered events leave the payment untouched.
type Processor struct {
	payments payment.Repository
	ledger   *ledger.Accessor
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

func NewProcessor(payments payment.Repository, accessor *ledger.Accessor, logger zerolog.Logger, metrics *observability.Metrics) *Processor {
	return &Processor{
		payments: payments,
		ledger:   accessor,
		logger:   logger,
		metrics:  metrics,
	}
}

// Process returns the HTTP status to answer the webhook with. A non-nil
// error (ledger unavailable or a version conflict) comes with status 0.
func (p *Processor) Process(ctx context.Context, event *stripe.Event) (int, error) {
	ctx, span := observability.Tracer().Start(ctx, "dispute.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("stripe.event_id", event.ID),
		attribute.String("stripe.event_type", event.Type),
	)

	status, err := p.process(ctx, event)
	if p.metrics != nil {
		label := strconv.Itoa(status)
		if err != nil {
			label = "error"
		}
		p.metrics.DisputeEvents.WithLabelValues(label).Inc()
	}
	if err != nil {
		span.RecordError(err)
	}
	return status, err
}

func (p *Processor) process(ctx context.Context, event *stripe.Event) (int, error) {
	log := p.logger.With().Str("event_id", event.ID).Str("event_type", event.Type).Logger()

	dispute, ok := event.Dispute()
	if !ok {
		log.Warn().Str("object", event.ObjectType()).Msg("Event payload is not a dispute")
		return http.StatusBadRequest, nil
	}

	pay, err := p.payments.FindByInterfaceID(ctx, dispute.Charge, payment.InterfaceStripe)
	if errors.Is(err, domainErrors.ErrPaymentNotFound) {
		log.Warn().Str("charge_id", dispute.Charge).Msg("No payment for disputed charge")
		return http.StatusNotFound, nil
	}
	if err != nil {
		return 0, fmt.Errorf("find payment for charge %s: %w", dispute.Charge, err)
	}
	log = log.With().Str("payment_id", pay.ID.String()).Logger()

	if _, seen := p.ledger.LastWithField(ctx, pay, interaction.TypeDisputeUpdate, interaction.FieldEventID, event.ID); seen {
		log.Debug().Msg("Dispute event already recorded")
		return http.StatusOK, nil
	}

	actions := []payment.UpdateAction{
		payment.AddInterfaceInteraction{
			TypeKey: interaction.TypeDisputeUpdate,
			Fields: map[string]string{
				interaction.FieldEventID: event.ID,
				interaction.FieldDispute: string(event.Data.Object),
			},
		},
	}

	text := fmt.Sprintf("Dispute! Status: %s Reason: %s", dispute.Status, dispute.Reason)
	if pay.InterfaceText() != text {
		actions = append(actions, payment.SetStatusInterfaceText{Text: payment.TextPtr(text)})
	}

	if event.Type == stripe.EventDisputeClosed {
		if dispute.Status == stripe.DisputeStatusLost {
			actions = append(actions, payment.AddTransaction{Transaction: payment.Transaction{
				Type:          payment.TransactionChargeback,
				Amount:        payment.MoneyFromMinor(dispute.Amount, dispute.Currency),
				Timestamp:     time.Unix(event.Created, 0).UTC(),
				InteractionID: event.ID,
			}})
		} else {
			actions = append(actions, payment.SetStatusInterfaceText{Text: nil})
		}
	}

	if _, err := p.payments.Update(ctx, pay, actions); err != nil {
		return 0, fmt.Errorf("record dispute event %s: %w", event.ID, err)
	}

	log.Info().
		Str("dispute_status", dispute.Status).
		Str("dispute_reason", dispute.Reason).
		Msg("Dispute event recorded")
	return http.StatusCreated, nil
}
