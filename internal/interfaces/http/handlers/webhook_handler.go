package handlers

import (
	"context"
	"errors"
	"net/http"

	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/infrastructure/stripe"
	"github.com/cassiomorais/pspadapter/internal/interfaces/http/dto"
	"github.com/rs/zerolog/hlog"
)

// EventProcessor applies a confirmed Stripe event and returns the status the
// webhook is answered with.
type EventProcessor interface {
	Process(ctx context.Context, event *stripe.Event) (int, error)
}

// WebhookHandler receives Stripe webhook events.
type WebhookHandler struct {
	client    stripe.Client
	processor EventProcessor
}

func NewWebhookHandler(client stripe.Client, processor EventProcessor) *WebhookHandler {
	return &WebhookHandler{client: client, processor: processor}
}

// StripeEvent handles POST /stripe/event.
//
// Only dispute events are acted upon. Their body is not trusted: the event is
// fetched again from Stripe by id, and an id Stripe does not know is rejected
// with 400. Other event types are acknowledged with 200.
func (h *WebhookHandler) StripeEvent(w http.ResponseWriter, r *http.Request) {
	var req dto.StripeEventRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	log := hlog.FromRequest(r).With().Str("event_id", req.ID).Str("event_type", req.Type).Logger()

	if !stripe.IsDisputeEvent(req.Type) {
		log.Debug().Msg("Ignoring non-dispute event")
		writeJSON(w, http.StatusOK, dto.WebhookResponse{EventID: req.ID, Result: "ignored"})
		return
	}

	event, err := h.client.RetrieveEvent(r.Context(), req.ID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTemporaryRemote) {
			log.Warn().Err(err).Msg("Could not confirm event with Stripe")
			writeError(w, r, err)
			return
		}
		log.Warn().Err(err).Msg("Stripe does not confirm event")
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: "event could not be confirmed",
			Code:  "unconfirmed_event",
		})
		return
	}

	status, err := h.processor.Process(r.Context(), event)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().Int("status", status).Msg("Dispute event processed")
	writeJSON(w, status, dto.WebhookResponse{EventID: event.ID, Result: dto.WebhookResult(status)})
}
