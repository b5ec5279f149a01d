package handlers

import (
	"net/http"

	paymentApp "github.com/cassiomorais/pspadapter/internal/application/payment"
	domainErrors "github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/cassiomorais/pspadapter/internal/interfaces/http/dto"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PaymentHandler serves payment drafts. Creating one announces it to the
// worker, which then creates the Stripe customer and charge.
type PaymentHandler struct {
	createUC *paymentApp.CreatePaymentUseCase
	getUC    *paymentApp.GetPaymentUseCase
}

func NewPaymentHandler(createUC *paymentApp.CreatePaymentUseCase, getUC *paymentApp.GetPaymentUseCase) *PaymentHandler {
	return &PaymentHandler{createUC: createUC, getUC: getUC}
}

// Create handles POST /api/v1/payments
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var customerID *uuid.UUID
	if req.CustomerID != "" {
		id, err := uuid.Parse(req.CustomerID)
		if err != nil {
			writeError(w, r, domainErrors.NewValidationError("customer_id", "invalid uuid"))
			return
		}
		customerID = &id
	}

	p, err := h.createUC.Execute(r.Context(), paymentApp.CreatePaymentRequest{
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		CustomerID:  customerID,
		Token:       req.Token,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.FromPayment(p))
}

// Get handles GET /api/v1/payments/{id}
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	p, err := h.getUC.Execute(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FromPayment(p))
}
