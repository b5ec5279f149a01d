package dto

import (
	"net/http"
	"time"

	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/google/uuid"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// MoneyResponse carries the decimal amount as a string to avoid float rounding.
type MoneyResponse struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	MinorAmount int64  `json:"minor_amount"`
}

type InteractionResponse struct {
	TypeID    string            `json:"type_id"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"created_at"`
}

type TransactionResponse struct {
	ID            uuid.UUID     `json:"id"`
	Type          string        `json:"type"`
	Amount        MoneyResponse `json:"amount"`
	Timestamp     time.Time     `json:"timestamp"`
	InteractionID string        `json:"interaction_id,omitempty"`
}

// PaymentResponse is the HTTP response for a payment.
type PaymentResponse struct {
	ID                  uuid.UUID             `json:"id"`
	Version             int64                 `json:"version"`
	CustomerID          *uuid.UUID            `json:"customer_id,omitempty"`
	AmountPlanned       MoneyResponse         `json:"amount_planned"`
	AmountPaid          *MoneyResponse        `json:"amount_paid,omitempty"`
	InterfaceID         string                `json:"interface_id,omitempty"`
	PaymentInterface    string                `json:"payment_interface"`
	Method              string                `json:"method,omitempty"`
	StatusInterfaceCode *string               `json:"status_interface_code,omitempty"`
	StatusInterfaceText *string               `json:"status_interface_text,omitempty"`
	Interactions        []InteractionResponse `json:"interactions"`
	Transactions        []TransactionResponse `json:"transactions"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

func fromMoney(m payment.Money) MoneyResponse {
	return MoneyResponse{
		Amount:      m.Formatted(),
		Currency:    m.Currency,
		MinorAmount: m.Minor(),
	}
}

// FromPayment maps a domain Payment to a PaymentResponse.
func FromPayment(p *payment.Payment) *PaymentResponse {
	resp := &PaymentResponse{
		ID:                  p.ID,
		Version:             p.Version,
		CustomerID:          p.CustomerID,
		AmountPlanned:       fromMoney(p.AmountPlanned),
		InterfaceID:         p.InterfaceID,
		PaymentInterface:    p.MethodInfo.PaymentInterface,
		Method:              p.MethodInfo.Method,
		StatusInterfaceCode: p.Status.InterfaceCode,
		StatusInterfaceText: p.Status.InterfaceText,
		Interactions:        make([]InteractionResponse, 0, len(p.Interactions)),
		Transactions:        make([]TransactionResponse, 0, len(p.Transactions)),
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
	if p.AmountPaid != nil {
		paid := fromMoney(*p.AmountPaid)
		resp.AmountPaid = &paid
	}
	for _, in := range p.Interactions {
		resp.Interactions = append(resp.Interactions, InteractionResponse{
			TypeID:    in.TypeID,
			Fields:    in.Fields,
			CreatedAt: in.CreatedAt,
		})
	}
	for _, tx := range p.Transactions {
		resp.Transactions = append(resp.Transactions, TransactionResponse{
			ID:            tx.ID,
			Type:          string(tx.Type),
			Amount:        fromMoney(tx.Amount),
			Timestamp:     tx.Timestamp,
			InteractionID: tx.InteractionID,
		})
	}
	return resp
}

// WebhookResponse acknowledges a Stripe event.
type WebhookResponse struct {
	EventID string `json:"event_id"`
	Result  string `json:"result"`
}

// WebhookResult names the outcome behind a webhook status code.
func WebhookResult(status int) string {
	switch status {
	case http.StatusCreated:
		return "recorded"
	case http.StatusOK:
		return "already_recorded"
	case http.StatusNotFound:
		return "payment_not_found"
	case http.StatusBadRequest:
		return "not_a_dispute"
	}
	return http.StatusText(status)
}
