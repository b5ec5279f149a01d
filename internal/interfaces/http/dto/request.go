package dto

// CreatePaymentRequest is the HTTP request body for creating a payment draft.
type CreatePaymentRequest struct {
	AmountMinor int64  `json:"amount_minor" validate:"required,gt=0"`
	Currency    string `json:"currency" validate:"required,len=3"`
	CustomerID  string `json:"customer_id,omitempty" validate:"omitempty,uuid"`
	Token       string `json:"token" validate:"required"`
}

// StripeEventRequest is the part of a Stripe webhook body the receiver trusts.
// Everything else is re-fetched from Stripe by id.
type StripeEventRequest struct {
	ID     string `json:"id" validate:"required"`
	Object string `json:"object" validate:"omitempty,eq=event"`
	Type   string `json:"type" validate:"required"`
}
