// Package interaction names the interface interaction types the adapter
// records on payments and the fields each of them carries.
package interaction

import "context"

const (
	TypeTokenReceived         = "STRIPE_TOKEN_RECEIVED"
	TypeCustomerCreateRequest = "STRIPE_CUSTOMER_CREATE_REQUEST"
	TypeChargeCreateRequest   = "STRIPE_CHARGE_CREATE_REQUEST"
	TypeCustomerChecked       = "STRIPE_CUSTOMER_CHECKED"
	TypeCharged               = "STRIPE_CHARGED"
	TypeException             = "STRIPE_EXCEPTION"
	TypeTemporaryException    = "STRIPE_TEMPORARY_EXCEPTION"
	TypeDisputeUpdate         = "STRIPE_DISPUTE_UPDATE"
)

const (
	FieldToken            = "token"
	FieldParams           = "params"
	FieldIdempotencyKey   = "idempotencyKey"
	FieldResponse         = "response"
	FieldStripeCustomerID = "stripeCustomerId"
	FieldChargeID         = "chargeId"
	FieldEventID          = "eventId"
	FieldDispute          = "dispute"
)

// TypeDefinition describes an interaction type and its field names.
type TypeDefinition struct {
	Key    string
	Fields []string
}

// Definitions returns every interaction type the adapter writes or reads.
func Definitions() []TypeDefinition {
	return []TypeDefinition{
		{Key: TypeTokenReceived, Fields: []string{FieldToken}},
		{Key: TypeCustomerCreateRequest, Fields: []string{FieldParams, FieldIdempotencyKey}},
		{Key: TypeChargeCreateRequest, Fields: []string{FieldParams, FieldIdempotencyKey}},
		{Key: TypeCustomerChecked, Fields: []string{FieldStripeCustomerID, FieldIdempotencyKey}},
		{Key: TypeCharged, Fields: []string{FieldChargeID, FieldIdempotencyKey}},
		{Key: TypeException, Fields: []string{FieldResponse, FieldIdempotencyKey}},
		{Key: TypeTemporaryException, Fields: []string{FieldResponse, FieldIdempotencyKey}},
		{Key: TypeDisputeUpdate, Fields: []string{FieldEventID, FieldDispute}},
	}
}

// TypeRepository resolves and provisions interaction types on the commerce platform.
type TypeRepository interface {
	// IDByKey returns the id for key, or ErrTypeNotFound
	IDByKey(ctx context.Context, key string) (string, error)

	// Ensure creates the type when absent and returns its id either way
	Ensure(ctx context.Context, def TypeDefinition) (string, error)
}
