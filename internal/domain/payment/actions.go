package payment

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/cassiomorais/pspadapter/internal/domain/errors"
	"github.com/google/uuid"
)

// UpdateAction is one mutation in a version-checked update batch. The set of
// actions is closed; repositories switch over the concrete types.
type UpdateAction interface {
	Action() string
	isUpdateAction()
}

// AddInterfaceInteraction appends an interaction record of the type identified by TypeKey.
type AddInterfaceInteraction struct {
	TypeKey string
	Fields  map[string]string
}

// SetStatusInterfaceText sets the status text. A nil Text clears it.
type SetStatusInterfaceText struct {
	Text *string
}

// SetStatusInterfaceCode sets the status code. A nil Code clears it.
type SetStatusInterfaceCode struct {
	Code *string
}

// AddTransaction appends a transaction. A zero ID is assigned on apply.
type AddTransaction struct {
	Transaction Transaction
}

type SetAmountPaid struct {
	Amount Money
}

type SetInterfaceID struct {
	InterfaceID string
}

type SetMethodInfoInterface struct {
	PaymentInterface string
}

func (AddInterfaceInteraction) Action() string { return "addInterfaceInteraction" }
func (SetStatusInterfaceText) Action() string  { return "setStatusInterfaceText" }
func (SetStatusInterfaceCode) Action() string  { return "setStatusInterfaceCode" }
func (AddTransaction) Action() string          { return "addTransaction" }
func (SetAmountPaid) Action() string           { return "setAmountPaid" }
func (SetInterfaceID) Action() string          { return "setInterfaceId" }
func (SetMethodInfoInterface) Action() string  { return "setMethodInfoInterface" }

func (AddInterfaceInteraction) isUpdateAction() {}
func (SetStatusInterfaceText) isUpdateAction()  {}
func (SetStatusInterfaceCode) isUpdateAction()  {}
func (AddTransaction) isUpdateAction()          {}
func (SetAmountPaid) isUpdateAction()           {}
func (SetInterfaceID) isUpdateAction()          {}
func (SetMethodInfoInterface) isUpdateAction()  {}

// TextPtr is a convenience for building SetStatusInterfaceText and SetStatusInterfaceCode actions.
func TextPtr(s string) *string {
	return &s
}

// TypeIDResolver maps an interaction type key to its platform id.
type TypeIDResolver func(ctx context.Context, key string) (string, error)

// Apply returns a new snapshot with all actions applied and the version
// incremented once. The input payment is not modified.
func Apply(ctx context.Context, p *Payment, actions []UpdateAction, resolve TypeIDResolver) (*Payment, error) {
	next := p.Clone()
	now := time.Now().UTC()

	for _, action := range actions {
		switch a := action.(type) {
		case AddInterfaceInteraction:
			typeID, err := resolve(ctx, a.TypeKey)
			if err != nil {
				return nil, fmt.Errorf("resolve interaction type %s: %w", a.TypeKey, err)
			}
			next.Interactions = append(next.Interactions, Interaction{
				TypeID:    typeID,
				Fields:    maps.Clone(a.Fields),
				CreatedAt: now,
			})
		case SetStatusInterfaceText:
			next.Status.InterfaceText = clonePtr(a.Text)
		case SetStatusInterfaceCode:
			next.Status.InterfaceCode = clonePtr(a.Code)
		case AddTransaction:
			tx := a.Transaction
			if tx.ID == uuid.Nil {
				tx.ID = uuid.New()
			}
			next.Transactions = append(next.Transactions, tx)
		case SetAmountPaid:
			paid := a.Amount
			next.AmountPaid = &paid
		case SetInterfaceID:
			next.InterfaceID = a.InterfaceID
		case SetMethodInfoInterface:
			next.MethodInfo.PaymentInterface = a.PaymentInterface
		default:
			return nil, fmt.Errorf("%w: %T", errors.ErrUnknownUpdateAction, action)
		}
	}

	next.Version++
	next.UpdatedAt = now
	return next, nil
}
