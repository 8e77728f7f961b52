package finance

import (
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReconciliationState tracks how far an order has been settled against its payments
type ReconciliationState string

const (
	ReconciliationNotReconciled     ReconciliationState = "NR"
	ReconciliationPaymentsCompleted ReconciliationState = "PC"
	ReconciliationAllocated         ReconciliationState = "AL"
	ReconciliationWrittenOff        ReconciliationState = "WO"
)

// IsValid checks if the state is known
func (s ReconciliationState) IsValid() bool {
	switch s {
	case ReconciliationNotReconciled, ReconciliationPaymentsCompleted, ReconciliationAllocated, ReconciliationWrittenOff:
		return true
	}
	return false
}

// String returns the string representation of ReconciliationState
func (s ReconciliationState) String() string {
	return string(s)
}

// CanTransitionTo reports whether next is a legal successor of s
func (s ReconciliationState) CanTransitionTo(next ReconciliationState) bool {
	switch s {
	case ReconciliationNotReconciled, "":
		return next == ReconciliationPaymentsCompleted
	case ReconciliationPaymentsCompleted:
		return next == ReconciliationAllocated
	case ReconciliationAllocated:
		return next == ReconciliationWrittenOff
	}
	return false
}

// rank orders states so callers can ask "has the order reached X yet"
func (s ReconciliationState) rank() int {
	switch s {
	case ReconciliationPaymentsCompleted:
		return 1
	case ReconciliationAllocated:
		return 2
	case ReconciliationWrittenOff:
		return 3
	}
	return 0
}

// Order is the typed snapshot of a sales (or return) order being settled
type Order struct {
	shared.ClientAggregateRoot
	DocumentNo          string
	BusinessPartnerID   uuid.UUID
	InvoiceID           *uuid.UUID
	Currency            valueobject.Currency
	ConversionType      string
	GrandTotal          decimal.Decimal
	PricePrecision      int32
	IsReturnOrder       bool
	OpenAmount          decimal.Decimal
	WrittenOffAmount    decimal.Decimal
	ReconciliationState ReconciliationState
	DateOrdered         time.Time
	IsActive            bool
}

// Reached reports whether the order is at or beyond state
func (o *Order) Reached(state ReconciliationState) bool {
	return o.ReconciliationState.rank() >= state.rank()
}

// TransitionTo moves the order along the reconciliation state machine
func (o *Order) TransitionTo(next ReconciliationState) error {
	if !o.ReconciliationState.CanTransitionTo(next) {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("order %s cannot move from %s to %s", o.DocumentNo, o.ReconciliationState, next))
	}
	o.ReconciliationState = next
	o.Touch()
	return nil
}

// RoundsToZero reports whether amount is zero at the order's price list precision
func (o *Order) RoundsToZero(amount decimal.Decimal) bool {
	return valueobject.IsZeroAt(amount, o.PricePrecision)
}

// Advance moves the order to state unless it is already there or beyond
func (o *Order) Advance(state ReconciliationState) error {
	if o.Reached(state) {
		return nil
	}
	for o.ReconciliationState != state {
		next := o.nextState()
		if next == "" {
			return shared.NewDomainError(shared.CodeInvalidState,
				fmt.Sprintf("order %s cannot reach %s from %s", o.DocumentNo, state, o.ReconciliationState))
		}
		if err := o.TransitionTo(next); err != nil {
			return err
		}
	}
	return nil
}

func (o *Order) nextState() ReconciliationState {
	switch o.ReconciliationState {
	case ReconciliationNotReconciled, "":
		return ReconciliationPaymentsCompleted
	case ReconciliationPaymentsCompleted:
		return ReconciliationAllocated
	case ReconciliationAllocated:
		return ReconciliationWrittenOff
	}
	return ""
}
