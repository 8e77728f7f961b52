package finance

import (
	"context"

	"github.com/google/uuid"
)

// DocumentProcessor completes a draft document. A rejection is returned as a
// ProcessFailed error carrying the engine's message.
type DocumentProcessor interface {
	Complete(ctx context.Context, doc Document) error
}

// InvoiceStatusStore recomputes an invoice's open amount and flags it paid at zero
type InvoiceStatusStore interface {
	MarkPaidIfOpenIsZero(ctx context.Context, invoiceID uuid.UUID) (bool, error)
}

// PaymentStatusStore flags a payment allocated once its allocations cover it
type PaymentStatusStore interface {
	MarkAllocatedIfFullyApplied(ctx context.Context, paymentID uuid.UUID) (bool, error)
}

// AuthorizationResult is the gateway's answer to an authorization request
type AuthorizationResult struct {
	Approved          bool
	AuthorizationCode string
	DeclineReason     string
}

// PaymentGateway authorizes online tenders
type PaymentGateway interface {
	Authorize(ctx context.Context, payment *Payment) (*AuthorizationResult, error)
}

// ImbalanceObserver is notified when an allocation completes with a non-zero balance
type ImbalanceObserver func(ctx context.Context, event *AllocationImbalanceDetectedEvent)
