package finance

import (
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation is the allocation header aggregate. It is created in Draft, collects
// lines only while in Draft and becomes immutable once completed.
type Allocation struct {
	shared.ClientAggregateRoot
	DocumentNo        string
	Description       string
	DateTrx           time.Time
	Currency          valueobject.Currency
	BusinessPartnerID uuid.UUID
	Status            DocStatus
	Lines             []AllocationLine
	CompletedAt       *time.Time
}

// NewAllocation creates a draft allocation header
func NewAllocation(sc shared.SessionContext, orgID, partnerID uuid.UUID, currency valueobject.Currency, dateTrx time.Time, description string) (*Allocation, error) {
	if orgID == uuid.Nil {
		return nil, NewValidationError("organization_id", "is required")
	}
	if currency == "" {
		return nil, NewValidationError("currency", "is required")
	}
	if dateTrx.IsZero() {
		return nil, NewValidationError("date", "is required")
	}
	a := &Allocation{
		ClientAggregateRoot: shared.NewClientAggregateRootFromSession(sc, orgID),
		Description:         description,
		DateTrx:             dateTrx,
		Currency:            currency,
		BusinessPartnerID:   partnerID,
		Status:              DocStatusDraft,
		Lines:               make([]AllocationLine, 0),
	}
	return a, nil
}

// DocumentType implements Document
func (a *Allocation) DocumentType() string { return "allocation" }

// GetDocumentNo implements Document
func (a *Allocation) GetDocumentNo() string { return a.DocumentNo }

// GetDocStatus implements Document
func (a *Allocation) GetDocStatus() DocStatus { return a.Status }

// AddLines appends lines to a draft allocation, numbering them in order
func (a *Allocation) AddLines(lines ...AllocationLine) error {
	if a.Status != DocStatusDraft {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("cannot add lines to allocation in %s status", a.Status))
	}
	for _, l := range lines {
		if !l.Kind.IsValid() {
			return NewValidationError("line.kind", fmt.Sprintf("unknown line kind %q", l.Kind))
		}
		l.AllocationID = a.ID
		l.LineNo = (len(a.Lines) + 1) * 10
		a.Lines = append(a.Lines, l)
	}
	a.Touch()
	return nil
}

// Balance is the net of every line's balance effect; zero when the allocation is balanced
func (a *Allocation) Balance() decimal.Decimal {
	balance := decimal.Zero
	for i := range a.Lines {
		balance = balance.Add(a.Lines[i].BalanceEffect())
	}
	return balance
}

// MarkCompleted moves the allocation to Completed under documentNo
func (a *Allocation) MarkCompleted(documentNo string, at time.Time) error {
	if !a.Status.CanComplete() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("cannot complete allocation in %s status", a.Status))
	}
	if len(a.Lines) == 0 {
		return shared.NewDomainError(shared.CodeInvalidState, "allocation has no lines")
	}
	a.DocumentNo = documentNo
	a.Status = DocStatusCompleted
	a.CompletedAt = &at
	a.Touch()
	a.IncrementVersion()
	a.AddDomainEvent(NewAllocationCompletedEvent(a))
	return nil
}

// RecordImbalance notes a non-zero balance on the aggregate as an event
func (a *Allocation) RecordImbalance(imbalance decimal.Decimal) *AllocationImbalanceDetectedEvent {
	evt := NewAllocationImbalanceDetectedEvent(a, imbalance)
	a.AddDomainEvent(evt)
	return evt
}

// HasWriteOffFor reports whether a write-off line for orderID already exists
func (a *Allocation) HasWriteOffFor(orderID uuid.UUID) bool {
	for i := range a.Lines {
		l := &a.Lines[i]
		if l.Kind == LineWriteOff && l.OrderID != nil && *l.OrderID == orderID {
			return true
		}
	}
	return false
}

// TouchedInvoiceIDs lists invoices referenced by any line, in first-seen order
func (a *Allocation) TouchedInvoiceIDs() []uuid.UUID {
	return a.collectIDs(func(l *AllocationLine) *uuid.UUID { return l.InvoiceID })
}

// TouchedPaymentIDs lists payments referenced by any line, in first-seen order
func (a *Allocation) TouchedPaymentIDs() []uuid.UUID {
	return a.collectIDs(func(l *AllocationLine) *uuid.UUID { return l.PaymentID })
}

func (a *Allocation) collectIDs(ref func(*AllocationLine) *uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0)
	for i := range a.Lines {
		id := ref(&a.Lines[i])
		if id == nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		ids = append(ids, *id)
	}
	return ids
}
