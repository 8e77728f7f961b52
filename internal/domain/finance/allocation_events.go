package finance

import (
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AggregateTypeAllocation = "Allocation"

	EventTypeAllocationCompleted         = "AllocationCompleted"
	EventTypeAllocationImbalanceDetected = "AllocationImbalanceDetected"
)

// AllocationCompletedEvent is raised when an allocation document is completed
type AllocationCompletedEvent struct {
	shared.BaseDomainEvent
	DocumentNo        string               `json:"document_no"`
	BusinessPartnerID uuid.UUID            `json:"business_partner_id"`
	Currency          valueobject.Currency `json:"currency"`
	LineCount         int                  `json:"line_count"`
}

// NewAllocationCompletedEvent creates a new AllocationCompletedEvent
func NewAllocationCompletedEvent(a *Allocation) *AllocationCompletedEvent {
	return &AllocationCompletedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeAllocationCompleted, AggregateTypeAllocation, a.ID, a.ClientID),
		DocumentNo:        a.DocumentNo,
		BusinessPartnerID: a.BusinessPartnerID,
		Currency:          a.Currency,
		LineCount:         len(a.Lines),
	}
}

// AllocationImbalanceDetectedEvent is raised when an allocation's lines do not net to zero.
// It is informational; the allocation still completes.
type AllocationImbalanceDetectedEvent struct {
	shared.BaseDomainEvent
	DocumentNo string               `json:"document_no"`
	Currency   valueobject.Currency `json:"currency"`
	Imbalance  decimal.Decimal      `json:"imbalance"`
}

// NewAllocationImbalanceDetectedEvent creates a new AllocationImbalanceDetectedEvent
func NewAllocationImbalanceDetectedEvent(a *Allocation, imbalance decimal.Decimal) *AllocationImbalanceDetectedEvent {
	return &AllocationImbalanceDetectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationImbalanceDetected, AggregateTypeAllocation, a.ID, a.ClientID),
		DocumentNo:      a.DocumentNo,
		Currency:        a.Currency,
		Imbalance:       imbalance,
	}
}
