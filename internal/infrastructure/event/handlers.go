package event

import (
	"context"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// HandlerFunc adapts a function to shared.EventHandler
type HandlerFunc struct {
	types []string
	fn    func(ctx context.Context, event shared.DomainEvent) error
}

// NewHandlerFunc creates a handler for the given event types. No types means all events.
func NewHandlerFunc(fn func(ctx context.Context, event shared.DomainEvent) error, eventTypes ...string) *HandlerFunc {
	return &HandlerFunc{types: eventTypes, fn: fn}
}

// Handle calls the wrapped function
func (h *HandlerFunc) Handle(ctx context.Context, event shared.DomainEvent) error {
	return h.fn(ctx, event)
}

// EventTypes returns the subscribed event types
func (h *HandlerFunc) EventTypes() []string {
	return h.types
}

// AllocationLogHandler writes allocation lifecycle events to the request logger
type AllocationLogHandler struct{}

// NewAllocationLogHandler creates an AllocationLogHandler
func NewAllocationLogHandler() *AllocationLogHandler {
	return &AllocationLogHandler{}
}

// EventTypes returns the allocation event types
func (h *AllocationLogHandler) EventTypes() []string {
	return []string{
		finance.EventTypeAllocationCompleted,
		finance.EventTypeAllocationImbalanceDetected,
	}
}

// Handle logs the event. Imbalances are logged at error level.
func (h *AllocationLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	log := logger.L(ctx).With(
		zap.String("event_id", event.EventID().String()),
		zap.String("allocation_id", event.AggregateID().String()),
	)

	switch e := event.(type) {
	case *finance.AllocationCompletedEvent:
		log.Info("allocation completed",
			zap.String("document_no", e.DocumentNo),
			zap.String("business_partner_id", e.BusinessPartnerID.String()),
			zap.String("currency", e.Currency.String()),
			zap.Int("line_count", e.LineCount),
		)
	case *finance.AllocationImbalanceDetectedEvent:
		log.Error("allocation completed out of balance",
			zap.String("document_no", e.DocumentNo),
			zap.String("currency", e.Currency.String()),
			zap.String("imbalance", e.Imbalance.String()),
		)
	default:
		log.Debug("unhandled allocation event", zap.String("event_type", event.EventType()))
	}
	return nil
}
