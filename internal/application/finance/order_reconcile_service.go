package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/infrastructure/logger"
	"github.com/erp/allocation/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderReconcileService settles point-of-sale orders against their payments
type OrderReconcileService struct {
	engine
	locker OrderLocker
	now    func() time.Time
}

// NewOrderReconcileService creates a new OrderReconcileService. Without a locker,
// concurrent reconciliations of one order rely on row locks alone.
func NewOrderReconcileService(cfg ServiceConfig) *OrderReconcileService {
	locker := cfg.Locker
	if locker == nil {
		locker = noopLocker{}
	}
	return &OrderReconcileService{
		engine: newEngine(cfg),
		locker: locker,
		now:    time.Now,
	}
}

// ReconcileOrder completes the order's payments, allocates them against the order and
// writes off what is left, all in one transaction held under the order lock.
func (s *OrderReconcileService) ReconcileOrder(ctx context.Context, req ReconcileOrderRequest) (*ReconcileOrderResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_reconcile", "reconcile")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrOrderID, req.OrderID.String())

	start := time.Now()
	rec, err := s.reconcile(ctx, req)
	s.metrics.ReconcileFinished(ctx, time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordFailure(ctx, err)
		return nil, err
	}

	if len(rec.MissingConversions) > 0 {
		s.metrics.ConversionMissing(ctx, len(rec.MissingConversions))
		logger.L(ctx).Warn("payments counted as zero for lack of a conversion rate",
			zap.String("order_id", req.OrderID.String()),
			zap.Int("payments", len(rec.MissingConversions)),
		)
	}
	if rec.Allocation != nil {
		s.publishCommitted(ctx, rec.Allocation)
		s.metrics.AllocationCompleted(ctx, rec.Allocation.Currency.String(), len(rec.Allocation.Lines))
		telemetry.SetAttributes(span,
			telemetry.SpanAttrAllocationID, rec.Allocation.ID.String(),
			telemetry.SpanAttrDocumentNo, rec.Allocation.DocumentNo,
		)
	}
	telemetry.SetOK(span)

	return toReconcileResult(rec), nil
}

func (s *OrderReconcileService) reconcile(ctx context.Context, req ReconcileOrderRequest) (*finance.OrderReconciliation, error) {
	if _, err := shared.MustSessionFromContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var rec *finance.OrderReconciliation
	err := s.locker.WithOrderLock(ctx, req.OrderID, func(ctx context.Context) error {
		telemetry.AddEvent(telemetry.SpanFromContext(ctx), "order_locked", telemetry.SpanAttrOrderID, req.OrderID.String())
		var err error
		rec, err = inTransaction(ctx, s.tx, func(ctx context.Context, repos finance.Repositories) (*finance.OrderReconciliation, error) {
			order, err := repos.Orders().FindByID(ctx, req.OrderID)
			if err != nil {
				return nil, fmt.Errorf("load order: %w", err)
			}
			if order == nil {
				return nil, finance.NewNotFoundError("order", req.OrderID)
			}
			if !order.IsActive {
				return nil, finance.NewNotActiveError("order", req.OrderID)
			}

			pos := finance.PointOfSaleContext{
				ID:             req.PointOfSaleID,
				OrganizationID: order.OrganizationID,
				ConversionType: req.ConversionType,
			}
			reconciler := finance.NewOrderReconciler(repos, s.converter(repos.ConversionRates()),
				finance.WithSessionOptions(s.sessionOptions()...),
				finance.WithReconcilerClock(s.now),
			)
			return reconciler.Reconcile(ctx, order, pos, req.AllowOpenRefund)
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func toReconcileResult(rec *finance.OrderReconciliation) *ReconcileOrderResult {
	order := rec.Order
	result := &ReconcileOrderResult{
		OrderID:             order.ID,
		ReconciliationState: order.ReconciliationState.String(),
		OpenAmount:          rec.OpenAmount,
		WrittenOff:          rec.WrittenOff,
		CreditMemoIDs:       make([]uuid.UUID, 0, len(rec.CreditMemos)),
		MissingConversions:  nonNilIDs(rec.MissingConversions),
		ProcessedReferences: nonNilIDs(rec.ProcessedRefs),
	}
	for _, memo := range rec.CreditMemos {
		result.CreditMemoIDs = append(result.CreditMemoIDs, memo.ID)
	}
	if rec.Allocation != nil {
		id := rec.Allocation.ID
		result.AllocationID = &id
		result.DocumentNo = rec.Allocation.DocumentNo
		result.Message = fmt.Sprintf("Order %s reconciled by allocation %s", order.DocumentNo, rec.Allocation.DocumentNo)
	} else {
		result.Message = fmt.Sprintf("Order %s reconciled", order.DocumentNo)
	}
	return result
}
