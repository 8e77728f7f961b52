package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for allocation metrics.
const MeterName = "allocation"

// Outcome attribute values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AllocationMetrics holds the instruments recorded by the allocation and reconciliation services.
type AllocationMetrics struct {
	completed         *Counter
	imbalances        *Counter
	gatewayDeclines   *Counter
	conversionMisses  *Counter
	reconciliations   *Counter
	sessionDuration   *Histogram
	reconcileDuration *Histogram
}

// NewAllocationMetrics creates the allocation instruments on the given meter.
func NewAllocationMetrics(meter metric.Meter) (*AllocationMetrics, error) {
	var (
		m   AllocationMetrics
		err error
	)

	if m.completed, err = NewCounter(meter, "allocation_completed_total", "Allocations completed", "{allocation}"); err != nil {
		return nil, err
	}
	if m.imbalances, err = NewCounter(meter, "allocation_imbalance_total", "Allocations completed with a non-zero balance", "{allocation}"); err != nil {
		return nil, err
	}
	if m.gatewayDeclines, err = NewCounter(meter, "allocation_gateway_declines_total", "Online payment authorizations declined", "{payment}"); err != nil {
		return nil, err
	}
	if m.conversionMisses, err = NewCounter(meter, "allocation_conversion_misses_total", "Currency conversions without a usable rate", "{conversion}"); err != nil {
		return nil, err
	}
	if m.reconciliations, err = NewCounter(meter, "order_reconciliations_total", "Order reconciliations by outcome", "{order}"); err != nil {
		return nil, err
	}
	if m.sessionDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "allocation_session_duration_seconds",
		Description: "Duration of an allocation session from validation to completion",
		Unit:        "s",
		Boundaries:  AllocationDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.reconcileDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "order_reconcile_duration_seconds",
		Description: "Duration of an order reconciliation",
		Unit:        "s",
		Boundaries:  AllocationDurationBuckets,
	}); err != nil {
		return nil, err
	}

	return &m, nil
}

// AllocationCompleted records a completed allocation.
func (m *AllocationMetrics) AllocationCompleted(ctx context.Context, currency string, lines int) {
	if m == nil {
		return
	}
	m.completed.Inc(ctx, AttrCurrency.String(currency), attribute.Int("lines", lines))
}

// ImbalanceDetected records an allocation that completed out of balance.
func (m *AllocationMetrics) ImbalanceDetected(ctx context.Context, currency string) {
	if m == nil {
		return
	}
	m.imbalances.Inc(ctx, AttrCurrency.String(currency))
}

// GatewayDeclined records a declined online authorization.
func (m *AllocationMetrics) GatewayDeclined(ctx context.Context) {
	if m == nil {
		return
	}
	m.gatewayDeclines.Inc(ctx)
}

// ConversionMissing records conversions that fell back to zero or failed for lack of a rate.
func (m *AllocationMetrics) ConversionMissing(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.conversionMisses.Add(ctx, int64(count))
}

// SessionFinished records the duration and outcome of an allocation session.
func (m *AllocationMetrics) SessionFinished(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.sessionDuration.RecordDuration(ctx, d, AttrOutcome.String(outcomeOf(err)))
}

// ReconcileFinished records the duration and outcome of an order reconciliation.
func (m *AllocationMetrics) ReconcileFinished(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := AttrOutcome.String(outcomeOf(err))
	m.reconciliations.Inc(ctx, outcome)
	m.reconcileDuration.RecordDuration(ctx, d, outcome)
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
