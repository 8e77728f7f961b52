package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/erp/allocation/internal/infrastructure/logger"
	"github.com/erp/allocation/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EngineSettings tunes the allocation sessions the services open
type EngineSettings struct {
	ChargeMode            finance.ChargeAbsorptionMode
	StrictBalance         bool
	CollaboratorTimeout   time.Duration
	DefaultConversionType string
}

// ServiceConfig holds the collaborators shared by the allocation services
type ServiceConfig struct {
	// Reader serves lookups outside any transaction
	Reader         finance.Repositories
	Transactions   TransactionRunner
	EventPublisher shared.EventPublisher
	Gateway        finance.PaymentGateway
	Locker         OrderLocker
	Metrics        *telemetry.AllocationMetrics
	Settings       EngineSettings
}

// engine carries what both services need to open sessions
type engine struct {
	reader    finance.Repositories
	tx        TransactionRunner
	publisher shared.EventPublisher
	gateway   finance.PaymentGateway
	metrics   *telemetry.AllocationMetrics
	settings  EngineSettings
}

func newEngine(cfg ServiceConfig) engine {
	return engine{
		reader:    cfg.Reader,
		tx:        cfg.Transactions,
		publisher: cfg.EventPublisher,
		gateway:   cfg.Gateway,
		metrics:   cfg.Metrics,
		settings:  cfg.Settings,
	}
}

func (e engine) sessionOptions() []finance.AllocationSessionOption {
	opts := []finance.AllocationSessionOption{
		finance.WithMatcher(finance.NewAllocationMatcher(finance.WithChargeAbsorptionMode(e.settings.ChargeMode))),
		finance.WithImbalanceObserver(e.observeImbalance),
		finance.WithStrictBalance(e.settings.StrictBalance),
		finance.WithCollaboratorTimeout(e.settings.CollaboratorTimeout),
	}
	if e.gateway != nil {
		opts = append(opts, finance.WithPaymentGateway(e.gateway))
	}
	return opts
}

func (e engine) converter(rates finance.ConversionRateRepository) *finance.RateConverter {
	return finance.NewRateConverter(rates, finance.WithDefaultConversionType(e.settings.DefaultConversionType))
}

// observeImbalance runs inside the session, before commit
func (e engine) observeImbalance(ctx context.Context, evt *finance.AllocationImbalanceDetectedEvent) {
	logger.L(ctx).Error("allocation completed out of balance",
		zap.String("allocation_id", evt.AggregateID().String()),
		zap.String("document_no", evt.DocumentNo),
		zap.String("currency", evt.Currency.String()),
		zap.String("imbalance", evt.Imbalance.String()),
	)
	e.metrics.ImbalanceDetected(ctx, evt.Currency.String())
}

// publishCommitted hands the aggregate's events to the publisher once the transaction
// committed. A publishing failure is logged; the allocation stands.
func (e engine) publishCommitted(ctx context.Context, alloc *finance.Allocation) {
	if alloc == nil {
		return
	}
	events := alloc.GetDomainEvents()
	alloc.ClearDomainEvents()
	if e.publisher == nil || len(events) == 0 {
		return
	}
	if err := e.publisher.Publish(ctx, events...); err != nil {
		logger.L(ctx).Warn("failed to publish allocation events",
			zap.String("allocation_id", alloc.ID.String()),
			zap.Error(err),
		)
	}
}

func (e engine) recordFailure(ctx context.Context, err error) {
	if errors.Is(err, finance.ErrPaymentDeclined) {
		e.metrics.GatewayDeclined(ctx)
	}
}

// AllocationService runs interactive allocations of selected payments against selected invoices
type AllocationService struct {
	engine
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(cfg ServiceConfig) *AllocationService {
	return &AllocationService{engine: newEngine(cfg)}
}

// Allocate validates the selections, then opens, matches and completes one allocation in
// a single transaction. Nothing is written when validation fails.
func (s *AllocationService) Allocate(ctx context.Context, req AllocateRequest) (*AllocateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "allocate")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPartnerID, req.BusinessPartnerID.String(),
		telemetry.SpanAttrCurrency, req.Currency,
	)

	start := time.Now()
	result, err := s.allocate(ctx, req)
	s.metrics.SessionFinished(ctx, time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordFailure(ctx, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAllocationID, result.AllocationID.String(),
		telemetry.SpanAttrDocumentNo, result.DocumentNo,
		telemetry.SpanAttrLineCount, result.LineCount,
	)
	telemetry.SetOK(span)
	return result, nil
}

func (s *AllocationService) allocate(ctx context.Context, req AllocateRequest) (*AllocateResult, error) {
	sc, err := shared.MustSessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	input, err := s.prepare(ctx, sc, req)
	if err != nil {
		return nil, err
	}

	outcome, err := inTransaction(ctx, s.tx, func(ctx context.Context, repos finance.Repositories) (*finance.SessionOutcome, error) {
		session := finance.NewAllocationSession(repos, s.sessionOptions()...)
		alloc, err := session.Open(ctx, input.header)
		if err != nil {
			return nil, err
		}
		if _, err := session.Match(ctx, alloc, input.match); err != nil {
			return nil, err
		}
		return session.Complete(ctx, alloc)
	})
	if err != nil {
		return nil, err
	}

	alloc := outcome.Allocation
	s.publishCommitted(ctx, alloc)
	s.metrics.AllocationCompleted(ctx, alloc.Currency.String(), len(alloc.Lines))
	logger.L(ctx).Info("allocation completed",
		zap.String("allocation_id", alloc.ID.String()),
		zap.String("document_no", alloc.DocumentNo),
		zap.Int("line_count", len(alloc.Lines)),
	)

	return &AllocateResult{
		Message:           fmt.Sprintf("Allocation %s created", alloc.DocumentNo),
		AllocationID:      alloc.ID,
		DocumentNo:        alloc.DocumentNo,
		LineCount:         len(alloc.Lines),
		Imbalance:         outcome.Imbalance,
		PaidInvoices:      nonNilIDs(outcome.PaidInvoices),
		AllocatedPayments: nonNilIDs(outcome.AllocatedPayments),
	}, nil
}

// GetAllocation returns one allocation with its lines
func (s *AllocationService) GetAllocation(ctx context.Context, id uuid.UUID) (*AllocationView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "get")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrAllocationID, id.String())

	alloc, err := s.reader.Allocations().FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load allocation: %w", err)
	}
	if alloc == nil {
		return nil, finance.NewNotFoundError("allocation", id)
	}
	view := ToAllocationView(alloc)
	return &view, nil
}

type preparedAllocation struct {
	header finance.AllocationHeaderSpec
	match  finance.MatchInput
}

// prepare resolves every referenced document and converts the selected amounts into the
// header currency. All checks happen before the transaction opens.
func (s *AllocationService) prepare(ctx context.Context, sc shared.SessionContext, req AllocateRequest) (*preparedAllocation, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if len(req.PaymentSelections) == 0 && len(req.InvoiceSelections) == 0 {
		return nil, finance.NewValidationError("selections", "select at least one payment or invoice")
	}
	currency, err := valueobject.ParseCurrency(req.Currency)
	if err != nil {
		return nil, finance.NewValidationError("currency", err.Error())
	}

	master := s.reader.MasterData()
	partner, err := master.FindBusinessPartner(ctx, req.BusinessPartnerID)
	if err != nil {
		return nil, fmt.Errorf("load business partner: %w", err)
	}
	if partner == nil {
		return nil, finance.NewNotFoundError("business partner", req.BusinessPartnerID)
	}
	if !partner.IsActive {
		return nil, finance.NewNotActiveError("business partner", req.BusinessPartnerID)
	}

	chargeID := uuid.Nil
	if req.ChargeID != nil && *req.ChargeID != uuid.Nil {
		charge, err := master.FindCharge(ctx, *req.ChargeID)
		if err != nil {
			return nil, fmt.Errorf("load charge: %w", err)
		}
		if charge == nil {
			return nil, finance.NewNotFoundError("charge", *req.ChargeID)
		}
		if !charge.IsActive {
			return nil, finance.NewNotActiveError("charge", *req.ChargeID)
		}
		chargeID = charge.ID
	}

	conv := selectionConverter{
		converter:      s.converter(s.reader.ConversionRates()),
		multiCurrency:  req.IsMultiCurrency,
		to:             currency,
		conversionType: req.ConversionType,
		clientID:       sc.ClientID,
		orgID:          req.OrganizationID,
	}

	credits := make([]finance.CreditItem, 0, len(req.PaymentSelections))
	for i, sel := range req.PaymentSelections {
		credit, err := s.paymentCredit(ctx, conv, sel)
		if err != nil {
			return nil, fmt.Errorf("payment selection %d: %w", i, err)
		}
		credits = append(credits, credit)
	}

	debits := make([]finance.DebitItem, 0, len(req.InvoiceSelections))
	for i, sel := range req.InvoiceSelections {
		debit, err := s.invoiceDebit(ctx, conv, sel)
		if err != nil {
			return nil, fmt.Errorf("invoice selection %d: %w", i, err)
		}
		debits = append(debits, debit)
	}

	match := finance.MatchInput{
		Currency:          currency,
		BusinessPartnerID: req.BusinessPartnerID,
		Debits:            debits,
		Credits:           credits,
		ChargeID:          chargeID,
		TotalDifference:   req.TotalDifference,
	}
	if err := match.Validate(); err != nil {
		return nil, err
	}

	return &preparedAllocation{
		header: finance.AllocationHeaderSpec{
			OrganizationID:    req.OrganizationID,
			BusinessPartnerID: req.BusinessPartnerID,
			Currency:          currency,
			Date:              req.Date,
			Description:       req.Description,
		},
		match: match,
	}, nil
}

func (s *AllocationService) paymentCredit(ctx context.Context, conv selectionConverter, sel PaymentSelection) (finance.CreditItem, error) {
	p, err := s.reader.Payments().FindByID(ctx, sel.ID)
	if err != nil {
		return finance.CreditItem{}, fmt.Errorf("load payment: %w", err)
	}
	if p == nil {
		return finance.CreditItem{}, finance.NewNotFoundError("payment", sel.ID)
	}
	if !p.IsActive {
		return finance.CreditItem{}, finance.NewNotActiveError("payment", sel.ID)
	}

	asOf := sel.TransactionDate
	if asOf.IsZero() {
		asOf = p.DateTrx
	}
	amounts, err := conv.convert(ctx, p.Currency, asOf, p.ConversionType, sel.AppliedAmount)
	if err != nil {
		return finance.CreditItem{}, err
	}
	return finance.CreditItem{
		ID:                p.ID,
		Kind:              finance.CreditPayment,
		BusinessPartnerID: p.BusinessPartnerID,
		Currency:          conv.to,
		Amount:            amounts[0],
		TenderKind:        p.TenderKind,
		CreatedAt:         p.CreatedAt,
	}, nil
}

func (s *AllocationService) invoiceDebit(ctx context.Context, conv selectionConverter, sel InvoiceSelection) (finance.DebitItem, error) {
	inv, err := s.reader.Invoices().FindByID(ctx, sel.ID)
	if err != nil {
		return finance.DebitItem{}, fmt.Errorf("load invoice: %w", err)
	}
	if inv == nil {
		return finance.DebitItem{}, finance.NewNotFoundError("invoice", sel.ID)
	}
	if !inv.IsActive {
		return finance.DebitItem{}, finance.NewNotActiveError("invoice", sel.ID)
	}

	asOf := sel.DateInvoiced
	if asOf.IsZero() {
		asOf = inv.DateInvoiced
	}
	amounts, err := conv.convert(ctx, inv.Currency, asOf, "",
		sel.OpenAmount, sel.AppliedAmount, sel.DiscountAmount, sel.WriteOffAmount)
	if err != nil {
		return finance.DebitItem{}, err
	}
	return finance.DebitItem{
		ID:                inv.ID,
		Kind:              finance.DebitInvoice,
		BusinessPartnerID: inv.BusinessPartnerID,
		OrderID:           inv.OrderID,
		Currency:          conv.to,
		OpenAmount:        amounts[0],
		AppliedAmount:     amounts[1],
		DiscountAmount:    amounts[2],
		WriteOffAmount:    amounts[3],
		Date:              asOf,
	}, nil
}

// selectionConverter brings selected amounts into the header currency
type selectionConverter struct {
	converter      finance.CurrencyConverter
	multiCurrency  bool
	to             valueobject.Currency
	conversionType string
	clientID       uuid.UUID
	orgID          uuid.UUID
}

// convert returns amounts in the header currency. Without multi-currency a foreign
// document is rejected; with it a missing rate fails before anything is converted.
func (c selectionConverter) convert(ctx context.Context, from valueobject.Currency, asOf time.Time, docConversionType string, amounts ...decimal.Decimal) ([]decimal.Decimal, error) {
	if from == c.to {
		return amounts, nil
	}
	if !c.multiCurrency {
		return nil, finance.NewValidationError("currency", fmt.Sprintf("document currency %s differs from allocation currency %s", from, c.to))
	}

	conversionType := c.conversionType
	if conversionType == "" {
		conversionType = docConversionType
	}
	q := finance.ConversionQuery{
		From:           from,
		To:             c.to,
		AsOf:           asOf,
		ConversionType: conversionType,
		ClientID:       c.clientID,
		OrganizationID: c.orgID,
	}
	if err := c.converter.ValidateConversion(ctx, q); err != nil {
		return nil, err
	}

	out := make([]decimal.Decimal, len(amounts))
	for i, amt := range amounts {
		m, err := c.converter.Convert(ctx, amt, q)
		if err != nil {
			return nil, err
		}
		out[i] = m.Amount()
	}
	return out, nil
}

func nonNilIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
