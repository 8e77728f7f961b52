package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationHeaderSpec describes the draft header a session opens
type AllocationHeaderSpec struct {
	OrganizationID    uuid.UUID
	BusinessPartnerID uuid.UUID
	Currency          valueobject.Currency
	Date              time.Time
	Description       string
}

// SessionOutcome summarises a completed session
type SessionOutcome struct {
	Allocation        *Allocation
	Imbalance         decimal.Decimal
	PaidInvoices      []uuid.UUID
	AllocatedPayments []uuid.UUID
}

// AllocationSession owns one draft allocation from creation to completion. It is bound
// to the stores of a single transaction and must not be shared between transactions.
type AllocationSession struct {
	repos         Repositories
	matcher       *AllocationMatcher
	gateway       PaymentGateway
	observers     []ImbalanceObserver
	strictBalance bool
	timeout       time.Duration
}

// AllocationSessionOption configures an AllocationSession
type AllocationSessionOption func(*AllocationSession)

// WithMatcher replaces the default matcher
func WithMatcher(m *AllocationMatcher) AllocationSessionOption {
	return func(s *AllocationSession) {
		if m != nil {
			s.matcher = m
		}
	}
}

// WithPaymentGateway sets the gateway used for online tenders
func WithPaymentGateway(g PaymentGateway) AllocationSessionOption {
	return func(s *AllocationSession) {
		s.gateway = g
	}
}

// WithImbalanceObserver registers an observer for imbalance events
func WithImbalanceObserver(o ImbalanceObserver) AllocationSessionOption {
	return func(s *AllocationSession) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithStrictBalance turns an imbalance into a validation failure
func WithStrictBalance(strict bool) AllocationSessionOption {
	return func(s *AllocationSession) {
		s.strictBalance = strict
	}
}

// WithCollaboratorTimeout bounds document completion and gateway calls; zero disables
func WithCollaboratorTimeout(d time.Duration) AllocationSessionOption {
	return func(s *AllocationSession) {
		s.timeout = d
	}
}

// NewAllocationSession creates a session over repos
func NewAllocationSession(repos Repositories, opts ...AllocationSessionOption) *AllocationSession {
	s := &AllocationSession{
		repos:   repos,
		matcher: NewAllocationMatcher(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates and persists the draft header
func (s *AllocationSession) Open(ctx context.Context, spec AllocationHeaderSpec) (*Allocation, error) {
	sc, err := shared.MustSessionFromContext(ctx)
	if err != nil {
		return nil, err
	}
	alloc, err := NewAllocation(sc, spec.OrganizationID, spec.BusinessPartnerID, spec.Currency, spec.Date, spec.Description)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Allocations().Save(ctx, alloc); err != nil {
		return nil, fmt.Errorf("save draft allocation: %w", err)
	}
	return alloc, nil
}

// Match runs the matcher over in and appends the resulting lines to alloc
func (s *AllocationSession) Match(ctx context.Context, alloc *Allocation, in MatchInput) (*MatchResult, error) {
	if in.Currency == "" {
		in.Currency = alloc.Currency
	}
	if in.BusinessPartnerID == uuid.Nil {
		in.BusinessPartnerID = alloc.BusinessPartnerID
	}
	result, err := s.matcher.Match(in)
	if err != nil {
		return nil, err
	}
	if err := alloc.AddLines(result.Lines...); err != nil {
		return nil, err
	}
	return result, nil
}

// AddLines appends lines built outside the matcher, such as write-offs
func (s *AllocationSession) AddLines(alloc *Allocation, lines ...AllocationLine) error {
	return alloc.AddLines(lines...)
}

// Complete checks the balance, completes the document and applies the status updates
// that follow a completed allocation. Any error leaves the transaction to be rolled back.
func (s *AllocationSession) Complete(ctx context.Context, alloc *Allocation) (*SessionOutcome, error) {
	if err := s.repos.Allocations().Save(ctx, alloc); err != nil {
		return nil, fmt.Errorf("save allocation lines: %w", err)
	}

	imbalance := alloc.Balance()
	if !imbalance.IsZero() && s.strictBalance {
		return nil, NewValidationError("allocation", fmt.Sprintf("allocation is not balanced, out by %s", imbalance))
	}

	if err := s.completeDocument(ctx, alloc); err != nil {
		return nil, err
	}

	if !imbalance.IsZero() {
		evt := alloc.RecordImbalance(imbalance)
		for _, observe := range s.observers {
			observe(ctx, evt)
		}
	}

	outcome := &SessionOutcome{Allocation: alloc, Imbalance: imbalance}

	for _, invoiceID := range alloc.TouchedInvoiceIDs() {
		paid, err := s.repos.InvoiceStatus().MarkPaidIfOpenIsZero(ctx, invoiceID)
		if err != nil {
			return nil, fmt.Errorf("update invoice %s paid status: %w", invoiceID, err)
		}
		if paid {
			outcome.PaidInvoices = append(outcome.PaidInvoices, invoiceID)
		}
	}

	for _, paymentID := range alloc.TouchedPaymentIDs() {
		if err := s.authorizeIfRequired(ctx, paymentID); err != nil {
			return nil, err
		}
		allocated, err := s.repos.PaymentStatus().MarkAllocatedIfFullyApplied(ctx, paymentID)
		if err != nil {
			return nil, fmt.Errorf("update payment %s allocated status: %w", paymentID, err)
		}
		if allocated {
			outcome.AllocatedPayments = append(outcome.AllocatedPayments, paymentID)
		}
	}

	return outcome, nil
}

func (s *AllocationSession) completeDocument(ctx context.Context, doc Document) error {
	callCtx, cancel := s.boundedContext(ctx)
	defer cancel()

	err := s.repos.Documents().Complete(callCtx, doc)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProcessFailed) {
		return err
	}
	return NewProcessFailedError(err.Error()).WithCause(err)
}

func (s *AllocationSession) authorizeIfRequired(ctx context.Context, paymentID uuid.UUID) error {
	payment, err := s.repos.Payments().FindByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("load payment %s: %w", paymentID, err)
	}
	if payment == nil {
		return NewNotFoundError("payment", paymentID)
	}
	if !payment.RequiresOnlineAuthorization() {
		return nil
	}
	if s.gateway == nil {
		return NewPaymentDeclinedError(fmt.Sprintf("no gateway configured for online payment %s", payment.DocumentNo))
	}

	callCtx, cancel := s.boundedContext(ctx)
	defer cancel()

	result, err := s.gateway.Authorize(callCtx, payment)
	if err != nil {
		return fmt.Errorf("authorize payment %s: %w", payment.DocumentNo, err)
	}
	if !result.Approved {
		return NewPaymentDeclinedError(result.DeclineReason)
	}
	payment.Approve(result.AuthorizationCode)
	if err := s.repos.Payments().Save(ctx, payment); err != nil {
		return fmt.Errorf("save authorized payment: %w", err)
	}
	return nil
}

func (s *AllocationSession) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
