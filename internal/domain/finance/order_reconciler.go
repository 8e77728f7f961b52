package finance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PointOfSaleContext carries the terminal settings an order is settled under
type PointOfSaleContext struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	ConversionType string
}

// OrderReconciliation is the outcome of reconciling one order
type OrderReconciliation struct {
	Order              *Order
	Allocation         *Allocation // nil when nothing needed allocating
	OpenAmount         decimal.Decimal
	WrittenOff         decimal.Decimal
	CreditMemos        []*Invoice
	MissingConversions []uuid.UUID // payments whose amount was taken as zero for lack of a rate
	ProcessedRefs      []uuid.UUID
}

// OrderReconciler settles a point-of-sale order against its payments
type OrderReconciler struct {
	repos       Repositories
	converter   CurrencyConverter
	sessionOpts []AllocationSessionOption
	now         func() time.Time
}

// OrderReconcilerOption configures an OrderReconciler
type OrderReconcilerOption func(*OrderReconciler)

// WithSessionOptions passes options through to the allocation session
func WithSessionOptions(opts ...AllocationSessionOption) OrderReconcilerOption {
	return func(r *OrderReconciler) {
		r.sessionOpts = append(r.sessionOpts, opts...)
	}
}

// WithReconcilerClock overrides the time source
func WithReconcilerClock(now func() time.Time) OrderReconcilerOption {
	return func(r *OrderReconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewOrderReconciler creates a reconciler bound to repos
func NewOrderReconciler(repos Repositories, converter CurrencyConverter, opts ...OrderReconcilerOption) *OrderReconciler {
	r := &OrderReconciler{
		repos:     repos,
		converter: converter,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// settledPayment is a completed payment with its amount in order currency, signed
type settledPayment struct {
	payment    *Payment
	creditMemo *Invoice
	issued     bool
	tendered   decimal.Decimal
	signed     decimal.Decimal
}

// Reconcile completes the order's draft payments, allocates them against the order and
// writes off the residual when the policy asks for it.
func (r *OrderReconciler) Reconcile(ctx context.Context, order *Order, pos PointOfSaleContext, allowOpenRefund bool) (*OrderReconciliation, error) {
	if order == nil {
		return nil, NewValidationError("order", "is required")
	}
	result := &OrderReconciliation{Order: order}

	payments, err := r.repos.Payments().FindByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("load order payments: %w", err)
	}
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})

	settled := make([]settledPayment, 0, len(payments))
	for _, p := range payments {
		if !p.IsDraft() && !p.IsCompleted() {
			continue
		}
		sp, err := r.completePayment(ctx, p)
		if err != nil {
			return nil, err
		}
		if sp.issued {
			result.CreditMemos = append(result.CreditMemos, sp.creditMemo)
		}
		settled = append(settled, sp)
	}
	if err := order.Advance(ReconciliationPaymentsCompleted); err != nil {
		return nil, err
	}

	openAmount := order.GrandTotal.Sub(order.WrittenOffAmount)
	for i := range settled {
		sp := &settled[i]
		converted, found, err := ConvertOrZero(ctx, r.converter, sp.tendered, r.conversionQuery(order, pos, sp.payment))
		if err != nil {
			return nil, err
		}
		if !found {
			result.MissingConversions = append(result.MissingConversions, sp.payment.ID)
		}
		sp.signed = converted.Mul(sp.payment.Multiplier(order.IsReturnOrder))
		openAmount = openAmount.Sub(sp.signed)
	}

	alloc, err := r.allocate(ctx, order, pos, settled)
	if err != nil {
		return nil, err
	}

	session := NewAllocationSession(r.repos, r.sessionOpts...)
	if alloc == nil && r.needsWriteOff(order, openAmount, allowOpenRefund) {
		alloc, err = session.Open(ctx, r.headerSpec(order, pos))
		if err != nil {
			return nil, err
		}
	}

	if alloc != nil {
		writtenOff, err := r.WriteOff(alloc, order, openAmount, allowOpenRefund)
		if err != nil {
			return nil, err
		}
		openAmount = openAmount.Sub(writtenOff)
		result.WrittenOff = writtenOff

		if _, err := session.Complete(ctx, alloc); err != nil {
			return nil, err
		}
		if err := r.markCreditMemoTendersAllocated(ctx, alloc, settled); err != nil {
			return nil, err
		}
		result.Allocation = alloc
		if err := order.Advance(ReconciliationAllocated); err != nil {
			return nil, err
		}
		if !writtenOff.IsZero() {
			if err := order.Advance(ReconciliationWrittenOff); err != nil {
				return nil, err
			}
		}
	}

	order.OpenAmount = openAmount
	if order.RoundsToZero(openAmount) {
		processed, err := r.processPaymentReferences(ctx, order)
		if err != nil {
			return nil, err
		}
		result.ProcessedRefs = processed
	}

	if err := r.repos.Orders().Save(ctx, order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	result.OpenAmount = openAmount
	return result, nil
}

// completePayment completes a draft payment, issuing its credit memo first when it was
// tendered by credit memo. Completed payments pass through with their tendered amount.
func (r *OrderReconciler) completePayment(ctx context.Context, p *Payment) (settledPayment, error) {
	sp := settledPayment{payment: p, tendered: p.PayAmount}

	if p.IsDraft() {
		if err := p.PrepareForOrderCompletion(); err != nil {
			return sp, err
		}
		if p.IsCreditMemoTender() {
			memo, transferred, err := r.IssueCreditMemo(ctx, p)
			if err != nil {
				return sp, err
			}
			sp.creditMemo = memo
			sp.issued = true
			sp.tendered = transferred
		}
		if err := r.repos.Documents().Complete(ctx, p); err != nil {
			return sp, err
		}
		if err := r.repos.Payments().Save(ctx, p); err != nil {
			return sp, fmt.Errorf("save completed payment: %w", err)
		}
		return sp, nil
	}

	if p.IsCreditMemoTender() && p.InvoiceID != nil {
		memo, err := r.repos.Invoices().FindByID(ctx, *p.InvoiceID)
		if err != nil {
			return sp, fmt.Errorf("load credit memo: %w", err)
		}
		if memo == nil {
			return sp, NewNotFoundError("credit memo", *p.InvoiceID)
		}
		sp.creditMemo = memo
		sp.tendered = memo.GrandTotal
	}
	return sp, nil
}

// IssueCreditMemo spawns the credit memo invoice for a credit-memo tender, completes it
// and moves the payment's amount onto it. It returns the memo and the transferred amount.
func (r *OrderReconciler) IssueCreditMemo(ctx context.Context, p *Payment) (*Invoice, decimal.Decimal, error) {
	memo, err := NewCreditMemoFromPayment(p)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if err := r.repos.Invoices().Save(ctx, memo); err != nil {
		return nil, decimal.Zero, fmt.Errorf("save credit memo: %w", err)
	}
	if err := r.repos.Documents().Complete(ctx, memo); err != nil {
		return nil, decimal.Zero, err
	}
	transferred, err := p.TransferToCreditMemo(memo.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return memo, transferred, nil
}

// allocate runs the payment pass and the credit memo pass. Each pass is its own debit
// snapshot of the order covering exactly the credits in that pass.
func (r *OrderReconciler) allocate(ctx context.Context, order *Order, pos PointOfSaleContext, settled []settledPayment) (*Allocation, error) {
	var paymentCredits, internalCredits []CreditItem
	for _, sp := range settled {
		if sp.payment.IsAllocated || sp.signed.IsZero() {
			continue
		}
		if sp.creditMemo != nil && sp.creditMemo.IsPaid {
			continue
		}
		switch {
		case sp.creditMemo != nil:
			internalCredits = append(internalCredits, CreditItem{
				ID:                sp.creditMemo.ID,
				Kind:              CreditCreditMemo,
				BusinessPartnerID: order.BusinessPartnerID,
				Currency:          order.Currency,
				Amount:            sp.signed,
				TenderKind:        sp.payment.TenderKind,
				CreatedAt:         sp.payment.CreatedAt,
			})
		case sp.payment.IsPOSInternal():
			internalCredits = append(internalCredits, r.paymentCredit(order, sp))
		default:
			paymentCredits = append(paymentCredits, r.paymentCredit(order, sp))
		}
	}
	if len(paymentCredits) == 0 && len(internalCredits) == 0 {
		return nil, nil
	}

	session := NewAllocationSession(r.repos, r.sessionOpts...)
	alloc, err := session.Open(ctx, r.headerSpec(order, pos))
	if err != nil {
		return nil, err
	}
	for _, credits := range [][]CreditItem{paymentCredits, internalCredits} {
		if len(credits) == 0 {
			continue
		}
		if _, err := session.Match(ctx, alloc, MatchInput{
			Currency:          order.Currency,
			BusinessPartnerID: order.BusinessPartnerID,
			Debits:            []DebitItem{orderDebit(order, credits)},
			Credits:           credits,
		}); err != nil {
			return nil, err
		}
	}
	return alloc, nil
}

// markCreditMemoTendersAllocated flags the tenders whose credit memo was allocated in
// alloc. Their own amount is zero after the transfer, so no line references the payment
// and the payment status store never sees them.
func (r *OrderReconciler) markCreditMemoTendersAllocated(ctx context.Context, alloc *Allocation, settled []settledPayment) error {
	touched := make(map[uuid.UUID]struct{})
	for _, id := range alloc.TouchedInvoiceIDs() {
		touched[id] = struct{}{}
	}
	for _, sp := range settled {
		if sp.creditMemo == nil || sp.payment.IsAllocated {
			continue
		}
		if _, ok := touched[sp.creditMemo.ID]; !ok {
			continue
		}
		sp.payment.IsAllocated = true
		if err := r.repos.Payments().Save(ctx, sp.payment); err != nil {
			return fmt.Errorf("save credit memo tender: %w", err)
		}
	}
	return nil
}

func (r *OrderReconciler) paymentCredit(order *Order, sp settledPayment) CreditItem {
	return CreditItem{
		ID:                sp.payment.ID,
		Kind:              CreditPayment,
		BusinessPartnerID: order.BusinessPartnerID,
		Currency:          order.Currency,
		Amount:            sp.signed,
		TenderKind:        sp.payment.TenderKind,
		CreatedAt:         sp.payment.CreatedAt,
	}
}

// orderDebit snapshots the order as a debit for exactly the credits it is matched with.
// The residual against the grand total belongs to the write-off step, not to over/under.
func orderDebit(order *Order, credits []CreditItem) DebitItem {
	applied := decimal.Zero
	for _, c := range credits {
		applied = applied.Add(c.Amount)
	}
	return DebitItem{
		ID:                order.ID,
		Kind:              DebitOrder,
		BusinessPartnerID: order.BusinessPartnerID,
		InvoiceID:         order.InvoiceID,
		Currency:          order.Currency,
		OpenAmount:        applied,
		AppliedAmount:     applied,
		Date:              order.DateOrdered,
	}
}

func (r *OrderReconciler) needsWriteOff(order *Order, openAmount decimal.Decimal, allowOpenRefund bool) bool {
	if openAmount.IsZero() {
		return false
	}
	return !allowOpenRefund || order.RoundsToZero(openAmount)
}

// WriteOff appends a write-off line for the order's residual when the policy asks for
// one: always without an open refund, otherwise only when the residual rounds to zero at
// the price list precision. A zero residual, or an allocation already carrying a
// write-off for the order, adds nothing. It returns the amount written off.
func (r *OrderReconciler) WriteOff(alloc *Allocation, order *Order, openAmount decimal.Decimal, allowOpenRefund bool) (decimal.Decimal, error) {
	if !r.needsWriteOff(order, openAmount, allowOpenRefund) || alloc.HasWriteOffFor(order.ID) {
		return decimal.Zero, nil
	}
	if err := alloc.AddLines(NewWriteOffLine(order, openAmount)); err != nil {
		return decimal.Zero, err
	}
	order.WrittenOffAmount = order.WrittenOffAmount.Add(openAmount)
	order.OpenAmount = order.OpenAmount.Sub(openAmount)
	return openAmount, nil
}

func (r *OrderReconciler) processPaymentReferences(ctx context.Context, order *Order) ([]uuid.UUID, error) {
	refs, err := r.repos.PaymentReferences().FindOpenByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("load payment references: %w", err)
	}
	processed := make([]uuid.UUID, 0, len(refs))
	now := r.now()
	for _, ref := range refs {
		if !ref.MarkProcessed(now) {
			continue
		}
		if err := r.repos.PaymentReferences().Save(ctx, ref); err != nil {
			return nil, fmt.Errorf("save payment reference: %w", err)
		}
		processed = append(processed, ref.ID)
	}
	return processed, nil
}

func (r *OrderReconciler) headerSpec(order *Order, pos PointOfSaleContext) AllocationHeaderSpec {
	orgID := order.OrganizationID
	if pos.OrganizationID != uuid.Nil {
		orgID = pos.OrganizationID
	}
	return AllocationHeaderSpec{
		OrganizationID:    orgID,
		BusinessPartnerID: order.BusinessPartnerID,
		Currency:          order.Currency,
		Date:              r.now(),
		Description:       "Order " + order.DocumentNo,
	}
}

func (r *OrderReconciler) conversionQuery(order *Order, pos PointOfSaleContext, p *Payment) ConversionQuery {
	conversionType := pos.ConversionType
	if conversionType == "" {
		conversionType = p.ConversionType
	}
	if conversionType == "" {
		conversionType = order.ConversionType
	}
	return ConversionQuery{
		From:           p.Currency,
		To:             order.Currency,
		AsOf:           p.DateTrx,
		ConversionType: conversionType,
		ClientID:       order.ClientID,
		OrganizationID: order.OrganizationID,
	}
}
