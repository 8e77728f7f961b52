package finance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// In-memory repositories
// =============================================================================

type fakeRepos struct {
	allocations map[uuid.UUID]*finance.Allocation
	invoices    map[uuid.UUID]*finance.Invoice
	payments    map[uuid.UUID]*finance.Payment
	orders      map[uuid.UUID]*finance.Order
	refs        map[uuid.UUID]*finance.PaymentReference
	partners    map[uuid.UUID]*finance.BusinessPartner
	charges     map[uuid.UUID]*finance.Charge
	rates       []*finance.ConversionRate

	completeErr error
	seq         int
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{
		allocations: make(map[uuid.UUID]*finance.Allocation),
		invoices:    make(map[uuid.UUID]*finance.Invoice),
		payments:    make(map[uuid.UUID]*finance.Payment),
		orders:      make(map[uuid.UUID]*finance.Order),
		refs:        make(map[uuid.UUID]*finance.PaymentReference),
		partners:    make(map[uuid.UUID]*finance.BusinessPartner),
		charges:     make(map[uuid.UUID]*finance.Charge),
	}
}

func (f *fakeRepos) Allocations() finance.AllocationRepository             { return fakeAllocations{f} }
func (f *fakeRepos) Invoices() finance.InvoiceRepository                   { return fakeInvoices{f} }
func (f *fakeRepos) Payments() finance.PaymentRepository                   { return fakePayments{f} }
func (f *fakeRepos) Orders() finance.OrderRepository                       { return fakeOrders{f} }
func (f *fakeRepos) PaymentReferences() finance.PaymentReferenceRepository { return fakeRefs{f} }
func (f *fakeRepos) MasterData() finance.MasterDataRepository              { return fakeMasterData{f} }
func (f *fakeRepos) ConversionRates() finance.ConversionRateRepository     { return fakeRates{f} }
func (f *fakeRepos) InvoiceStatus() finance.InvoiceStatusStore             { return fakeInvoiceStatus{f} }
func (f *fakeRepos) PaymentStatus() finance.PaymentStatusStore             { return fakePaymentStatus{f} }
func (f *fakeRepos) Documents() finance.DocumentProcessor                  { return fakeDocuments{f} }

func (f *fakeRepos) completedLines() []finance.AllocationLine {
	lines := make([]finance.AllocationLine, 0)
	for _, a := range f.allocations {
		if a.Status == finance.DocStatusCompleted {
			lines = append(lines, a.Lines...)
		}
	}
	return lines
}

type fakeAllocations struct{ f *fakeRepos }

func (r fakeAllocations) FindByID(_ context.Context, id uuid.UUID) (*finance.Allocation, error) {
	return r.f.allocations[id], nil
}

func (r fakeAllocations) FindByOrder(_ context.Context, orderID uuid.UUID) ([]*finance.Allocation, error) {
	out := make([]*finance.Allocation, 0)
	for _, a := range r.f.allocations {
		for _, l := range a.Lines {
			if l.OrderID != nil && *l.OrderID == orderID {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (r fakeAllocations) Save(_ context.Context, a *finance.Allocation) error {
	r.f.allocations[a.ID] = a
	return nil
}

type fakeInvoices struct{ f *fakeRepos }

func (r fakeInvoices) FindByID(_ context.Context, id uuid.UUID) (*finance.Invoice, error) {
	return r.f.invoices[id], nil
}

func (r fakeInvoices) Save(_ context.Context, i *finance.Invoice) error {
	r.f.invoices[i.ID] = i
	return nil
}

type fakePayments struct{ f *fakeRepos }

func (r fakePayments) FindByID(_ context.Context, id uuid.UUID) (*finance.Payment, error) {
	return r.f.payments[id], nil
}

func (r fakePayments) FindByOrder(_ context.Context, orderID uuid.UUID) ([]*finance.Payment, error) {
	out := make([]*finance.Payment, 0)
	for _, p := range r.f.payments {
		if p.OrderID != nil && *p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r fakePayments) Save(_ context.Context, p *finance.Payment) error {
	r.f.payments[p.ID] = p
	return nil
}

type fakeOrders struct{ f *fakeRepos }

func (r fakeOrders) FindByID(_ context.Context, id uuid.UUID) (*finance.Order, error) {
	return r.f.orders[id], nil
}

func (r fakeOrders) Save(_ context.Context, o *finance.Order) error {
	r.f.orders[o.ID] = o
	return nil
}

type fakeRefs struct{ f *fakeRepos }

func (r fakeRefs) FindOpenByOrder(_ context.Context, orderID uuid.UUID) ([]*finance.PaymentReference, error) {
	out := make([]*finance.PaymentReference, 0)
	for _, ref := range r.f.refs {
		if ref.OrderID == orderID && !ref.IsProcessed {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r fakeRefs) Save(_ context.Context, ref *finance.PaymentReference) error {
	r.f.refs[ref.ID] = ref
	return nil
}

type fakeMasterData struct{ f *fakeRepos }

func (r fakeMasterData) FindBusinessPartner(_ context.Context, id uuid.UUID) (*finance.BusinessPartner, error) {
	return r.f.partners[id], nil
}

func (r fakeMasterData) FindCharge(_ context.Context, id uuid.UUID) (*finance.Charge, error) {
	return r.f.charges[id], nil
}

type fakeRates struct{ f *fakeRepos }

func (r fakeRates) FindRate(_ context.Context, q finance.ConversionQuery) (*finance.ConversionRate, error) {
	for _, rate := range r.f.rates {
		if rate.From == q.From && rate.To == q.To && rate.ConversionType == q.ConversionType && rate.CoversDate(q.AsOf) {
			return rate, nil
		}
	}
	return nil, nil
}

func (r fakeRates) Save(_ context.Context, rate *finance.ConversionRate) error {
	r.f.rates = append(r.f.rates, rate)
	return nil
}

type fakeInvoiceStatus struct{ f *fakeRepos }

func (r fakeInvoiceStatus) MarkPaidIfOpenIsZero(_ context.Context, id uuid.UUID) (bool, error) {
	inv := r.f.invoices[id]
	if inv == nil {
		return false, nil
	}
	consumed := decimal.Zero
	for _, l := range r.f.completedLines() {
		if l.InvoiceID != nil && *l.InvoiceID == id {
			consumed = consumed.Add(l.Consumed())
		}
	}
	if !valueobject.IsZeroAt(inv.GrandTotal.Abs().Sub(consumed.Abs()), inv.Currency.StandardPrecision()) {
		return false, nil
	}
	inv.MarkPaid()
	return true, nil
}

type fakePaymentStatus struct{ f *fakeRepos }

func (r fakePaymentStatus) MarkAllocatedIfFullyApplied(_ context.Context, id uuid.UUID) (bool, error) {
	p := r.f.payments[id]
	if p == nil {
		return false, nil
	}
	applied := decimal.Zero
	for _, l := range r.f.completedLines() {
		if l.PaymentID != nil && *l.PaymentID == id {
			applied = applied.Add(l.Amount)
		}
	}
	if !applied.Abs().Equal(p.PayAmount.Abs()) {
		return false, nil
	}
	p.IsAllocated = true
	return true, nil
}

type fakeDocuments struct{ f *fakeRepos }

func (r fakeDocuments) Complete(_ context.Context, doc finance.Document) error {
	if r.f.completeErr != nil {
		return r.f.completeErr
	}
	r.f.seq++
	no := fmt.Sprintf("ALLOC-%06d", r.f.seq)
	var err error
	switch d := doc.(type) {
	case *finance.Allocation:
		err = d.MarkCompleted(no, time.Now())
	case *finance.Payment:
		err = d.MarkCompleted(no)
	case *finance.Invoice:
		err = d.MarkCompleted(no)
	default:
		err = fmt.Errorf("unsupported document %T", doc)
	}
	if err != nil {
		return finance.NewProcessFailedError(err.Error())
	}
	return nil
}

// fakeRunner hands the same in-memory store to every unit of work
type fakeRunner struct {
	repos *fakeRepos
	calls int
}

func (r *fakeRunner) InTransaction(ctx context.Context, fn func(ctx context.Context, repos finance.Repositories) error) error {
	r.calls++
	return fn(ctx, r.repos)
}

// =============================================================================
// Mocks
// =============================================================================

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Authorize(ctx context.Context, p *finance.Payment) (*finance.AuthorizationResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*finance.AuthorizationResult), args.Error(1)
}

type MockOrderLocker struct {
	mock.Mock
}

func (m *MockOrderLocker) WithOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, orderID)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

// =============================================================================
// Fixtures
// =============================================================================

var (
	testClientID = uuid.MustParse("5e8f1c2a-3b4d-4f6a-9c0e-7d2b1a3c4e5f")
	testOrgID    = uuid.MustParse("0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d")
	testDay      = time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
)

func sessionCtx() context.Context {
	return shared.WithSessionContext(context.Background(), shared.SessionContext{
		ClientID:       testClientID,
		OrganizationID: testOrgID,
		UserID:         uuid.New(),
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedPartner(f *fakeRepos, active bool) *finance.BusinessPartner {
	bp := &finance.BusinessPartner{ID: uuid.New(), ClientID: testClientID, Name: "Seaside Traders", IsActive: active}
	f.partners[bp.ID] = bp
	return bp
}

func seedCharge(f *fakeRepos, active bool) *finance.Charge {
	c := &finance.Charge{ID: uuid.New(), ClientID: testClientID, Name: "Bank fees", IsActive: active}
	f.charges[c.ID] = c
	return c
}

func seedInvoice(f *fakeRepos, partnerID uuid.UUID, total string, currency valueobject.Currency) *finance.Invoice {
	inv := &finance.Invoice{
		ClientAggregateRoot: shared.NewClientAggregateRoot(testClientID, testOrgID),
		DocumentNo:          "INV-" + total,
		InvoiceType:         finance.InvoiceTypeARInvoice,
		BusinessPartnerID:   partnerID,
		Currency:            currency,
		GrandTotal:          dec(total),
		IsSOTrx:             true,
		DateInvoiced:        testDay,
		DocStatus:           finance.DocStatusCompleted,
		IsActive:            true,
	}
	f.invoices[inv.ID] = inv
	return inv
}

func seedPayment(f *fakeRepos, partnerID uuid.UUID, amount string, currency valueobject.Currency) *finance.Payment {
	p := &finance.Payment{
		ClientAggregateRoot: shared.NewClientAggregateRoot(testClientID, testOrgID),
		DocumentNo:          "PAY-" + amount,
		BusinessPartnerID:   partnerID,
		Currency:            currency,
		PayAmount:           dec(amount),
		IsReceipt:           true,
		TenderKind:          finance.TenderCash,
		DateTrx:             testDay,
		DocStatus:           finance.DocStatusCompleted,
		IsActive:            true,
	}
	f.payments[p.ID] = p
	return p
}

func seedOrder(f *fakeRepos, total string) *finance.Order {
	o := &finance.Order{
		ClientAggregateRoot: shared.NewClientAggregateRoot(testClientID, testOrgID),
		DocumentNo:          "SO-2001",
		BusinessPartnerID:   uuid.New(),
		Currency:            valueobject.USD,
		GrandTotal:          dec(total),
		PricePrecision:      2,
		ReconciliationState: finance.ReconciliationNotReconciled,
		DateOrdered:         testDay,
		IsActive:            true,
	}
	f.orders[o.ID] = o
	return o
}

func seedOrderPayment(f *fakeRepos, o *finance.Order, amount string, offset time.Duration) *finance.Payment {
	p := seedPayment(f, o.BusinessPartnerID, amount, o.Currency)
	p.OrderID = &o.ID
	p.DocStatus = finance.DocStatusDraft
	p.DocumentNo = ""
	p.CreatedAt = testDay.Add(offset)
	return p
}
