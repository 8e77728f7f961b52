package finance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memStore is an in-memory Repositories used by the domain tests
type memStore struct {
	allocations map[uuid.UUID]*Allocation
	invoices    map[uuid.UUID]*Invoice
	payments    map[uuid.UUID]*Payment
	orders      map[uuid.UUID]*Order
	refs        map[uuid.UUID]*PaymentReference
	partners    map[uuid.UUID]*BusinessPartner
	charges     map[uuid.UUID]*Charge
	rates       []*ConversionRate

	completeErr   error
	completeDelay time.Duration
	completed     []Document
	seq           int
}

func newMemStore() *memStore {
	return &memStore{
		allocations: make(map[uuid.UUID]*Allocation),
		invoices:    make(map[uuid.UUID]*Invoice),
		payments:    make(map[uuid.UUID]*Payment),
		orders:      make(map[uuid.UUID]*Order),
		refs:        make(map[uuid.UUID]*PaymentReference),
		partners:    make(map[uuid.UUID]*BusinessPartner),
		charges:     make(map[uuid.UUID]*Charge),
	}
}

func (s *memStore) Allocations() AllocationRepository             { return memAllocations{s} }
func (s *memStore) Invoices() InvoiceRepository                   { return memInvoices{s} }
func (s *memStore) Payments() PaymentRepository                   { return memPayments{s} }
func (s *memStore) Orders() OrderRepository                       { return memOrders{s} }
func (s *memStore) PaymentReferences() PaymentReferenceRepository { return memRefs{s} }
func (s *memStore) MasterData() MasterDataRepository              { return memMasterData{s} }
func (s *memStore) ConversionRates() ConversionRateRepository     { return memRates{s} }
func (s *memStore) InvoiceStatus() InvoiceStatusStore             { return memInvoiceStatus{s} }
func (s *memStore) PaymentStatus() PaymentStatusStore             { return memPaymentStatus{s} }
func (s *memStore) Documents() DocumentProcessor                  { return memDocuments{s} }

func (s *memStore) completedLines() []AllocationLine {
	lines := make([]AllocationLine, 0)
	for _, a := range s.allocations {
		if a.Status == DocStatusCompleted {
			lines = append(lines, a.Lines...)
		}
	}
	return lines
}

func (s *memStore) writeOffLines(orderID uuid.UUID) int {
	n := 0
	for _, a := range s.allocations {
		for _, l := range a.Lines {
			if l.Kind == LineWriteOff && l.OrderID != nil && *l.OrderID == orderID {
				n++
			}
		}
	}
	return n
}

type memAllocations struct{ s *memStore }

func (r memAllocations) FindByID(_ context.Context, id uuid.UUID) (*Allocation, error) {
	return r.s.allocations[id], nil
}

func (r memAllocations) FindByOrder(_ context.Context, orderID uuid.UUID) ([]*Allocation, error) {
	out := make([]*Allocation, 0)
	for _, a := range r.s.allocations {
		for _, l := range a.Lines {
			if l.OrderID != nil && *l.OrderID == orderID {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (r memAllocations) Save(_ context.Context, a *Allocation) error {
	r.s.allocations[a.ID] = a
	return nil
}

type memInvoices struct{ s *memStore }

func (r memInvoices) FindByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	return r.s.invoices[id], nil
}

func (r memInvoices) Save(_ context.Context, i *Invoice) error {
	r.s.invoices[i.ID] = i
	return nil
}

type memPayments struct{ s *memStore }

func (r memPayments) FindByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	return r.s.payments[id], nil
}

func (r memPayments) FindByOrder(_ context.Context, orderID uuid.UUID) ([]*Payment, error) {
	out := make([]*Payment, 0)
	for _, p := range r.s.payments {
		if p.OrderID != nil && *p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memPayments) Save(_ context.Context, p *Payment) error {
	r.s.payments[p.ID] = p
	return nil
}

type memOrders struct{ s *memStore }

func (r memOrders) FindByID(_ context.Context, id uuid.UUID) (*Order, error) {
	return r.s.orders[id], nil
}

func (r memOrders) Save(_ context.Context, o *Order) error {
	r.s.orders[o.ID] = o
	return nil
}

type memRefs struct{ s *memStore }

func (r memRefs) FindOpenByOrder(_ context.Context, orderID uuid.UUID) ([]*PaymentReference, error) {
	out := make([]*PaymentReference, 0)
	for _, ref := range r.s.refs {
		if ref.OrderID == orderID && !ref.IsProcessed {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r memRefs) Save(_ context.Context, ref *PaymentReference) error {
	r.s.refs[ref.ID] = ref
	return nil
}

type memMasterData struct{ s *memStore }

func (r memMasterData) FindBusinessPartner(_ context.Context, id uuid.UUID) (*BusinessPartner, error) {
	return r.s.partners[id], nil
}

func (r memMasterData) FindCharge(_ context.Context, id uuid.UUID) (*Charge, error) {
	return r.s.charges[id], nil
}

type memRates struct{ s *memStore }

func (r memRates) FindRate(_ context.Context, q ConversionQuery) (*ConversionRate, error) {
	for _, rate := range r.s.rates {
		if rate.From == q.From && rate.To == q.To && rate.ConversionType == q.ConversionType && rate.CoversDate(q.AsOf) {
			return rate, nil
		}
	}
	return nil, nil
}

func (r memRates) Save(_ context.Context, rate *ConversionRate) error {
	r.s.rates = append(r.s.rates, rate)
	return nil
}

type memInvoiceStatus struct{ s *memStore }

func (r memInvoiceStatus) MarkPaidIfOpenIsZero(_ context.Context, id uuid.UUID) (bool, error) {
	inv := r.s.invoices[id]
	if inv == nil {
		return false, nil
	}
	consumed := decimal.Zero
	for _, l := range r.s.completedLines() {
		if l.InvoiceID != nil && *l.InvoiceID == id {
			consumed = consumed.Add(l.Consumed())
		}
	}
	open := inv.GrandTotal.Abs().Sub(consumed.Abs())
	if !valueobject.IsZeroAt(open, inv.Currency.StandardPrecision()) {
		return false, nil
	}
	inv.MarkPaid()
	return true, nil
}

type memPaymentStatus struct{ s *memStore }

func (r memPaymentStatus) MarkAllocatedIfFullyApplied(_ context.Context, id uuid.UUID) (bool, error) {
	p := r.s.payments[id]
	if p == nil {
		return false, nil
	}
	applied := decimal.Zero
	for _, l := range r.s.completedLines() {
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

type memDocuments struct{ s *memStore }

func (r memDocuments) Complete(ctx context.Context, doc Document) error {
	if r.s.completeDelay > 0 {
		select {
		case <-time.After(r.s.completeDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.s.completeErr != nil {
		return r.s.completeErr
	}
	r.s.seq++
	no := fmt.Sprintf("DOC-%04d", r.s.seq)
	var err error
	switch d := doc.(type) {
	case *Allocation:
		err = d.MarkCompleted(no, time.Now())
	case *Payment:
		err = d.MarkCompleted(no)
	case *Invoice:
		err = d.MarkCompleted(no)
	default:
		err = fmt.Errorf("unsupported document %T", doc)
	}
	if err != nil {
		return NewProcessFailedError(err.Error())
	}
	r.s.completed = append(r.s.completed, doc)
	return nil
}

// mockGateway is a testify mock of PaymentGateway
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Authorize(ctx context.Context, p *Payment) (*AuthorizationResult, error) {
	args := m.Called(ctx, p)
	if res := args.Get(0); res != nil {
		return res.(*AuthorizationResult), args.Error(1)
	}
	return nil, args.Error(1)
}

var (
	testClientID = uuid.MustParse("7a3c8a8e-0d5e-4b9f-9a57-3e2f6c1d0b11")
	testOrgID    = uuid.MustParse("1f0b6a2c-58d4-4c3e-8f0a-2b9d7e6c5a44")
)

func sessionCtx() context.Context {
	return shared.WithSessionContext(context.Background(), shared.SessionContext{
		ClientID:       testClientID,
		OrganizationID: testOrgID,
		UserID:         uuid.New(),
	})
}

func seedInvoice(s *memStore, total string) *Invoice {
	inv := &Invoice{
		ClientAggregateRoot: shared.NewClientAggregateRoot(testClientID, testOrgID),
		DocumentNo:          "INV-" + total,
		InvoiceType:         InvoiceTypeARInvoice,
		BusinessPartnerID:   uuid.New(),
		Currency:            valueobject.USD,
		GrandTotal:          dec(total),
		IsSOTrx:             true,
		DocStatus:           DocStatusCompleted,
		IsActive:            true,
	}
	s.invoices[inv.ID] = inv
	return inv
}

func seedPayment(s *memStore, amount string, created time.Time) *Payment {
	p := &Payment{
		ClientAggregateRoot: shared.NewClientAggregateRoot(testClientID, testOrgID),
		DocumentNo:          "PAY-" + amount,
		BusinessPartnerID:   uuid.New(),
		Currency:            valueobject.USD,
		PayAmount:           dec(amount),
		IsReceipt:           true,
		TenderKind:          TenderCash,
		DateTrx:             created,
		DocStatus:           DocStatusCompleted,
		IsActive:            true,
	}
	p.CreatedAt = created
	s.payments[p.ID] = p
	return p
}
