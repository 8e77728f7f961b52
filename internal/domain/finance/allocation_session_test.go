package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func openSession(t *testing.T, store *memStore, opts ...AllocationSessionOption) (*AllocationSession, *Allocation) {
	t.Helper()
	session := NewAllocationSession(store, opts...)
	alloc, err := session.Open(sessionCtx(), AllocationHeaderSpec{
		OrganizationID: testOrgID,
		Currency:       valueobject.USD,
		Date:           time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC),
		Description:    "manual allocation",
	})
	require.NoError(t, err)
	return session, alloc
}

func debitFor(inv *Invoice, applied string) DebitItem {
	return DebitItem{
		ID:            inv.ID,
		Kind:          DebitInvoice,
		Currency:      inv.Currency,
		OpenAmount:    inv.GrandTotal,
		AppliedAmount: dec(applied),
	}
}

func creditFor(p *Payment) CreditItem {
	return CreditItem{ID: p.ID, Kind: CreditPayment, Currency: p.Currency, Amount: p.PayAmount}
}

func TestAllocationSession_Open(t *testing.T) {
	t.Run("persists a draft header", func(t *testing.T) {
		store := newMemStore()
		_, alloc := openSession(t, store)

		assert.Equal(t, DocStatusDraft, alloc.Status)
		assert.Equal(t, testClientID, alloc.ClientID)
		assert.Contains(t, store.allocations, alloc.ID)
	})

	t.Run("requires a session context", func(t *testing.T) {
		_, err := NewAllocationSession(newMemStore()).Open(context.Background(), AllocationHeaderSpec{
			OrganizationID: testOrgID, Currency: valueobject.USD, Date: time.Now(),
		})
		assert.Error(t, err)
	})

	t.Run("requires an organization", func(t *testing.T) {
		_, err := NewAllocationSession(newMemStore()).Open(sessionCtx(), AllocationHeaderSpec{
			Currency: valueobject.USD, Date: time.Now(),
		})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestAllocationSession_CompleteMarksInvoicePaidAndPaymentAllocated(t *testing.T) {
	store := newMemStore()
	inv := seedInvoice(store, "100")
	pay := seedPayment(store, "100", time.Now())

	session, alloc := openSession(t, store)
	_, err := session.Match(sessionCtx(), alloc, MatchInput{Debits: []DebitItem{debitFor(inv, "100")}, Credits: []CreditItem{creditFor(pay)}})
	require.NoError(t, err)

	outcome, err := session.Complete(sessionCtx(), alloc)
	require.NoError(t, err)

	assert.Equal(t, DocStatusCompleted, alloc.Status)
	assert.NotEmpty(t, alloc.DocumentNo)
	assert.True(t, outcome.Imbalance.IsZero())
	assert.Equal(t, []uuid.UUID{inv.ID}, outcome.PaidInvoices)
	assert.Equal(t, []uuid.UUID{pay.ID}, outcome.AllocatedPayments)
	assert.True(t, inv.IsPaid)
	assert.True(t, pay.IsAllocated)
}

func TestAllocationSession_PartialPaymentLeavesInvoiceOpen(t *testing.T) {
	store := newMemStore()
	inv := seedInvoice(store, "100")
	pay := seedPayment(store, "60", time.Now())

	session, alloc := openSession(t, store)
	_, err := session.Match(sessionCtx(), alloc, MatchInput{Debits: []DebitItem{debitFor(inv, "60")}, Credits: []CreditItem{creditFor(pay)}})
	require.NoError(t, err)

	outcome, err := session.Complete(sessionCtx(), alloc)
	require.NoError(t, err)
	assert.Empty(t, outcome.PaidInvoices)
	assert.False(t, inv.IsPaid)
	assert.True(t, pay.IsAllocated)
}

func TestAllocationSession_ProcessFailedKeepsEngineMessage(t *testing.T) {
	store := newMemStore()
	inv := seedInvoice(store, "100")
	pay := seedPayment(store, "100", time.Now())
	store.completeErr = errors.New("Period Closed")

	session, alloc := openSession(t, store)
	_, err := session.Match(sessionCtx(), alloc, MatchInput{Debits: []DebitItem{debitFor(inv, "100")}, Credits: []CreditItem{creditFor(pay)}})
	require.NoError(t, err)

	_, err = session.Complete(sessionCtx(), alloc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessFailed)
	assert.Equal(t, "Period Closed", err.Error())
	assert.False(t, inv.IsPaid)
}

func TestAllocationSession_CollaboratorTimeout(t *testing.T) {
	store := newMemStore()
	inv := seedInvoice(store, "100")
	pay := seedPayment(store, "100", time.Now())
	store.completeDelay = time.Second

	session, alloc := openSession(t, store, WithCollaboratorTimeout(20*time.Millisecond))
	_, err := session.Match(sessionCtx(), alloc, MatchInput{Debits: []DebitItem{debitFor(inv, "100")}, Credits: []CreditItem{creditFor(pay)}})
	require.NoError(t, err)

	_, err = session.Complete(sessionCtx(), alloc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, DocStatusDraft, alloc.Status)
	assert.False(t, inv.IsPaid)
}

func TestAllocationSession_ImbalanceIsObservedNotFatal(t *testing.T) {
	store := newMemStore()
	inv := seedInvoice(store, "100")
	pay := seedPayment(store, "150", time.Now())

	var observed []*AllocationImbalanceDetectedEvent
	session, alloc := openSession(t, store, WithImbalanceObserver(func(_ context.Context, evt *AllocationImbalanceDetectedEvent) {
		observed = append(observed, evt)
	}))
	_, err := session.Match(sessionCtx(), alloc, MatchInput{Debits: []DebitItem{debitFor(inv, "100")}, Credits: []CreditItem{creditFor(pay)}})
	require.NoError(t, err)

	outcome, err := session.Complete(sessionCtx(), alloc)
	require.NoError(t, err)

	assert.True(t, outcome.Imbalance.Equal(dec("-50")))
	require.Len(t, observed, 1)
	assert.True(t, observed[0].Imbalance.Equal(dec("-50")))
	assert.Equal(t, alloc.DocumentNo, observed[0].DocumentNo)
	assert.Equal(t, DocStatusCompleted, alloc.Status)

	types := make([]string, 0)
	for _, e := range alloc.GetDomainEvents() {
		types = append(types, e.EventType())
	}
	assert.Equal(t, []string{EventTypeAllocationCompleted, EventTypeAllocationImbalanceDetected}, types)
}

func TestAllocationSession_StrictBalanceRejects(t *testing.T) {
	store := newMemStore()
	inv := seedInvoice(store, "100")
	pay := seedPayment(store, "150", time.Now())

	session, alloc := openSession(t, store, WithStrictBalance(true))
	_, err := session.Match(sessionCtx(), alloc, MatchInput{Debits: []DebitItem{debitFor(inv, "100")}, Credits: []CreditItem{creditFor(pay)}})
	require.NoError(t, err)

	_, err = session.Complete(sessionCtx(), alloc)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, DocStatusDraft, alloc.Status)
}

func TestAllocationSession_OnlinePaymentAuthorization(t *testing.T) {
	setup := func(t *testing.T, gw PaymentGateway) (*AllocationSession, *Allocation, *Payment) {
		store := newMemStore()
		inv := seedInvoice(store, "100")
		pay := seedPayment(store, "100", time.Now())
		pay.IsOnline = true
		pay.TenderKind = TenderCreditCard

		session, alloc := openSession(t, store, WithPaymentGateway(gw), WithCollaboratorTimeout(time.Second))
		_, err := session.Match(sessionCtx(), alloc, MatchInput{Debits: []DebitItem{debitFor(inv, "100")}, Credits: []CreditItem{creditFor(pay)}})
		require.NoError(t, err)
		return session, alloc, pay
	}

	t.Run("approved payment records the authorization code", func(t *testing.T) {
		gw := new(mockGateway)
		session, alloc, pay := setup(t, gw)
		gw.On("Authorize", mock.Anything, pay).Return(&AuthorizationResult{Approved: true, AuthorizationCode: "AUTH-1"}, nil).Once()

		_, err := session.Complete(sessionCtx(), alloc)
		require.NoError(t, err)
		assert.True(t, pay.IsApproved)
		assert.Equal(t, "AUTH-1", pay.AuthorizationCode)
		gw.AssertExpectations(t)
	})

	t.Run("declined payment fails the session", func(t *testing.T) {
		gw := new(mockGateway)
		session, alloc, pay := setup(t, gw)
		gw.On("Authorize", mock.Anything, pay).Return(&AuthorizationResult{Approved: false, DeclineReason: "insufficient funds"}, nil).Once()

		_, err := session.Complete(sessionCtx(), alloc)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrPaymentDeclined)
		assert.Contains(t, err.Error(), "insufficient funds")
		assert.False(t, pay.IsAllocated)
	})

	t.Run("gateway error fails the session", func(t *testing.T) {
		gw := new(mockGateway)
		session, alloc, pay := setup(t, gw)
		gw.On("Authorize", mock.Anything, pay).Return(nil, context.DeadlineExceeded).Once()

		_, err := session.Complete(sessionCtx(), alloc)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("already approved payment skips the gateway", func(t *testing.T) {
		gw := new(mockGateway)
		session, alloc, pay := setup(t, gw)
		pay.IsApproved = true

		_, err := session.Complete(sessionCtx(), alloc)
		require.NoError(t, err)
		gw.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
	})
}

func TestAllocationSession_NoLinesAfterCompletion(t *testing.T) {
	store := newMemStore()
	inv := seedInvoice(store, "100")
	pay := seedPayment(store, "100", time.Now())

	session, alloc := openSession(t, store)
	_, err := session.Match(sessionCtx(), alloc, MatchInput{Debits: []DebitItem{debitFor(inv, "100")}, Credits: []CreditItem{creditFor(pay)}})
	require.NoError(t, err)
	_, err = session.Complete(sessionCtx(), alloc)
	require.NoError(t, err)

	err = session.AddLines(alloc, NewCreditLine(creditFor(pay), dec("1")))
	assert.Error(t, err)
}
