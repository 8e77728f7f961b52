package finance

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newReconcileService(repos *fakeRepos, locker OrderLocker, publisher *MockEventPublisher) (*OrderReconcileService, *fakeRunner) {
	runner := &fakeRunner{repos: repos}
	svc := NewOrderReconcileService(ServiceConfig{
		Reader:         repos,
		Transactions:   runner,
		EventPublisher: publisher,
		Locker:         locker,
	})
	svc.now = func() time.Time { return testDay }
	return svc, runner
}

func TestOrderReconcileService_FullyPaidOrder(t *testing.T) {
	repos := newFakeRepos()
	order := seedOrder(repos, "100")
	cash := seedOrderPayment(repos, order, "60", time.Minute)
	card := seedOrderPayment(repos, order, "40", 2*time.Minute)

	locker := new(MockOrderLocker)
	locker.On("WithOrderLock", mock.Anything, order.ID).Return(nil).Once()
	publisher := new(MockEventPublisher)
	publisher.On("Publish", mock.Anything, eventTypes(finance.EventTypeAllocationCompleted)).Return(nil).Once()

	svc, runner := newReconcileService(repos, locker, publisher)
	result, err := svc.ReconcileOrder(sessionCtx(), ReconcileOrderRequest{OrderID: order.ID})
	require.NoError(t, err)

	assert.Equal(t, order.ID, result.OrderID)
	assert.Equal(t, "AL", result.ReconciliationState)
	assert.True(t, result.OpenAmount.IsZero())
	assert.True(t, result.WrittenOff.IsZero())
	require.NotNil(t, result.AllocationID)
	assert.Contains(t, result.Message, result.DocumentNo)
	assert.Empty(t, result.MissingConversions)

	alloc := repos.allocations[*result.AllocationID]
	require.Len(t, alloc.Lines, 2)
	assert.Equal(t, cash.ID, *alloc.Lines[0].PaymentID)
	assert.Equal(t, card.ID, *alloc.Lines[1].PaymentID)
	assert.Equal(t, "Order SO-2001", alloc.Description)
	assert.True(t, cash.IsCompleted())
	assert.True(t, card.IsAllocated)

	assert.Equal(t, 1, runner.calls)
	locker.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestOrderReconcileService_WriteOff(t *testing.T) {
	tests := []struct {
		name            string
		allowOpenRefund bool
		wantState       string
		wantWrittenOff  string
		wantOpen        string
	}{
		{name: "residual written off", allowOpenRefund: false, wantState: "WO", wantWrittenOff: "20", wantOpen: "0"},
		{name: "open refund keeps residual", allowOpenRefund: true, wantState: "AL", wantWrittenOff: "0", wantOpen: "20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos := newFakeRepos()
			order := seedOrder(repos, "100")
			seedOrderPayment(repos, order, "80", time.Minute)
			publisher := new(MockEventPublisher)
			publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

			svc, _ := newReconcileService(repos, nil, publisher)
			result, err := svc.ReconcileOrder(sessionCtx(), ReconcileOrderRequest{OrderID: order.ID, AllowOpenRefund: tt.allowOpenRefund})
			require.NoError(t, err)

			assert.Equal(t, tt.wantState, result.ReconciliationState)
			assert.True(t, result.WrittenOff.Equal(dec(tt.wantWrittenOff)), "written off %s", result.WrittenOff)
			assert.True(t, result.OpenAmount.Equal(dec(tt.wantOpen)), "open %s", result.OpenAmount)
		})
	}
}

func TestOrderReconcileService_MissingConversionCountsAsZero(t *testing.T) {
	repos := newFakeRepos()
	order := seedOrder(repos, "100")
	seedOrderPayment(repos, order, "100", time.Minute)
	euro := seedOrderPayment(repos, order, "20", 2*time.Minute)
	euro.Currency = valueobject.EUR
	publisher := new(MockEventPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	svc, _ := newReconcileService(repos, nil, publisher)
	result, err := svc.ReconcileOrder(sessionCtx(), ReconcileOrderRequest{OrderID: order.ID})
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{euro.ID}, result.MissingConversions)
	assert.True(t, result.OpenAmount.IsZero())
	assert.True(t, result.WrittenOff.IsZero())
}

func TestOrderReconcileService_Errors(t *testing.T) {
	t.Run("unknown order", func(t *testing.T) {
		svc, _ := newReconcileService(newFakeRepos(), nil, new(MockEventPublisher))
		_, err := svc.ReconcileOrder(sessionCtx(), ReconcileOrderRequest{OrderID: uuid.New()})
		assert.ErrorIs(t, err, finance.ErrNotFound)
	})

	t.Run("inactive order", func(t *testing.T) {
		repos := newFakeRepos()
		order := seedOrder(repos, "100")
		order.IsActive = false
		svc, _ := newReconcileService(repos, nil, new(MockEventPublisher))
		_, err := svc.ReconcileOrder(sessionCtx(), ReconcileOrderRequest{OrderID: order.ID})
		assert.ErrorIs(t, err, finance.ErrNotActive)
	})

	t.Run("missing order id", func(t *testing.T) {
		svc, runner := newReconcileService(newFakeRepos(), nil, new(MockEventPublisher))
		_, err := svc.ReconcileOrder(sessionCtx(), ReconcileOrderRequest{})
		assert.ErrorIs(t, err, finance.ErrValidation)
		assert.Zero(t, runner.calls)
	})

	t.Run("lock not acquired", func(t *testing.T) {
		repos := newFakeRepos()
		order := seedOrder(repos, "100")
		locker := new(MockOrderLocker)
		locker.On("WithOrderLock", mock.Anything, order.ID).Return(errors.New("order is being reconciled")).Once()

		svc, runner := newReconcileService(repos, locker, new(MockEventPublisher))
		_, err := svc.ReconcileOrder(sessionCtx(), ReconcileOrderRequest{OrderID: order.ID})
		assert.EqualError(t, err, "order is being reconciled")
		assert.Zero(t, runner.calls)
		assert.Equal(t, finance.ReconciliationNotReconciled, order.ReconciliationState)
	})
}
