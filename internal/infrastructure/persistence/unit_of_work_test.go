package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/erp/allocation/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAllocation(t *testing.T, runner *GormTransactionRunner, inv *finance.Invoice, pay *finance.Payment, applied string) *finance.SessionOutcome {
	t.Helper()
	var outcome *finance.SessionOutcome
	err := runner.InTransaction(testCtx(), func(ctx context.Context, repos finance.Repositories) error {
		session := finance.NewAllocationSession(repos)
		alloc, err := session.Open(ctx, finance.AllocationHeaderSpec{
			OrganizationID: testOrgID,
			Currency:       valueobject.USD,
			Date:           testDay,
		})
		if err != nil {
			return err
		}
		_, err = session.Match(ctx, alloc, finance.MatchInput{
			Debits: []finance.DebitItem{{
				ID:            inv.ID,
				Kind:          finance.DebitInvoice,
				Currency:      inv.Currency,
				OpenAmount:    inv.GrandTotal,
				AppliedAmount: dec(applied),
			}},
			Credits: []finance.CreditItem{{ID: pay.ID, Kind: finance.CreditPayment, Currency: pay.Currency, Amount: pay.PayAmount}},
		})
		if err != nil {
			return err
		}
		outcome, err = session.Complete(ctx, alloc)
		return err
	})
	require.NoError(t, err)
	return outcome
}

func TestGormTransactionRunner_CompletesAllocation(t *testing.T) {
	db := setupAllocationTestDB(t)
	runner := NewGormTransactionRunner(db)

	inv := saveInvoice(t, db, "100", valueobject.USD)
	pay := savePayment(t, db, "100", valueobject.USD, finance.DocStatusCompleted)

	outcome := runAllocation(t, runner, inv, pay, "100")

	assert.Equal(t, "ALLOC-000001", outcome.Allocation.DocumentNo)
	assert.Contains(t, outcome.PaidInvoices, inv.ID)
	assert.Contains(t, outcome.AllocatedPayments, pay.ID)

	stored, err := NewGormAllocationRepository(db).FindByID(testCtx(), outcome.Allocation.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.DocStatusCompleted, stored.Status)

	storedInvoice, err := NewGormInvoiceRepository(db).FindByID(testCtx(), inv.ID)
	require.NoError(t, err)
	assert.True(t, storedInvoice.IsPaid)

	storedPayment, err := NewGormPaymentRepository(db).FindByID(testCtx(), pay.ID)
	require.NoError(t, err)
	assert.True(t, storedPayment.IsAllocated)
}

func TestGormTransactionRunner_PartialAllocationLeavesInvoiceOpen(t *testing.T) {
	db := setupAllocationTestDB(t)
	runner := NewGormTransactionRunner(db)

	inv := saveInvoice(t, db, "100", valueobject.USD)
	first := savePayment(t, db, "60", valueobject.USD, finance.DocStatusCompleted)
	second := savePayment(t, db, "40", valueobject.USD, finance.DocStatusCompleted)

	outcome := runAllocation(t, runner, inv, first, "60")
	assert.Empty(t, outcome.PaidInvoices)
	assert.Contains(t, outcome.AllocatedPayments, first.ID)

	outcome = runAllocation(t, runner, inv, second, "40")
	assert.Equal(t, "ALLOC-000002", outcome.Allocation.DocumentNo)
	assert.Contains(t, outcome.PaidInvoices, inv.ID)
}

func TestGormTransactionRunner_RollsBackOnError(t *testing.T) {
	db := setupAllocationTestDB(t)
	runner := NewGormTransactionRunner(db)
	boom := errors.New("boom")

	err := runner.InTransaction(testCtx(), func(ctx context.Context, repos finance.Repositories) error {
		session := finance.NewAllocationSession(repos)
		if _, err := session.Open(ctx, finance.AllocationHeaderSpec{
			OrganizationID: testOrgID,
			Currency:       valueobject.USD,
			Date:           testDay,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.AllocationHeaderModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGormRepositories_RateDecorator(t *testing.T) {
	db := setupAllocationTestDB(t)
	var wrapped finance.ConversionRateRepository
	repos := NewGormRepositories(db, WithRateDecorator(func(inner finance.ConversionRateRepository) finance.ConversionRateRepository {
		wrapped = inner
		return inner
	}))

	assert.NotNil(t, wrapped)
	assert.Same(t, wrapped, repos.ConversionRates())
	assert.NotNil(t, repos.Converter())
}
