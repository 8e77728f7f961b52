package persistence

import (
	"context"
	"testing"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormAllocationRepository_SaveAndFind(t *testing.T) {
	db := setupAllocationTestDB(t)
	repo := NewGormAllocationRepository(db)
	ctx := testCtx()

	inv := saveInvoice(t, db, "100", valueobject.USD)
	pay := savePayment(t, db, "100", valueobject.USD, finance.DocStatusCompleted)

	alloc := newDraftAllocation(t, valueobject.USD)
	require.NoError(t, alloc.AddLines(matchedLine(inv, pay, "60"), matchedLine(inv, pay, "40")))
	require.NoError(t, repo.Save(ctx, alloc))

	t.Run("loads header with lines in line order", func(t *testing.T) {
		found, err := repo.FindByID(ctx, alloc.ID)
		require.NoError(t, err)
		require.NotNil(t, found)

		assert.Equal(t, finance.DocStatusDraft, found.Status)
		assert.Equal(t, valueobject.USD, found.Currency)
		require.Len(t, found.Lines, 2)
		assert.Equal(t, 10, found.Lines[0].LineNo)
		assert.Equal(t, 20, found.Lines[1].LineNo)
		assert.True(t, found.Lines[0].Amount.Equal(dec("60")))
		assert.Equal(t, inv.ID, *found.Lines[1].InvoiceID)
	})

	t.Run("saving again does not duplicate lines", func(t *testing.T) {
		require.NoError(t, alloc.MarkCompleted("ALLOC-000001", testDay))
		require.NoError(t, repo.Save(ctx, alloc))

		found, err := repo.FindByID(ctx, alloc.ID)
		require.NoError(t, err)
		assert.Equal(t, finance.DocStatusCompleted, found.Status)
		assert.Equal(t, "ALLOC-000001", found.DocumentNo)
		assert.Len(t, found.Lines, 2)
	})

	t.Run("returns nil for unknown id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("hides allocations of other clients", func(t *testing.T) {
		found, err := repo.FindByID(otherClientCtx(), alloc.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("requires a session", func(t *testing.T) {
		_, err := repo.FindByID(context.Background(), alloc.ID)
		assert.ErrorIs(t, err, ErrClientRequired)
	})
}

func TestGormAllocationRepository_FindByOrder(t *testing.T) {
	db := setupAllocationTestDB(t)
	repo := NewGormAllocationRepository(db)
	ctx := testCtx()

	orderID := uuid.New()
	withOrder := newDraftAllocation(t, valueobject.USD)
	require.NoError(t, withOrder.AddLines(finance.AllocationLine{
		ID:      uuid.New(),
		Kind:    finance.LineWriteOff,
		OrderID: &orderID,
	}))
	require.NoError(t, repo.Save(ctx, withOrder))

	unrelated := newDraftAllocation(t, valueobject.USD)
	require.NoError(t, unrelated.AddLines(finance.AllocationLine{ID: uuid.New(), Kind: finance.LineCredit, Amount: dec("5")}))
	require.NoError(t, repo.Save(ctx, unrelated))

	found, err := repo.FindByOrder(ctx, orderID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, withOrder.ID, found[0].ID)
	assert.True(t, found[0].HasWriteOffFor(orderID))

	none, err := repo.FindByOrder(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}
