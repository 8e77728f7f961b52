package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/erp/allocation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	testClientID = uuid.MustParse("4b1d9e2a-6c0f-4a7e-9d3b-8e5f2a1c7b90")
	testOrgID    = uuid.MustParse("9c2e4f6a-1b3d-4e5f-8a7b-0c9d1e2f3a4b")
	testDay      = time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
)

func setupAllocationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func testCtx() context.Context {
	return shared.WithSessionContext(context.Background(), shared.SessionContext{
		ClientID:       testClientID,
		OrganizationID: testOrgID,
		UserID:         uuid.New(),
	})
}

func otherClientCtx() context.Context {
	return shared.WithSessionContext(context.Background(), shared.SessionContext{
		ClientID:       uuid.New(),
		OrganizationID: testOrgID,
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func saveInvoice(t *testing.T, db *gorm.DB, total string, currency valueobject.Currency) *finance.Invoice {
	t.Helper()
	inv := &finance.Invoice{
		ClientAggregateRoot: shared.NewClientAggregateRoot(testClientID, testOrgID),
		DocumentNo:          "INV-" + total,
		InvoiceType:         finance.InvoiceTypeARInvoice,
		BusinessPartnerID:   uuid.New(),
		Currency:            currency,
		GrandTotal:          dec(total),
		IsSOTrx:             true,
		DateInvoiced:        testDay,
		DocStatus:           finance.DocStatusCompleted,
		IsActive:            true,
	}
	require.NoError(t, NewGormInvoiceRepository(db).Save(context.Background(), inv))
	return inv
}

func savePayment(t *testing.T, db *gorm.DB, amt string, currency valueobject.Currency, status finance.DocStatus) *finance.Payment {
	t.Helper()
	p := &finance.Payment{
		ClientAggregateRoot: shared.NewClientAggregateRoot(testClientID, testOrgID),
		BusinessPartnerID:   uuid.New(),
		Currency:            currency,
		PayAmount:           dec(amt),
		IsReceipt:           true,
		TenderKind:          finance.TenderCash,
		DateTrx:             testDay,
		DocStatus:           status,
		IsActive:            true,
	}
	if status == finance.DocStatusCompleted {
		p.DocumentNo = "PAY-" + amt
	}
	require.NoError(t, NewGormPaymentRepository(db).Save(context.Background(), p))
	return p
}

func saveRate(t *testing.T, db *gorm.DB, rate *finance.ConversionRate) {
	t.Helper()
	require.NoError(t, NewGormConversionRateRepository(db).Save(context.Background(), rate))
}

func newDraftAllocation(t *testing.T, currency valueobject.Currency) *finance.Allocation {
	t.Helper()
	sc, _ := shared.SessionFromContext(testCtx())
	alloc, err := finance.NewAllocation(sc, testOrgID, uuid.New(), currency, testDay, "test allocation")
	require.NoError(t, err)
	return alloc
}

func matchedLine(inv *finance.Invoice, p *finance.Payment, amt string) finance.AllocationLine {
	return finance.AllocationLine{
		ID:        uuid.New(),
		Kind:      finance.LineMatched,
		Amount:    dec(amt),
		InvoiceID: &inv.ID,
		PaymentID: &p.ID,
	}
}
