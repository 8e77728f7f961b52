package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/erp/allocation/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// completedLineRow is one allocation line of a completed header with the header
// columns needed to convert it
type completedLineRow struct {
	Amount         decimal.Decimal
	DiscountAmount decimal.Decimal
	WriteOffAmount decimal.Decimal
	Currency       string
	DateTrx        time.Time
	ClientID       uuid.UUID
	OrganizationID uuid.UUID
}

func (r completedLineRow) query(to valueobject.Currency) finance.ConversionQuery {
	return finance.ConversionQuery{
		From:           valueobject.Currency(r.Currency),
		To:             to,
		AsOf:           r.DateTrx,
		ClientID:       r.ClientID,
		OrganizationID: r.OrganizationID,
	}
}

// completedLines loads the lines of completed allocations where column equals id.
// Amounts are summed in Go: the sqlite driver hands SUM back as a float.
func completedLines(ctx context.Context, db *gorm.DB, column string, id uuid.UUID) ([]completedLineRow, error) {
	var rows []completedLineRow
	err := db.WithContext(ctx).
		Table("allocation_lines AS l").
		Select("l.amount, l.discount_amount, l.write_off_amount, h.currency, h.date_trx, h.client_id, h.organization_id").
		Joins("JOIN allocation_headers h ON h.id = l.allocation_id").
		Where("h.status = ?", finance.DocStatusCompleted.String()).
		Where(fmt.Sprintf("l.%s = ?", column), id).
		Scan(&rows).Error
	return rows, err
}

// GormInvoiceStatusStore recomputes invoice open amounts from completed allocation lines
type GormInvoiceStatusStore struct {
	db        *gorm.DB
	converter finance.CurrencyConverter
}

// NewGormInvoiceStatusStore creates a new GormInvoiceStatusStore
func NewGormInvoiceStatusStore(db *gorm.DB, converter finance.CurrencyConverter) *GormInvoiceStatusStore {
	return &GormInvoiceStatusStore{db: db, converter: converter}
}

// MarkPaidIfOpenIsZero flags the invoice paid when |grand total| minus everything
// consumed by completed lines rounds to zero at the invoice currency precision
func (s *GormInvoiceStatusStore) MarkPaidIfOpenIsZero(ctx context.Context, invoiceID uuid.UUID) (bool, error) {
	var invoice models.InvoiceModel
	if err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&invoice, "id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if invoice.IsPaid {
		return true, nil
	}

	rows, err := completedLines(ctx, s.db, "invoice_id", invoiceID)
	if err != nil {
		return false, err
	}
	currency := valueobject.Currency(invoice.Currency)
	consumed := decimal.Zero
	for _, row := range rows {
		amount := row.Amount.Add(row.DiscountAmount).Add(row.WriteOffAmount)
		converted, err := s.converter.Convert(ctx, amount, row.query(currency))
		if err != nil {
			return false, err
		}
		consumed = consumed.Add(converted.Amount())
	}

	open := invoice.GrandTotal.Abs().Sub(consumed.Abs())
	if !valueobject.IsZeroAt(open, currency.StandardPrecision()) {
		return false, nil
	}
	err = s.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("id = ?", invoiceID).
		Updates(map[string]any{"is_paid": true, "updated_at": time.Now()}).Error
	return err == nil, err
}

// GormPaymentStatusStore flags payments whose completed allocations cover them
type GormPaymentStatusStore struct {
	db        *gorm.DB
	converter finance.CurrencyConverter
}

// NewGormPaymentStatusStore creates a new GormPaymentStatusStore
func NewGormPaymentStatusStore(db *gorm.DB, converter finance.CurrencyConverter) *GormPaymentStatusStore {
	return &GormPaymentStatusStore{db: db, converter: converter}
}

// MarkAllocatedIfFullyApplied flags the payment allocated when the absolute sum of its
// completed line amounts equals its absolute pay amount
func (s *GormPaymentStatusStore) MarkAllocatedIfFullyApplied(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	var payment models.PaymentModel
	if err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if payment.IsAllocated {
		return true, nil
	}

	rows, err := completedLines(ctx, s.db, "payment_id", paymentID)
	if err != nil {
		return false, err
	}
	currency := valueobject.Currency(payment.Currency)
	applied := decimal.Zero
	for _, row := range rows {
		converted, err := s.converter.Convert(ctx, row.Amount, row.query(currency))
		if err != nil {
			return false, err
		}
		applied = applied.Add(converted.Amount())
	}

	if !applied.Abs().Equal(payment.PayAmount.Abs()) {
		return false, nil
	}
	err = s.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Where("id = ?", paymentID).
		Updates(map[string]any{"is_allocated": true, "updated_at": time.Now()}).Error
	return err == nil, err
}
