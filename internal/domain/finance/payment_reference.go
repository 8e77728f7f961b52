package finance

import (
	"time"

	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentReference is a pending third-party charge or credit hold raised against an order
type PaymentReference struct {
	ID                uuid.UUID
	ClientID          uuid.UUID
	OrderID           uuid.UUID
	BusinessPartnerID uuid.UUID
	Currency          valueobject.Currency
	Amount            decimal.Decimal
	TenderKind        TenderKind
	IsReceipt         bool
	IsProcessed       bool
	ProcessedAt       *time.Time
	CreatedAt         time.Time
}

// MarkProcessed flags the reference as settled; calling it twice is harmless
func (r *PaymentReference) MarkProcessed(at time.Time) bool {
	if r.IsProcessed {
		return false
	}
	r.IsProcessed = true
	r.ProcessedAt = &at
	return true
}
