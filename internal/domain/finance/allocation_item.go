package finance

import (
	"time"

	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebitKind distinguishes invoice debits from order debits
type DebitKind string

const (
	DebitInvoice DebitKind = "INVOICE"
	DebitOrder   DebitKind = "ORDER"
)

// DebitItem is a read-only snapshot of an open document to be settled.
// Amounts are already expressed in the allocation currency.
type DebitItem struct {
	ID                uuid.UUID
	Kind              DebitKind
	BusinessPartnerID uuid.UUID
	OrderID           *uuid.UUID // order behind an invoice debit
	InvoiceID         *uuid.UUID // invoice behind an order debit
	Currency          valueobject.Currency
	OpenAmount        decimal.Decimal
	AppliedAmount     decimal.Decimal
	DiscountAmount    decimal.Decimal
	WriteOffAmount    decimal.Decimal
	Date              time.Time
}

// OverUnderAmount is open - applied - discount - writeOff
func (d DebitItem) OverUnderAmount() decimal.Decimal {
	return d.OpenAmount.Sub(d.AppliedAmount).Sub(d.DiscountAmount).Sub(d.WriteOffAmount)
}

// CreditKind distinguishes payments from credit memo invoices
type CreditKind string

const (
	CreditPayment    CreditKind = "PAYMENT"
	CreditCreditMemo CreditKind = "CREDIT_MEMO"
)

// CreditItem is a read-only snapshot of money available to apply, signed and
// expressed in the allocation currency.
type CreditItem struct {
	ID                uuid.UUID
	Kind              CreditKind
	BusinessPartnerID uuid.UUID
	Currency          valueobject.Currency
	Amount            decimal.Decimal
	TenderKind        TenderKind
	CreatedAt         time.Time
}
