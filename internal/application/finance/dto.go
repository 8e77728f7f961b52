package finance

import (
	"time"

	"github.com/erp/allocation/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocateRequest is one interactive allocation of selected payments against selected invoices.
// Amounts are signed as the allocation workflow displays them: receivables positive, payables negative.
type AllocateRequest struct {
	BusinessPartnerID uuid.UUID          `json:"business_partner_id" yaml:"business_partner_id" validate:"required"`
	Currency          string             `json:"currency" yaml:"currency" validate:"required,len=3,alpha"`
	OrganizationID    uuid.UUID          `json:"organization_id" yaml:"organization_id" validate:"required"`
	Date              time.Time          `json:"date" yaml:"date" validate:"required"`
	IsMultiCurrency   bool               `json:"is_multi_currency" yaml:"is_multi_currency"`
	ChargeID          *uuid.UUID         `json:"charge_id,omitempty" yaml:"charge_id,omitempty"`
	ConversionType    string             `json:"conversion_type,omitempty" yaml:"conversion_type,omitempty" validate:"max=10"`
	Description       string             `json:"description,omitempty" yaml:"description,omitempty" validate:"max=255"`
	TotalDifference   decimal.Decimal    `json:"total_difference" yaml:"total_difference"`
	PaymentSelections []PaymentSelection `json:"payment_selections" yaml:"payment_selections" validate:"dive"`
	InvoiceSelections []InvoiceSelection `json:"invoice_selections" yaml:"invoice_selections" validate:"dive"`
}

// PaymentSelection is a payment picked for allocation
type PaymentSelection struct {
	ID              uuid.UUID       `json:"id" yaml:"id" validate:"required"`
	AppliedAmount   decimal.Decimal `json:"applied_amount" yaml:"applied_amount"`
	TransactionDate time.Time       `json:"transaction_date" yaml:"transaction_date"`
}

// InvoiceSelection is an invoice picked for allocation
type InvoiceSelection struct {
	ID             uuid.UUID       `json:"id" yaml:"id" validate:"required"`
	AppliedAmount  decimal.Decimal `json:"applied_amount" yaml:"applied_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount" yaml:"discount_amount"`
	WriteOffAmount decimal.Decimal `json:"write_off_amount" yaml:"write_off_amount"`
	OpenAmount     decimal.Decimal `json:"open_amount" yaml:"open_amount"`
	DateInvoiced   time.Time       `json:"date_invoiced" yaml:"date_invoiced"`
}

// AllocateResult reports a completed allocation
type AllocateResult struct {
	Message           string          `json:"message"`
	AllocationID      uuid.UUID       `json:"allocation_id"`
	DocumentNo        string          `json:"document_no"`
	LineCount         int             `json:"line_count"`
	Imbalance         decimal.Decimal `json:"imbalance"`
	PaidInvoices      []uuid.UUID     `json:"paid_invoices"`
	AllocatedPayments []uuid.UUID     `json:"allocated_payments"`
}

// ReconcileOrderRequest settles one point-of-sale order against its payments
type ReconcileOrderRequest struct {
	OrderID         uuid.UUID `json:"order_id" validate:"required"`
	PointOfSaleID   uuid.UUID `json:"pos_id"`
	ConversionType  string    `json:"conversion_type" validate:"max=10"`
	AllowOpenRefund bool      `json:"allow_open_refund"`
}

// ReconcileOrderResult reports the order after reconciliation
type ReconcileOrderResult struct {
	Message             string          `json:"message"`
	OrderID             uuid.UUID       `json:"order_id"`
	ReconciliationState string          `json:"reconciliation_state"`
	OpenAmount          decimal.Decimal `json:"open_amount"`
	WrittenOff          decimal.Decimal `json:"written_off"`
	AllocationID        *uuid.UUID      `json:"allocation_id,omitempty"`
	DocumentNo          string          `json:"document_no,omitempty"`
	CreditMemoIDs       []uuid.UUID     `json:"credit_memo_ids"`
	MissingConversions  []uuid.UUID     `json:"missing_conversions"`
	ProcessedReferences []uuid.UUID     `json:"processed_references"`
}

// AllocationView is the read model of an allocation document
type AllocationView struct {
	ID                uuid.UUID            `json:"id"`
	DocumentNo        string               `json:"document_no"`
	Status            string               `json:"status"`
	OrganizationID    uuid.UUID            `json:"organization_id"`
	BusinessPartnerID uuid.UUID            `json:"business_partner_id"`
	Currency          string               `json:"currency"`
	Date              time.Time            `json:"date"`
	Description       string               `json:"description,omitempty"`
	Balance           decimal.Decimal      `json:"balance"`
	CompletedAt       *time.Time           `json:"completed_at,omitempty"`
	Lines             []AllocationLineView `json:"lines"`
}

// AllocationLineView is the read model of an allocation line
type AllocationLineView struct {
	LineNo          int             `json:"line_no"`
	Kind            string          `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	WriteOffAmount  decimal.Decimal `json:"write_off_amount"`
	OverUnderAmount decimal.Decimal `json:"over_under_amount"`
	OrderID         *uuid.UUID      `json:"order_id,omitempty"`
	InvoiceID       *uuid.UUID      `json:"invoice_id,omitempty"`
	PaymentID       *uuid.UUID      `json:"payment_id,omitempty"`
	ChargeID        *uuid.UUID      `json:"charge_id,omitempty"`
}

// ToAllocationView converts a domain allocation into its read model
func ToAllocationView(a *finance.Allocation) AllocationView {
	view := AllocationView{
		ID:                a.ID,
		DocumentNo:        a.DocumentNo,
		Status:            a.Status.String(),
		OrganizationID:    a.OrganizationID,
		BusinessPartnerID: a.BusinessPartnerID,
		Currency:          a.Currency.String(),
		Date:              a.DateTrx,
		Description:       a.Description,
		Balance:           a.Balance(),
		CompletedAt:       a.CompletedAt,
		Lines:             make([]AllocationLineView, 0, len(a.Lines)),
	}
	for _, l := range a.Lines {
		view.Lines = append(view.Lines, AllocationLineView{
			LineNo:          l.LineNo,
			Kind:            string(l.Kind),
			Amount:          l.Amount,
			DiscountAmount:  l.DiscountAmount,
			WriteOffAmount:  l.WriteOffAmount,
			OverUnderAmount: l.OverUnderAmount,
			OrderID:         l.OrderID,
			InvoiceID:       l.InvoiceID,
			PaymentID:       l.PaymentID,
			ChargeID:        l.ChargeID,
		})
	}
	return view
}
