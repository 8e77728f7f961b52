package finance

import (
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice document types
const (
	InvoiceTypeARInvoice    = "ARI"
	InvoiceTypeARCreditMemo = "ARC"
	InvoiceTypeAPInvoice    = "API"
	InvoiceTypeAPCreditMemo = "APC"
)

// Invoice is the typed snapshot of an invoice document
type Invoice struct {
	shared.ClientAggregateRoot
	DocumentNo        string
	InvoiceType       string
	BusinessPartnerID uuid.UUID
	OrderID           *uuid.UUID
	SourcePaymentID   *uuid.UUID
	Currency          valueobject.Currency
	GrandTotal        decimal.Decimal
	IsSOTrx           bool
	IsPaid            bool
	DateInvoiced      time.Time
	DocStatus         DocStatus
	IsActive          bool
}

// DocumentType implements Document
func (i *Invoice) DocumentType() string { return "invoice" }

// GetDocumentNo implements Document
func (i *Invoice) GetDocumentNo() string { return i.DocumentNo }

// GetDocStatus implements Document
func (i *Invoice) GetDocStatus() DocStatus { return i.DocStatus }

// IsCreditMemo reports AR/AP credit memos
func (i *Invoice) IsCreditMemo() bool {
	return i.InvoiceType == InvoiceTypeARCreditMemo || i.InvoiceType == InvoiceTypeAPCreditMemo
}

// SignedGrandTotal returns the grand total signed from the receivable point of view:
// AR invoices positive, AR credit memos negative, and the reverse for AP.
func (i *Invoice) SignedGrandTotal() decimal.Decimal {
	total := i.GrandTotal
	if i.IsCreditMemo() {
		total = total.Neg()
	}
	if !i.IsSOTrx {
		total = total.Neg()
	}
	return total
}

// MarkPaid flags the invoice as fully settled
func (i *Invoice) MarkPaid() {
	i.IsPaid = true
	i.Touch()
}

// MarkCompleted transitions the invoice to Completed
func (i *Invoice) MarkCompleted(documentNo string) error {
	if !i.DocStatus.CanComplete() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("cannot complete invoice in %s status", i.DocStatus))
	}
	if i.DocumentNo == "" {
		i.DocumentNo = documentNo
	}
	i.DocStatus = DocStatusCompleted
	i.Touch()
	return nil
}

// NewCreditMemoFromPayment builds the AR credit memo a credit-memo tender is settled through.
// The memo carries the payment's full amount, partner, order and currency.
func NewCreditMemoFromPayment(p *Payment) (*Invoice, error) {
	if !p.IsCreditMemoTender() {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "payment is not tendered by credit memo")
	}
	if p.PayAmount.IsZero() {
		return nil, NewValidationError("pay_amount", "credit memo tender has no amount")
	}
	sourceID := p.ID
	return &Invoice{
		ClientAggregateRoot: shared.NewClientAggregateRoot(p.ClientID, p.OrganizationID),
		InvoiceType:         InvoiceTypeARCreditMemo,
		BusinessPartnerID:   p.BusinessPartnerID,
		OrderID:             p.OrderID,
		SourcePaymentID:     &sourceID,
		Currency:            p.Currency,
		GrandTotal:          p.PayAmount.Abs(),
		IsSOTrx:             true,
		DateInvoiced:        p.DateTrx,
		DocStatus:           DocStatusDraft,
		IsActive:            true,
	}, nil
}
