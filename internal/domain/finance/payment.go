package finance

import (
	"fmt"
	"time"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenderKind is the payment instrument kind
type TenderKind string

const (
	TenderCash        TenderKind = "CASH"
	TenderCreditCard  TenderKind = "CREDIT_CARD"
	TenderDebitCard   TenderKind = "DEBIT_CARD"
	TenderCheck       TenderKind = "CHECK"
	TenderDirectDebit TenderKind = "DIRECT_DEBIT"
	TenderCreditMemo  TenderKind = "CREDIT_MEMO"
)

// IsValid checks if the tender kind is known
func (k TenderKind) IsValid() bool {
	switch k {
	case TenderCash, TenderCreditCard, TenderDebitCard, TenderCheck, TenderDirectDebit, TenderCreditMemo:
		return true
	}
	return false
}

// String returns the string representation of TenderKind
func (k TenderKind) String() string {
	return string(k)
}

// Payment is the typed snapshot of a payment document
type Payment struct {
	shared.ClientAggregateRoot
	DocumentNo        string
	BusinessPartnerID uuid.UUID
	OrderID           *uuid.UUID
	InvoiceID         *uuid.UUID // credit memo spawned from this payment, if any
	ChargeID          *uuid.UUID // point-of-sale internal charge row
	Currency          valueobject.Currency
	ConversionType    string
	PayAmount         decimal.Decimal
	DiscountAmount    decimal.Decimal
	WriteOffAmount    decimal.Decimal
	OverUnderAmount   decimal.Decimal
	IsReceipt         bool
	IsPrepayment      bool
	IsAllocated       bool
	IsOnline          bool
	IsApproved        bool
	AuthorizationCode string
	TenderKind        TenderKind
	DateTrx           time.Time
	DocStatus         DocStatus
	IsActive          bool
}

// NewPayment creates a draft payment
func NewPayment(clientID, orgID, partnerID uuid.UUID, amount valueobject.Money, tender TenderKind, isReceipt bool, dateTrx time.Time) (*Payment, error) {
	if partnerID == uuid.Nil {
		return nil, NewValidationError("business_partner_id", "is required")
	}
	if !tender.IsValid() {
		return nil, NewValidationError("tender_kind", fmt.Sprintf("unknown tender kind %q", tender))
	}
	return &Payment{
		ClientAggregateRoot: shared.NewClientAggregateRoot(clientID, orgID),
		BusinessPartnerID:   partnerID,
		Currency:            amount.Currency(),
		PayAmount:           amount.Amount(),
		TenderKind:          tender,
		IsReceipt:           isReceipt,
		DateTrx:             dateTrx,
		DocStatus:           DocStatusDraft,
		IsActive:            true,
	}, nil
}

// DocumentType implements Document
func (p *Payment) DocumentType() string { return "payment" }

// GetDocumentNo implements Document
func (p *Payment) GetDocumentNo() string { return p.DocumentNo }

// GetDocStatus implements Document
func (p *Payment) GetDocStatus() DocStatus { return p.DocStatus }

// Amount returns the pay amount as Money
func (p *Payment) Amount() valueobject.Money {
	m, _ := valueobject.NewMoney(p.PayAmount, p.Currency)
	return m
}

// IsDraft returns true while the payment has not been completed
func (p *Payment) IsDraft() bool {
	return p.DocStatus == DocStatusDraft
}

// IsCompleted returns true once the payment is posted
func (p *Payment) IsCompleted() bool {
	return p.DocStatus == DocStatusCompleted
}

// IsCreditMemoTender reports whether the payment was tendered with a credit memo
func (p *Payment) IsCreditMemoTender() bool {
	return p.TenderKind == TenderCreditMemo
}

// IsPOSInternal reports rows that are settled through a credit memo invoice or a charge
// rather than as cash against the order.
func (p *Payment) IsPOSInternal() bool {
	return p.IsCreditMemoTender() || p.ChargeID != nil
}

// PrepareForOrderCompletion flags the payment as a prepayment against its order and clears
// any over/under amount so the order allocation owns the residual.
func (p *Payment) PrepareForOrderCompletion() error {
	if !p.IsDraft() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("payment %s is %s, expected draft", p.DocumentNo, p.DocStatus))
	}
	p.IsPrepayment = true
	p.OverUnderAmount = decimal.Zero
	p.Touch()
	return nil
}

// MarkCompleted transitions the payment to Completed
func (p *Payment) MarkCompleted(documentNo string) error {
	if !p.DocStatus.CanComplete() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("cannot complete payment in %s status", p.DocStatus))
	}
	if p.DocumentNo == "" {
		p.DocumentNo = documentNo
	}
	p.DocStatus = DocStatusCompleted
	p.Touch()
	return nil
}

// TransferToCreditMemo moves the pay amount onto the spawned credit memo invoice and
// zeroes the payment. It returns the transferred amount.
func (p *Payment) TransferToCreditMemo(invoiceID uuid.UUID) (decimal.Decimal, error) {
	if !p.IsCreditMemoTender() {
		return decimal.Zero, shared.NewDomainError(shared.CodeInvalidState, "payment is not tendered by credit memo")
	}
	if p.InvoiceID != nil {
		return decimal.Zero, shared.NewDomainError(shared.CodeInvalidState, "credit memo already issued for payment")
	}
	transferred := p.PayAmount
	p.InvoiceID = &invoiceID
	p.PayAmount = decimal.Zero
	p.Touch()
	return transferred, nil
}

// Multiplier returns the sign applied to this payment when it reduces an order's open amount.
// Receipts reduce and disbursements increase a sales order; a return order flips both.
func (p *Payment) Multiplier(isReturnOrder bool) decimal.Decimal {
	m := decimal.NewFromInt(1)
	if !p.IsReceipt {
		m = m.Neg()
	}
	if isReturnOrder {
		m = m.Neg()
	}
	return m
}

// RequiresOnlineAuthorization reports an online tender that has not been approved yet
func (p *Payment) RequiresOnlineAuthorization() bool {
	return p.IsOnline && !p.IsApproved
}

// Approve records a successful gateway authorization
func (p *Payment) Approve(authorizationCode string) {
	p.IsApproved = true
	p.AuthorizationCode = authorizationCode
	p.Touch()
}
