package finance

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineKind classifies an allocation line by what it settles
type LineKind string

const (
	LineMatched  LineKind = "MATCHED"   // debit settled by a credit
	LineDebit    LineKind = "DEBIT"     // debit remainder with no credit
	LineCredit   LineKind = "CREDIT"    // credit leftover with no debit
	LineCharge   LineKind = "CHARGE"    // residual absorbed by a charge
	LineWriteOff LineKind = "WRITE_OFF" // order residual forgiven
)

// IsValid checks if the kind is known
func (k LineKind) IsValid() bool {
	switch k {
	case LineMatched, LineDebit, LineCredit, LineCharge, LineWriteOff:
		return true
	}
	return false
}

// AllocationLine is one row of an allocation document. All amounts are in the
// allocation header currency.
type AllocationLine struct {
	ID                uuid.UUID
	AllocationID      uuid.UUID
	LineNo            int
	Kind              LineKind
	Amount            decimal.Decimal
	DiscountAmount    decimal.Decimal
	WriteOffAmount    decimal.Decimal
	OverUnderAmount   decimal.Decimal
	BusinessPartnerID uuid.UUID
	OrderID           *uuid.UUID
	InvoiceID         *uuid.UUID
	PaymentID         *uuid.UUID
	ChargeID          *uuid.UUID
}

// LineAmounts groups the four monetary fields of a line
type LineAmounts struct {
	Amount    decimal.Decimal
	Discount  decimal.Decimal
	WriteOff  decimal.Decimal
	OverUnder decimal.Decimal
}

// Consumed is what the line takes off its debit: amount + discount + writeOff
func (l *AllocationLine) Consumed() decimal.Decimal {
	return l.Amount.Add(l.DiscountAmount).Add(l.WriteOffAmount)
}

// BalanceEffect is the line's contribution to the header's net balance.
// Matched lines settle both sides and are neutral; a debit remainder leaves
// applied money unmatched; credit leftovers and charge lines offset it.
func (l *AllocationLine) BalanceEffect() decimal.Decimal {
	switch l.Kind {
	case LineDebit, LineWriteOff:
		return l.Amount
	case LineCredit, LineCharge:
		return l.Amount.Neg()
	}
	return decimal.Zero
}

func newLine(kind LineKind, partnerID uuid.UUID, amounts LineAmounts) AllocationLine {
	return AllocationLine{
		ID:                uuid.New(),
		Kind:              kind,
		Amount:            amounts.Amount,
		DiscountAmount:    amounts.Discount,
		WriteOffAmount:    amounts.WriteOff,
		OverUnderAmount:   amounts.OverUnder,
		BusinessPartnerID: partnerID,
	}
}

func (l *AllocationLine) applyDebitRefs(d DebitItem) {
	switch d.Kind {
	case DebitInvoice:
		l.InvoiceID = uuidPtr(d.ID)
		l.OrderID = d.OrderID
	case DebitOrder:
		l.OrderID = uuidPtr(d.ID)
		l.InvoiceID = d.InvoiceID
	}
}

// applyCreditRefs references the credit document. A credit memo is an invoice, so on
// order lines it takes the invoice slot from the order's own invoice.
func (l *AllocationLine) applyCreditRefs(c CreditItem) {
	switch c.Kind {
	case CreditPayment:
		l.PaymentID = uuidPtr(c.ID)
	case CreditCreditMemo:
		l.InvoiceID = uuidPtr(c.ID)
	}
}

// NewMatchedLine builds the line for a debit settled by a credit
func NewMatchedLine(d DebitItem, c CreditItem, amounts LineAmounts) AllocationLine {
	l := newLine(LineMatched, d.BusinessPartnerID, amounts)
	l.applyDebitRefs(d)
	l.applyCreditRefs(c)
	return l
}

// NewDebitLine builds the line for the part of a debit no credit could settle
func NewDebitLine(d DebitItem, amounts LineAmounts) AllocationLine {
	l := newLine(LineDebit, d.BusinessPartnerID, amounts)
	l.applyDebitRefs(d)
	return l
}

// NewCreditLine builds the debit-less line for a credit's leftover amount
func NewCreditLine(c CreditItem, amount decimal.Decimal) AllocationLine {
	l := newLine(LineCredit, c.BusinessPartnerID, LineAmounts{Amount: amount})
	l.applyCreditRefs(c)
	return l
}

// NewChargeLine builds the charge absorption line
func NewChargeLine(partnerID, chargeID uuid.UUID, amount decimal.Decimal) AllocationLine {
	l := newLine(LineCharge, partnerID, LineAmounts{Amount: amount})
	l.ChargeID = uuidPtr(chargeID)
	return l
}

// NewWriteOffLine builds the line that forgives an order's residual open amount
func NewWriteOffLine(o *Order, residual decimal.Decimal) AllocationLine {
	l := newLine(LineWriteOff, o.BusinessPartnerID, LineAmounts{WriteOff: residual})
	l.OrderID = uuidPtr(o.ID)
	l.InvoiceID = o.InvoiceID
	return l
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
