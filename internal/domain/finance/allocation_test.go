package finance

import (
	"testing"
	"time"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDraftAllocation(t *testing.T) *Allocation {
	t.Helper()
	sc := shared.SessionContext{ClientID: testClientID, OrganizationID: testOrgID}
	a, err := NewAllocation(sc, testOrgID, uuid.New(), valueobject.USD, rateDay, "test")
	require.NoError(t, err)
	return a
}

func TestNewAllocation(t *testing.T) {
	sc := shared.SessionContext{ClientID: testClientID, OrganizationID: testOrgID}

	t.Run("draft header owned by the session client", func(t *testing.T) {
		a, err := NewAllocation(sc, testOrgID, uuid.New(), valueobject.EUR, rateDay, "desc")
		require.NoError(t, err)
		assert.Equal(t, DocStatusDraft, a.Status)
		assert.Equal(t, testClientID, a.ClientID)
		assert.Equal(t, testOrgID, a.OrganizationID)
		assert.Empty(t, a.Lines)
	})

	t.Run("mandatory fields", func(t *testing.T) {
		_, err := NewAllocation(sc, uuid.Nil, uuid.New(), valueobject.EUR, rateDay, "")
		assert.ErrorIs(t, err, ErrValidation)
		_, err = NewAllocation(sc, testOrgID, uuid.New(), "", rateDay, "")
		assert.ErrorIs(t, err, ErrValidation)
		_, err = NewAllocation(sc, testOrgID, uuid.New(), valueobject.EUR, time.Time{}, "")
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestAllocation_Lines(t *testing.T) {
	a := newDraftAllocation(t)
	inv := uuid.New()
	pay := uuid.New()
	debit := DebitItem{ID: inv, Kind: DebitInvoice, Currency: valueobject.USD, OpenAmount: dec("100"), AppliedAmount: dec("100")}
	credit := CreditItem{ID: pay, Kind: CreditPayment, Currency: valueobject.USD, Amount: dec("100")}

	require.NoError(t, a.AddLines(
		NewMatchedLine(debit, credit, LineAmounts{Amount: dec("60")}),
		NewMatchedLine(debit, credit, LineAmounts{Amount: dec("40")}),
	))

	assert.Equal(t, 10, a.Lines[0].LineNo)
	assert.Equal(t, 20, a.Lines[1].LineNo)
	assert.Equal(t, a.ID, a.Lines[1].AllocationID)
	assert.Equal(t, []uuid.UUID{inv}, a.TouchedInvoiceIDs())
	assert.Equal(t, []uuid.UUID{pay}, a.TouchedPaymentIDs())
	assert.True(t, a.Balance().IsZero())

	err := a.AddLines(AllocationLine{Kind: "BOGUS"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAllocation_MarkCompleted(t *testing.T) {
	t.Run("requires lines", func(t *testing.T) {
		a := newDraftAllocation(t)
		err := a.MarkCompleted("ALLOC-000001", rateDay)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("completes once and freezes lines", func(t *testing.T) {
		a := newDraftAllocation(t)
		require.NoError(t, a.AddLines(NewCreditLine(CreditItem{ID: uuid.New(), Kind: CreditPayment}, dec("5"))))
		require.NoError(t, a.MarkCompleted("ALLOC-000001", rateDay))

		assert.Equal(t, "ALLOC-000001", a.DocumentNo)
		assert.Equal(t, DocStatusCompleted, a.Status)
		require.NotNil(t, a.CompletedAt)
		require.Len(t, a.GetDomainEvents(), 1)
		evt, ok := a.GetDomainEvents()[0].(*AllocationCompletedEvent)
		require.True(t, ok)
		assert.Equal(t, 1, evt.LineCount)

		assert.Error(t, a.MarkCompleted("ALLOC-000002", rateDay))
		assert.Error(t, a.AddLines(NewCreditLine(CreditItem{ID: uuid.New(), Kind: CreditPayment}, dec("1"))))
	})
}

func TestAllocationLine_BalanceEffect(t *testing.T) {
	order := &Order{BusinessPartnerID: uuid.New()}
	order.ID = uuid.New()

	tests := []struct {
		name string
		line AllocationLine
		want string
	}{
		{"matched is neutral", AllocationLine{Kind: LineMatched, Amount: dec("100"), DiscountAmount: dec("5")}, "0"},
		{"debit remainder", AllocationLine{Kind: LineDebit, Amount: dec("30"), OverUnderAmount: dec("2")}, "30"},
		{"credit leftover", AllocationLine{Kind: LineCredit, Amount: dec("30")}, "-30"},
		{"negative credit leftover", AllocationLine{Kind: LineCredit, Amount: dec("-10")}, "10"},
		{"charge", AllocationLine{Kind: LineCharge, Amount: dec("12.5")}, "-12.5"},
		{"write-off keeps amount out", NewWriteOffLine(order, dec("3")), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.line.BalanceEffect().Equal(dec(tt.want)), "got %s", tt.line.BalanceEffect())
		})
	}
}

func TestAllocationLine_References(t *testing.T) {
	orderID := uuid.New()
	orderInvoice := uuid.New()
	memoID := uuid.New()
	payID := uuid.New()

	orderDebit := DebitItem{ID: orderID, Kind: DebitOrder, InvoiceID: &orderInvoice}

	t.Run("order debit against payment", func(t *testing.T) {
		l := NewMatchedLine(orderDebit, CreditItem{ID: payID, Kind: CreditPayment}, LineAmounts{Amount: dec("1")})
		assert.Equal(t, orderID, *l.OrderID)
		assert.Equal(t, orderInvoice, *l.InvoiceID)
		assert.Equal(t, payID, *l.PaymentID)
	})

	t.Run("credit memo takes the invoice slot", func(t *testing.T) {
		l := NewMatchedLine(orderDebit, CreditItem{ID: memoID, Kind: CreditCreditMemo}, LineAmounts{Amount: dec("1")})
		assert.Equal(t, orderID, *l.OrderID)
		assert.Equal(t, memoID, *l.InvoiceID)
		assert.Nil(t, l.PaymentID)
	})

	t.Run("charge line", func(t *testing.T) {
		chargeID := uuid.New()
		l := NewChargeLine(uuid.New(), chargeID, dec("4"))
		assert.Equal(t, chargeID, *l.ChargeID)
		assert.Nil(t, l.InvoiceID)
	})

	t.Run("consumed excludes over/under", func(t *testing.T) {
		l := AllocationLine{Amount: dec("90"), DiscountAmount: dec("3"), WriteOffAmount: dec("2"), OverUnderAmount: dec("5")}
		assert.True(t, l.Consumed().Equal(dec("95")))
	})
}

func TestPayment_Lifecycle(t *testing.T) {
	t.Run("multiplier", func(t *testing.T) {
		receipt := &Payment{IsReceipt: true}
		disbursement := &Payment{}
		assert.True(t, receipt.Multiplier(false).Equal(dec("1")))
		assert.True(t, disbursement.Multiplier(false).Equal(dec("-1")))
		assert.True(t, receipt.Multiplier(true).Equal(dec("-1")))
		assert.True(t, disbursement.Multiplier(true).Equal(dec("1")))
	})

	t.Run("credit memo transfer happens once", func(t *testing.T) {
		p := &Payment{TenderKind: TenderCreditMemo, PayAmount: dec("25"), DocStatus: DocStatusDraft}
		memoID := uuid.New()
		got, err := p.TransferToCreditMemo(memoID)
		require.NoError(t, err)
		assert.True(t, got.Equal(dec("25")))
		assert.True(t, p.PayAmount.IsZero())
		_, err = p.TransferToCreditMemo(uuid.New())
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("cash cannot transfer", func(t *testing.T) {
		_, err := (&Payment{TenderKind: TenderCash}).TransferToCreditMemo(uuid.New())
		assert.Error(t, err)
	})

	t.Run("prepare only drafts", func(t *testing.T) {
		p := &Payment{DocStatus: DocStatusCompleted}
		assert.Error(t, p.PrepareForOrderCompletion())
	})

	t.Run("online authorization", func(t *testing.T) {
		p := &Payment{IsOnline: true}
		assert.True(t, p.RequiresOnlineAuthorization())
		p.Approve("AUTH-1")
		assert.False(t, p.RequiresOnlineAuthorization())
		assert.Equal(t, "AUTH-1", p.AuthorizationCode)
	})
}

func TestInvoice_SignedGrandTotal(t *testing.T) {
	tests := []struct {
		invoiceType string
		soTrx       bool
		want        string
	}{
		{InvoiceTypeARInvoice, true, "50"},
		{InvoiceTypeARCreditMemo, true, "-50"},
		{InvoiceTypeAPInvoice, false, "-50"},
		{InvoiceTypeAPCreditMemo, false, "50"},
	}
	for _, tt := range tests {
		t.Run(tt.invoiceType, func(t *testing.T) {
			inv := &Invoice{InvoiceType: tt.invoiceType, IsSOTrx: tt.soTrx, GrandTotal: dec("50")}
			assert.True(t, inv.SignedGrandTotal().Equal(dec(tt.want)))
		})
	}
}

func TestPaymentReference_MarkProcessed(t *testing.T) {
	ref := &PaymentReference{}
	assert.True(t, ref.MarkProcessed(rateDay))
	assert.False(t, ref.MarkProcessed(rateDay.Add(time.Hour)))
	assert.Equal(t, rateDay, *ref.ProcessedAt)
}
