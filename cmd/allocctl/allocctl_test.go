package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const requestYAML = `
business_partner_id: 3f1c2a4e-0c1b-4e7a-9a53-5d1f0c7e2b10
currency: EUR
organization_id: 8a0e6c52-2f4b-47d5-bb3a-1c2d3e4f5a6b
date: 2026-03-31
is_multi_currency: true
charge_id: 0b7d0c3e-5f60-4a51-8a4b-0d6a7e9f1c22
description: March settlement
total_difference: 0
payment_selections:
  - id: 9e4b6c1d-7a2f-4d3b-8e5c-6f7a8b9c0d1e
    applied_amount: 150.25
    transaction_date: 2026-03-30
invoice_selections:
  - id: 1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d
    applied_amount: "140.25"
    discount_amount: 10
    write_off_amount: 0
    open_amount: 150.25
    date_invoiced: 2026-02-28
`

func TestDecodeAllocateRequest(t *testing.T) {
	req, err := decodeAllocateRequest([]byte(requestYAML))
	require.NoError(t, err)

	assert.Equal(t, uuid.MustParse("3f1c2a4e-0c1b-4e7a-9a53-5d1f0c7e2b10"), req.BusinessPartnerID)
	assert.Equal(t, "EUR", req.Currency)
	assert.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), req.Date)
	assert.True(t, req.IsMultiCurrency)
	require.NotNil(t, req.ChargeID)
	assert.Equal(t, uuid.MustParse("0b7d0c3e-5f60-4a51-8a4b-0d6a7e9f1c22"), *req.ChargeID)
	assert.True(t, req.TotalDifference.IsZero())

	require.Len(t, req.PaymentSelections, 1)
	assert.True(t, req.PaymentSelections[0].AppliedAmount.Equal(decimal.RequireFromString("150.25")))

	require.Len(t, req.InvoiceSelections, 1)
	inv := req.InvoiceSelections[0]
	assert.True(t, inv.AppliedAmount.Equal(decimal.RequireFromString("140.25")))
	assert.True(t, inv.DiscountAmount.Equal(decimal.NewFromInt(10)))
	assert.True(t, inv.OpenAmount.Equal(decimal.RequireFromString("150.25")))
}

func TestDecodeAllocateRequest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "empty", input: "", wantErr: "request is empty"},
		{name: "unknown key", input: "currency: USD\ncurency: EUR\n", wantErr: "decode request"},
		{name: "bad uuid", input: "business_partner_id: nope\n", wantErr: "decode request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeAllocateRequest([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadAllocateRequest_Stdin(t *testing.T) {
	req, err := readAllocateRequest(strings.NewReader(requestYAML), "-")
	require.NoError(t, err)
	assert.Equal(t, "March settlement", req.Description)
}

func TestParseSession(t *testing.T) {
	client := uuid.New()
	org := uuid.New()

	sc, err := parseSession(client.String(), org.String(), "", "de_DE")
	require.NoError(t, err)
	assert.Equal(t, client, sc.ClientID)
	assert.Equal(t, org, sc.OrganizationID)
	assert.Equal(t, uuid.Nil, sc.UserID)
	assert.Equal(t, "de_DE", sc.Language)

	_, err = parseSession("", "", "", "en_US")
	assert.Error(t, err)
	_, err = parseSession(uuid.Nil.String(), "", "", "en_US")
	assert.Error(t, err)
	_, err = parseSession(client.String(), "not-a-uuid", "", "en_US")
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	v := map[string]string{"document_no": "AL-1000"}

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, "yaml", v))
	assert.Equal(t, "document_no: AL-1000\n", buf.String())

	buf.Reset()
	require.NoError(t, printResult(&buf, "JSON", v))
	assert.JSONEq(t, `{"document_no":"AL-1000"}`, buf.String())

	assert.Error(t, printResult(&buf, "xml", v))
}

func TestBuildDemo_IsBalanced(t *testing.T) {
	sc := shared.SessionContext{ClientID: uuid.New(), OrganizationID: uuid.New()}
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	for seed := uint64(1); seed <= 20; seed++ {
		demo := buildDemo(gofakeit.New(seed), sc, valueobject.USD, 4, 3, day)

		require.Len(t, demo.Invoices, 4)
		require.Len(t, demo.Payments, 3)
		assert.Equal(t, demo.Partner.ID, demo.Request.BusinessPartnerID)

		invoiced := decimal.Zero
		for i, inv := range demo.Invoices {
			assert.Equal(t, sc.ClientID, inv.ClientID)
			assert.Equal(t, inv.ID, demo.Request.InvoiceSelections[i].ID)
			invoiced = invoiced.Add(demo.Request.InvoiceSelections[i].AppliedAmount)
		}
		paid := decimal.Zero
		for i, p := range demo.Payments {
			assert.Equal(t, p.ID, demo.Request.PaymentSelections[i].ID)
			assert.True(t, p.PayAmount.Equal(demo.Request.PaymentSelections[i].AppliedAmount))
			paid = paid.Add(p.PayAmount)
		}
		assert.True(t, invoiced.Equal(paid), "seed %d: invoiced %s paid %s", seed, invoiced, paid)
	}
}
