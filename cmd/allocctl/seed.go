package main

import (
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	appfinance "github.com/erp/allocation/internal/application/finance"
	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/domain/shared/valueobject"
	"github.com/erp/allocation/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	seedInvoices int
	seedPayments int
	seedCurrency string
	seedValue    uint64
	seedOut      string
)

var seedDemoCmd = &cobra.Command{
	Use:   "seed-demo",
	Short: "Insert a demo partner with open invoices and payments",
	Long: `Creates one business partner with completed, unpaid invoices and completed,
unallocated payments of the same total, then writes an allocation request that
settles all of them. Feed the request to "allocctl allocate -f".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := sessionContext(cmd.Context())
		if err != nil {
			return err
		}
		sc, _ := shared.SessionFromContext(ctx)
		currency, err := valueobject.ParseCurrency(seedCurrency)
		if err != nil {
			return err
		}
		if seedInvoices < 1 || seedPayments < 1 {
			return fmt.Errorf("--invoices and --payments must be at least 1")
		}

		demo := buildDemo(gofakeit.New(seedValue), sc, currency, seedInvoices, seedPayments, time.Now().UTC().Truncate(24*time.Hour))

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := persistence.NewGormMasterDataRepository(a.db.DB).SaveBusinessPartner(ctx, demo.Partner); err != nil {
			return fmt.Errorf("save partner: %w", err)
		}
		invoices := persistence.NewGormInvoiceRepository(a.db.DB)
		for _, inv := range demo.Invoices {
			if err := invoices.Save(ctx, inv); err != nil {
				return fmt.Errorf("save invoice %s: %w", inv.DocumentNo, err)
			}
		}
		payments := persistence.NewGormPaymentRepository(a.db.DB)
		for _, p := range demo.Payments {
			if err := payments.Save(ctx, p); err != nil {
				return fmt.Errorf("save payment %s: %w", p.DocumentNo, err)
			}
		}
		a.log.Info("Seeded demo documents")

		out := cmd.OutOrStdout()
		if seedOut != "" && seedOut != "-" {
			f, err := os.Create(seedOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return printResult(out, "yaml", demo.Request)
	},
}

func init() {
	flags := seedDemoCmd.Flags()
	flags.IntVar(&seedInvoices, "invoices", 3, "number of invoices to create")
	flags.IntVar(&seedPayments, "payments", 2, "number of payments to create")
	flags.StringVar(&seedCurrency, "currency", "USD", "currency of every demo document")
	flags.Uint64Var(&seedValue, "seed", 0, "random seed, 0 picks one")
	flags.StringVar(&seedOut, "write", "-", "file the allocation request is written to, - for stdout")
	rootCmd.AddCommand(seedDemoCmd)
}

// demoData is one partner's balanced set of open documents
type demoData struct {
	Partner  *finance.BusinessPartner
	Invoices []*finance.Invoice
	Payments []*finance.Payment
	Request  appfinance.AllocateRequest
}

// buildDemo generates invoices with random totals and splits their sum over the payments
func buildDemo(f *gofakeit.Faker, sc shared.SessionContext, currency valueobject.Currency, invoiceCount, paymentCount int, day time.Time) demoData {
	precision := currency.StandardPrecision()
	partner := &finance.BusinessPartner{
		ID:       uuid.New(),
		ClientID: sc.ClientID,
		Name:     f.Company(),
		IsActive: true,
	}
	demo := demoData{
		Partner: partner,
		Request: appfinance.AllocateRequest{
			BusinessPartnerID: partner.ID,
			Currency:          currency.String(),
			OrganizationID:    sc.OrganizationID,
			Date:              day,
			Description:       "Demo allocation for " + partner.Name,
			TotalDifference:   decimal.Zero,
		},
	}

	total := decimal.Zero
	for i := 0; i < invoiceCount; i++ {
		amount := decimal.NewFromInt(int64(f.IntRange(1000, 250000))).Shift(-2).Round(precision)
		inv := &finance.Invoice{
			ClientAggregateRoot: shared.NewClientAggregateRootFromSession(sc, sc.OrganizationID),
			DocumentNo:          f.Numerify("DEMO-INV-######"),
			InvoiceType:         finance.InvoiceTypeARInvoice,
			BusinessPartnerID:   partner.ID,
			Currency:            currency,
			GrandTotal:          amount,
			IsSOTrx:             true,
			DateInvoiced:        day.AddDate(0, 0, -f.IntRange(1, 60)),
			DocStatus:           finance.DocStatusCompleted,
			IsActive:            true,
		}
		demo.Invoices = append(demo.Invoices, inv)
		demo.Request.InvoiceSelections = append(demo.Request.InvoiceSelections, appfinance.InvoiceSelection{
			ID:             inv.ID,
			AppliedAmount:  amount,
			DiscountAmount: decimal.Zero,
			WriteOffAmount: decimal.Zero,
			OpenAmount:     amount,
			DateInvoiced:   inv.DateInvoiced,
		})
		total = total.Add(amount)
	}

	remaining := total
	for i := 0; i < paymentCount; i++ {
		amount := remaining
		if i < paymentCount-1 {
			share := decimal.NewFromInt(int64(f.IntRange(10, 90))).Shift(-2)
			amount = remaining.Mul(share).Round(precision)
		}
		remaining = remaining.Sub(amount)

		p := &finance.Payment{
			ClientAggregateRoot: shared.NewClientAggregateRootFromSession(sc, sc.OrganizationID),
			DocumentNo:          f.Numerify("DEMO-PAY-######"),
			BusinessPartnerID:   partner.ID,
			Currency:            currency,
			PayAmount:           amount,
			IsReceipt:           true,
			TenderKind:          finance.TenderCheck,
			DateTrx:             day,
			DocStatus:           finance.DocStatusCompleted,
			IsActive:            true,
		}
		demo.Payments = append(demo.Payments, p)
		demo.Request.PaymentSelections = append(demo.Request.PaymentSelections, appfinance.PaymentSelection{
			ID:              p.ID,
			AppliedAmount:   amount,
			TransactionDate: day,
		})
	}
	return demo
}
