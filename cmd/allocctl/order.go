package main

import (
	"fmt"

	appfinance "github.com/erp/allocation/internal/application/finance"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	reconcileOrderID  string
	reconcilePOSID    string
	reconcileConvType string
	allowOpenRefund   bool
)

var reconcileOrderCmd = &cobra.Command{
	Use:   "reconcile-order",
	Short: "Complete an order's payments and allocate them against the order",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := reconcileRequestFromFlags()
		if err != nil {
			return err
		}
		ctx, err := sessionContext(cmd.Context())
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.orders.ReconcileOrder(ctx, req)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), outputFormat, result)
	},
}

var getAllocationCmd = &cobra.Command{
	Use:   "get-allocation ID",
	Short: "Show a stored allocation with its lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid allocation id: %w", err)
		}
		ctx, err := sessionContext(cmd.Context())
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.allocations.GetAllocation(ctx, id)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), outputFormat, view)
	},
}

func init() {
	flags := reconcileOrderCmd.Flags()
	flags.StringVar(&reconcileOrderID, "order-id", "", "order to reconcile (required)")
	flags.StringVar(&reconcilePOSID, "pos-id", "", "point of sale the order was taken at")
	flags.StringVar(&reconcileConvType, "conversion-type", "", "conversion rate type, defaults to the configured one")
	flags.BoolVar(&allowOpenRefund, "allow-open-refund", false, "leave an overpayment open instead of writing it off")
	_ = reconcileOrderCmd.MarkFlagRequired("order-id")

	rootCmd.AddCommand(reconcileOrderCmd, getAllocationCmd)
}

func reconcileRequestFromFlags() (appfinance.ReconcileOrderRequest, error) {
	req := appfinance.ReconcileOrderRequest{
		ConversionType:  reconcileConvType,
		AllowOpenRefund: allowOpenRefund,
	}
	var err error
	if req.OrderID, err = uuid.Parse(reconcileOrderID); err != nil {
		return req, fmt.Errorf("invalid --order-id: %w", err)
	}
	if reconcilePOSID != "" {
		if req.PointOfSaleID, err = uuid.Parse(reconcilePOSID); err != nil {
			return req, fmt.Errorf("invalid --pos-id: %w", err)
		}
	}
	return req, nil
}
