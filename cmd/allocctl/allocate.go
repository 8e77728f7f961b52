package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	appfinance "github.com/erp/allocation/internal/application/finance"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var requestFile string

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Allocate the payments and invoices selected in a request file",
	Long: `Reads an allocation request in YAML (or JSON, which is valid YAML) and
allocates it in one transaction. Use "-f -" to read from stdin.`,
	Example: `  allocctl allocate --client-id 7d4c... -f request.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := readAllocateRequest(cmd.InOrStdin(), requestFile)
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

		result, err := a.allocations.Allocate(ctx, *req)
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), outputFormat, result)
	},
}

func init() {
	allocateCmd.Flags().StringVarP(&requestFile, "file", "f", "", "allocation request file, - for stdin (required)")
	_ = allocateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(allocateCmd)
}

// readAllocateRequest loads a request from path, or from stdin when path is "-"
func readAllocateRequest(stdin io.Reader, path string) (*appfinance.AllocateRequest, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return decodeAllocateRequest(data)
}

// decodeAllocateRequest parses a request, rejecting unknown keys
func decodeAllocateRequest(data []byte) (*appfinance.AllocateRequest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var req appfinance.AllocateRequest
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("request is empty")
		}
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}
