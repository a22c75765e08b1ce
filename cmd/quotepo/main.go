// Package main provides the quotepo entry point: the web service and an
// offline spreadsheet preview.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quotepo",
		Short: "Create Xero purchase orders from quote spreadsheets",
		Long: `quotepo reads a supplier quote spreadsheet, builds a DRAFT purchase
order from it and submits it to Xero after an OAuth2 authorization.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(newServeCmd(), newPreviewCmd())
	return rootCmd
}
