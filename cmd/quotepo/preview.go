package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AnTengye/quotepo/config"
	"github.com/AnTengye/quotepo/pkg/sheet"
	"github.com/AnTengye/quotepo/service"
	"github.com/spf13/cobra"
)

var pretty bool

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview [quote.xlsx]",
		Short: "Print the purchase order a spreadsheet would produce",
		Long: `preview builds the purchase order for a quote spreadsheet without
contacting Xero. The contact id is left empty.`,
		Args: cobra.ExactArgs(1),
		RunE: runPreview,
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	return cmd
}

func runPreview(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", inputPath)
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	grid, err := sheet.ReadFile(inputPath)
	if err != nil {
		return err
	}

	builder := service.NewOrderBuilder(&cfg.Order, service.OfflineContacts{})
	po, err := builder.BuildFromGrid(cmd.Context(), service.Credentials{}, grid)
	if err != nil {
		return fmt.Errorf("failed to build purchase order: %w", err)
	}

	var data []byte
	if pretty {
		data, err = json.MarshalIndent(po, "", "  ")
	} else {
		data, err = json.Marshal(po)
	}
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
