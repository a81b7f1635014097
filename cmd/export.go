package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fundops/cnpipe/internal/ledger"
	"github.com/fundops/cnpipe/internal/workbook"
)

var (
	exportOut   string
	exportSheet string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ledger to an xlsx workbook",
	Long:  "Writes every ledger entry, extracted fields included, to a workbook sheet in the legacy CN Database column layout.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		entries, err := led.List(ctx, ledger.Filter{})
		if err != nil {
			return err
		}

		sheet := exportSheet
		if sheet == "" {
			sheet = cfg.Workbook.ExportSheet
		}
		if err := workbook.Export(exportOut, sheet, entries); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries to %s\n", len(entries), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output workbook path (.xlsx)")
	exportCmd.MarkFlagRequired("out") //nolint:errcheck
	exportCmd.Flags().StringVar(&exportSheet, "sheet", "", "sheet name (default from config)")
	rootCmd.AddCommand(exportCmd)
}
