package main

import (
	"github.com/spf13/cobra"
)

var retrieveWorkbook string

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Search the mailbox and download confirmation note PDFs",
	Long:  "Walks the input sheet row by row, resolves each key through the lookup sheet, searches the mailbox for matching messages, and appends a pending ledger entry per downloaded PDF.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		records, err := loadInput(retrieveWorkbook)
		if err != nil {
			return err
		}

		runner, err := newRetrievalRunner(led, retrieveWorkbook)
		if err != nil {
			return err
		}

		run, err := runner.RetrieveAll(ctx, records)
		if run != nil {
			printRunSummary(cmd, run)
		}
		return err
	},
}

func init() {
	retrieveCmd.Flags().StringVar(&retrieveWorkbook, "workbook", "", "path to the operations workbook (.xlsx)")
	retrieveCmd.MarkFlagRequired("workbook") //nolint:errcheck
	rootCmd.AddCommand(retrieveCmd)
}
