package main

import (
	"github.com/spf13/cobra"
)

var (
	extractRetryFailed bool
	extractReprocess   bool
	extractConcurrency int
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract fields from pending ledger entries",
	Long:  "Runs the extraction state machine over pending entries: open the PDF with the entry's credential snapshot, OCR its pages, and ask the model for the confirmation note fields. Terminal entries are skipped unless opted in.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		runner, err := newExtractionRunner(led)
		if err != nil {
			return err
		}

		opts := extractOptions(extractRetryFailed, extractReprocess, extractConcurrency)
		run, err := runner.ExtractPass(ctx, opts)
		if run != nil {
			printRunSummary(cmd, run)
		}
		return err
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractRetryFailed, "retry-failed", false, "also re-extract failed entries")
	extractCmd.Flags().BoolVar(&extractReprocess, "reprocess", false, "re-extract every entry, successful ones included")
	extractCmd.Flags().IntVar(&extractConcurrency, "concurrency", 0, "max simultaneous extractions (default from config)")
	rootCmd.AddCommand(extractCmd)
}
