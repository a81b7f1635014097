package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fundops/cnpipe/internal/model"
)

var (
	runWorkbook    string
	runRetryFailed bool
	runConcurrency int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Retrieve and extract in one pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		records, err := loadInput(runWorkbook)
		if err != nil {
			return err
		}

		retrieval, err := newRetrievalRunner(led, runWorkbook)
		if err != nil {
			return err
		}

		retrieveRun, err := retrieval.RetrieveAll(ctx, records)
		if retrieveRun != nil {
			printRunSummary(cmd, retrieveRun)
		}
		if err != nil {
			return err
		}

		extraction, err := newExtractionRunner(led)
		if err != nil {
			return err
		}

		opts := extractOptions(runRetryFailed, false, runConcurrency)
		extractRun, err := extraction.ExtractPass(ctx, opts)
		if extractRun != nil {
			printRunSummary(cmd, extractRun)
		}
		return err
	},
}

func printRunSummary(cmd *cobra.Command, run *model.Run) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: processed=%d succeeded=%d failed=%d",
		run.Kind, run.Summary.Processed, run.Summary.Succeeded, run.Summary.Failed)
	if run.Kind == model.RunRetrieve {
		fmt.Fprintf(out, " skipped=%d downloaded=%d no_results=%d",
			run.Summary.Skipped, run.Summary.Downloaded, run.Summary.NoResults)
	}
	fmt.Fprintf(out, " duration=%s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
}

func init() {
	runCmd.Flags().StringVar(&runWorkbook, "workbook", "", "path to the operations workbook (.xlsx)")
	runCmd.MarkFlagRequired("workbook") //nolint:errcheck
	runCmd.Flags().BoolVar(&runRetryFailed, "retry-failed", false, "also re-extract failed entries")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "max simultaneous extractions (default from config)")
	rootCmd.AddCommand(runCmd)
}
