package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusRunLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger counts and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		led, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer led.Close() //nolint:errcheck

		byStatus, err := led.CountByStatus(ctx)
		if err != nil {
			return err
		}
		byFailure, err := led.CountByFailure(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Entries:")
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for status, n := range byStatus {
			fmt.Fprintf(w, "  %s\t%d\n", status, n)
		}
		w.Flush() //nolint:errcheck

		if len(byFailure) > 0 {
			fmt.Fprintln(out, "Failures:")
			w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for failure, n := range byFailure {
				fmt.Fprintf(w, "  %s\t%d\n", failure, n)
			}
			w.Flush() //nolint:errcheck
		}

		runs, err := led.ListRuns(ctx, statusRunLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return nil
		}

		fmt.Fprintln(out, "Recent runs:")
		w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  KIND\tSTARTED\tPROCESSED\tSUCCEEDED\tFAILED\tSKIPPED")
		for _, run := range runs {
			fmt.Fprintf(w, "  %s\t%s\t%d\t%d\t%d\t%d\n",
				run.Kind,
				run.StartedAt.Local().Format(time.DateTime),
				run.Summary.Processed,
				run.Summary.Succeeded,
				run.Summary.Failed,
				run.Summary.Skipped,
			)
		}
		w.Flush() //nolint:errcheck
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusRunLimit, "runs", 10, "max recent runs to display")
	rootCmd.AddCommand(statusCmd)
}
