package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fundops/cnpipe/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cnpipe",
	Short: "Confirmation note retrieval and extraction pipeline",
	Long:  "Searches a mailbox for confirmation note PDFs, records each download in a ledger, and extracts structured transaction fields from them with OCR and a language model.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
