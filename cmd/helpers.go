package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fundops/cnpipe/internal/ledger"
	"github.com/fundops/cnpipe/internal/lookup"
	"github.com/fundops/cnpipe/internal/mail"
	"github.com/fundops/cnpipe/internal/model"
	"github.com/fundops/cnpipe/internal/ocr"
	"github.com/fundops/cnpipe/internal/oracle"
	"github.com/fundops/cnpipe/internal/pipeline"
	"github.com/fundops/cnpipe/internal/render"
	"github.com/fundops/cnpipe/internal/workbook"
)

func initLedger(ctx context.Context) (ledger.Ledger, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "cnpipe.db"
		}
		return ledger.NewSQLite(dsn)
	case "postgres":
		return ledger.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func openLedger(ctx context.Context) (ledger.Ledger, error) {
	led, err := initLedger(ctx)
	if err != nil {
		return nil, err
	}
	if err := led.Migrate(ctx); err != nil {
		led.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate ledger")
	}
	return led, nil
}

// loadResolver reads the lookup sheet from the workbook and builds the
// row resolver over it.
func loadResolver(workbookPath string) (*lookup.Resolver, error) {
	records, err := workbook.ReadLookup(workbookPath, cfg.Workbook)
	if err != nil {
		return nil, err
	}
	table := lookup.NewTable(records)
	return lookup.NewResolver(table), nil
}

func loadInput(workbookPath string) ([]model.InputRecord, error) {
	return workbook.ReadInput(workbookPath, cfg.Workbook)
}

func newRetrievalRunner(led ledger.Ledger, workbookPath string) (*pipeline.Runner, error) {
	resolver, err := loadResolver(workbookPath)
	if err != nil {
		return nil, err
	}

	searcher := mail.NewIMAPSearcher(cfg.Mail)
	coordinator := pipeline.NewCoordinator(searcher, led, cfg.Retrieve.DownloadDir, cfg.Mail.SourceAddress)
	return pipeline.NewRunner(resolver, coordinator, nil, led), nil
}

func newExtractionRunner(led ledger.Ledger) (*pipeline.Runner, error) {
	renderer := render.NewPDFRenderer(cfg.Render.PdfToPpmPath, cfg.Render.DPI)

	recognizer, err := ocr.NewRecognizer(cfg.OCR)
	if err != nil {
		return nil, err
	}

	o, err := oracle.NewOracle(cfg.Oracle)
	if err != nil {
		return nil, err
	}

	worker := pipeline.NewWorker(renderer, recognizer, o, cfg.Extract.MaxChars)
	return pipeline.NewRunner(nil, nil, worker, led), nil
}

func extractOptions(retryFailed, reprocess bool, concurrency int) pipeline.ExtractOptions {
	if concurrency <= 0 {
		concurrency = cfg.Extract.Concurrency
	}
	return pipeline.ExtractOptions{
		RetryFailed: retryFailed,
		Reprocess:   reprocess,
		Concurrency: concurrency,
		Timeout:     time.Duration(cfg.Extract.TimeoutSecs) * time.Second,
		RatePerSec:  cfg.Extract.RatePerSec,
	}
}
