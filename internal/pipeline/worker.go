package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fundops/cnpipe/internal/model"
	"github.com/fundops/cnpipe/internal/ocr"
	"github.com/fundops/cnpipe/internal/oracle"
	"github.com/fundops/cnpipe/internal/render"
)

// Worker runs the extraction state machine for a single ledger entry:
// open, rasterize, recognize, truncate, infer, parse. Each stage runs at
// most once per entry; only the collaborators' own transports retry.
type Worker struct {
	renderer   render.Renderer
	recognizer ocr.Recognizer
	oracle     oracle.Oracle
	maxChars   int
}

// NewWorker creates a Worker truncating recognized text to maxChars runes
// before inference.
func NewWorker(r render.Renderer, rec ocr.Recognizer, o oracle.Oracle, maxChars int) *Worker {
	if maxChars <= 0 {
		maxChars = 4000
	}
	return &Worker{renderer: r, recognizer: rec, oracle: o, maxChars: maxChars}
}

// Extract processes one entry to a terminal result. Errors are classified
// into the entry's failure label; the error chain itself goes to the log,
// not the ledger.
func (w *Worker) Extract(ctx context.Context, entry model.LedgerEntry) model.ExtractionResult {
	doc, err := w.open(ctx, entry)
	if err != nil {
		return w.fail(entry, err, model.FailureDecryption)
	}

	pages, err := w.renderer.Rasterize(ctx, doc)
	if err != nil {
		return w.fail(entry, err, model.FailureRecognition)
	}

	text, err := w.recognizer.Recognize(ctx, pages)
	if err != nil {
		return w.fail(entry, err, model.FailureRecognition)
	}
	if strings.TrimSpace(text) == "" {
		return w.fail(entry, eris.Errorf("pipeline: no text recognized in %s", entry.ArtifactPath), model.FailureRecognition)
	}

	text, truncated := truncate(text, w.maxChars)
	if truncated {
		zap.L().Debug("recognized text truncated",
			zap.Int64("entry_id", entry.ID),
			zap.Int("max_chars", w.maxChars),
		)
	}

	response, err := w.oracle.Infer(ctx, oracle.BuildPrompt(text))
	if err != nil {
		res := w.fail(entry, err, model.FailureExtractionParse)
		res.Truncated = truncated
		return res
	}

	fields, err := parseFields(response)
	if err != nil {
		res := w.fail(entry, err, model.FailureExtractionParse)
		res.Truncated = truncated
		res.RawResponse = response
		return res
	}

	return model.ExtractionResult{
		Fields:      fields,
		Truncated:   truncated,
		RawResponse: response,
	}
}

// open tries the empty password first, then the entry's credential snapshot
// in order. Only a password rejection moves on to the next candidate; any
// other failure means the file itself is unreadable.
func (w *Worker) open(ctx context.Context, entry model.LedgerEntry) (*render.Document, error) {
	candidates := append([]string{""}, entry.Credentials...)

	var lastErr error
	for _, pw := range candidates {
		doc, err := w.renderer.Open(ctx, entry.ArtifactPath, pw)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !errors.Is(err, render.ErrAuthentication) {
			return nil, err
		}
	}
	return nil, lastErr
}

// fail classifies an error into the stage's failure label. A deadline hit
// anywhere in the machine is reported as a timeout rather than the stage
// it happened to interrupt.
func (w *Worker) fail(entry model.LedgerEntry, err error, stage model.FailureKind) model.ExtractionResult {
	failure := stage
	if errors.Is(err, context.DeadlineExceeded) {
		failure = model.FailureExtractionTimeout
	}

	zap.L().Warn("extraction failed",
		zap.Int64("entry_id", entry.ID),
		zap.String("failure", string(failure)),
		zap.Error(err),
	)
	return model.ExtractionResult{Failure: failure, Err: err}
}

// truncate cuts s to at most maxChars runes.
func truncate(s string, maxChars int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s, false
	}
	return string(runes[:maxChars]), true
}
