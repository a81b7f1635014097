package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fundops/cnpipe/internal/ledger"
	"github.com/fundops/cnpipe/internal/lookup"
	"github.com/fundops/cnpipe/internal/mail"
	"github.com/fundops/cnpipe/internal/model"
)

// Runner executes whole phases over the input records and the ledger, and
// records a Run with its summary for each.
type Runner struct {
	resolver    *lookup.Resolver
	coordinator *Coordinator
	worker      *Worker
	ledger      ledger.Ledger
}

// NewRunner creates a Runner. Resolver and coordinator are only needed for
// retrieval, worker only for extraction; a caller running one phase may pass
// nil for the other's collaborators.
func NewRunner(resolver *lookup.Resolver, coordinator *Coordinator, worker *Worker, led ledger.Ledger) *Runner {
	return &Runner{
		resolver:    resolver,
		coordinator: coordinator,
		worker:      worker,
		ledger:      led,
	}
}

// RetrieveAll walks the input records in order. Skips and per-row retrieval
// failures are counted and the walk continues; only a failure to persist
// (artifact or ledger write) aborts the phase.
func (r *Runner) RetrieveAll(ctx context.Context, records []model.InputRecord) (*model.Run, error) {
	run := &model.Run{Kind: model.RunRetrieve, StartedAt: time.Now().UTC()}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return r.finishRun(ctx, run, eris.Wrap(err, "pipeline: retrieval cancelled"))
		}
		run.Summary.Processed++

		row, skip := r.resolver.ResolveRow(rec)
		if skip != model.SkipNone {
			run.Summary.Skip(skip)
			zap.L().Info("input record skipped",
				zap.Int("row", rec.Row),
				zap.String("key", rec.Key),
				zap.String("reason", string(skip)),
			)
			continue
		}

		entries, err := r.coordinator.Retrieve(ctx, row)
		run.Summary.Downloaded += len(entries)
		if err != nil {
			// A mailbox failure for one row leaves the others worth trying.
			// Anything else is a local persistence fault and stops the phase.
			if !mail.IsRetrievalError(err) {
				return r.finishRun(ctx, run, err)
			}
			run.Summary.Failed++
			zap.L().Warn("retrieval failed for row",
				zap.Int("row", rec.Row),
				zap.String("source_key", row.SourceKey),
				zap.Error(err),
			)
			continue
		}

		if len(entries) == 0 {
			run.Summary.NoResults++
		} else {
			run.Summary.Succeeded++
		}
	}

	return r.finishRun(ctx, run, nil)
}

// ExtractOptions selects which entries an extraction pass processes and how.
type ExtractOptions struct {
	// RetryFailed re-queues FAILED entries alongside PENDING ones.
	RetryFailed bool
	// Reprocess re-queues every terminal entry, SUCCESS included.
	Reprocess bool
	// Concurrency bounds simultaneous extractions. Zero or less means 1.
	Concurrency int
	// Timeout bounds one entry's extraction. Zero means no per-entry limit.
	Timeout time.Duration
	// RatePerSec throttles extraction starts. Zero means unthrottled.
	RatePerSec float64
}

func (o ExtractOptions) statuses() []model.EntryStatus {
	statuses := []model.EntryStatus{model.StatusPending}
	if o.RetryFailed || o.Reprocess {
		statuses = append(statuses, model.StatusFailed)
	}
	if o.Reprocess {
		statuses = append(statuses, model.StatusSuccess)
	}
	return statuses
}

// ExtractPass runs the worker over the selected entries. Terminal entries
// stay untouched unless opted in; a result that cannot be written to the
// ledger aborts the pass, any other failure is recorded and counted.
func (r *Runner) ExtractPass(ctx context.Context, opts ExtractOptions) (*model.Run, error) {
	run := &model.Run{Kind: model.RunExtract, StartedAt: time.Now().UTC()}

	var entries []model.LedgerEntry
	for _, status := range opts.statuses() {
		batch, err := r.ledger.List(ctx, ledger.Filter{Status: status})
		if err != nil {
			return r.finishRun(ctx, run, err)
		}
		entries = append(entries, batch...)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gCtx); err != nil {
					return eris.Wrap(err, "pipeline: rate limiter")
				}
			}

			entryCtx := gCtx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				entryCtx, cancel = context.WithTimeout(gCtx, opts.Timeout)
				defer cancel()
			}

			result := r.worker.Extract(entryCtx, entry)
			if err := r.ledger.Apply(gCtx, entry.ID, result); err != nil {
				return eris.Wrapf(err, "pipeline: apply result for entry %d", entry.ID)
			}

			mu.Lock()
			run.Summary.Processed++
			if result.Failed() {
				run.Summary.Failed++
			} else {
				run.Summary.Succeeded++
			}
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return r.finishRun(ctx, run, err)
}

// finishRun stamps and persists the run record. A run that aborted is still
// recorded with whatever it managed to count.
func (r *Runner) finishRun(ctx context.Context, run *model.Run, phaseErr error) (*model.Run, error) {
	run.FinishedAt = time.Now().UTC()

	// Recording must not depend on the possibly-cancelled phase context.
	recordCtx := ctx
	if recordCtx.Err() != nil {
		var cancel context.CancelFunc
		recordCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	if err := r.ledger.RecordRun(recordCtx, run); err != nil {
		zap.L().Error("failed to record run", zap.Error(err))
		if phaseErr == nil {
			phaseErr = err
		}
	}

	zap.L().Info("run finished",
		zap.String("kind", string(run.Kind)),
		zap.Int("processed", run.Summary.Processed),
		zap.Int("succeeded", run.Summary.Succeeded),
		zap.Int("failed", run.Summary.Failed),
		zap.Int("skipped", run.Summary.Skipped),
		zap.Int("downloaded", run.Summary.Downloaded),
	)
	return run, phaseErr
}
