package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/levanminh/xlmigrate/internal/errs"
	"github.com/levanminh/xlmigrate/internal/executor"
	"github.com/levanminh/xlmigrate/internal/staging"
)

// runApply streams staging_valid into every Target in dependency order
// (spec §4.G's Apply contract): targets within one dependency level run
// concurrently up to cfg.MaxConcurrentSheets, and a failure in one target
// does not cancel another still running in the same level. Every level
// runs even after a failure; each failing target is logged, and the first
// error is reported once all levels have finished.
func (o *Orchestrator[T]) runApply(ctx context.Context, jobID string) error {
	if len(o.targets) == 0 {
		// Nothing to apply into; with no target reporting a count, Reconcile
		// treats insertedCount as equal to validCount.
		return o.store.AdvancePhase(ctx, jobID, staging.PhaseApplied, "")
	}

	if err := o.store.AdvancePhase(ctx, jobID, staging.PhaseApplying, ""); err != nil {
		return err
	}
	ctx, cancel := o.phaseTimeoutCtx(ctx)
	defer cancel()

	levels, err := levelize(o.targets)
	if err != nil {
		return o.fail(ctx, jobID, staging.PhaseApplying, err)
	}

	sem := semaphore.NewWeighted(int64(o.cfg.MaxConcurrentSheets))
	var firstErr error
	var mu sync.Mutex

	for _, level := range levels {
		var wg sync.WaitGroup
		for _, target := range level {
			target := target
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				if err := o.applyTarget(ctx, jobID, target); err != nil {
					slog.Error("orchestrator: target apply failed", "job_id", jobID, "target", target.Name, "error", err)
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}()
		}
		wg.Wait() // a level must fully finish (deps resolved) before the next starts
	}

	if firstErr != nil {
		return o.fail(ctx, jobID, staging.PhaseApplying, firstErr)
	}
	return o.store.AdvancePhase(ctx, jobID, staging.PhaseApplied, "")
}

// applyTarget streams the whole of staging_valid through one target's
// Apply func, batch by batch, using the same retry/circuit policy as
// Ingest.
func (o *Orchestrator[T]) applyTarget(ctx context.Context, jobID string, target Target[T]) error {
	exec := executor.New[T](o.execConfig)
	sink := func(ctx context.Context, batch executor.Batch[T]) error {
		_, err := target.Apply(ctx, o.pool, batch.Rows)
		return err
	}

	rows, errCh := o.store.StreamValid(ctx, jobID)
	stream := make(chan executor.Batch[T], 2*o.execConfig.MaxConcurrentBatches)

	go func() {
		defer close(stream)
		batch := executor.Batch[T]{}
		for r := range rows {
			var row T
			if err := json.Unmarshal(r.Payload, &row); err != nil {
				continue
			}
			if len(batch.Rows) == 0 {
				batch.StartRow = r.RowNumber
			}
			batch.Rows = append(batch.Rows, row)
			if len(batch.Rows) >= o.cfg.IngestBatchSize {
				select {
				case stream <- batch:
				case <-ctx.Done():
					return
				}
				batch = executor.Batch[T]{}
			}
		}
		if len(batch.Rows) > 0 {
			select {
			case stream <- batch:
			case <-ctx.Done():
			}
		}
	}()

	result, runErr := exec.Run(ctx, stream, sink)
	if err := <-errCh; err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if result.Failed > 0 {
		return errs.Newf(errs.PhaseFailed, false, "apply: target %q failed on %d rows", target.Name, result.Failed)
	}
	return nil
}
