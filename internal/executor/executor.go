package executor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/levanminh/xlmigrate/internal/errs"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Executor dispatches batches of T to a sink with the strategy, retry, and
// circuit-breaking policy described in spec §4.E. One Executor instance is
// scoped to a single phase run; construct a fresh one per Run.
type Executor[T any] struct {
	cfg     Config
	breaker *circuitBreaker

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New constructs an Executor. Zero-value fields in cfg fall back to the
// spec's documented defaults.
func New[T any](cfg Config) *Executor[T] {
	if cfg.MaxConcurrentBatches <= 0 {
		cfg.MaxConcurrentBatches = DefaultConfig().MaxConcurrentBatches
	}
	if cfg.Strategy == "" {
		cfg.Strategy = BoundedParallel
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = DefaultConfig().SinkTimeout
	}
	if cfg.ShutdownDrainTimeout <= 0 {
		cfg.ShutdownDrainTimeout = DefaultConfig().ShutdownDrainTimeout
	}
	return &Executor[T]{
		cfg:        cfg,
		breaker:    newCircuitBreaker(cfg.Circuit),
		shutdownCh: make(chan struct{}),
	}
}

// Shutdown signals Run to stop accepting new batches from the stream. Run
// then waits for the batches already dispatched to finish and reports the
// rows still buffered in the stream as Abandoned. That wait has no time
// limit: cfg.ShutdownDrainTimeout is not consulted. Safe to call more than
// once or concurrently with Run.
func (e *Executor[T]) Shutdown() {
	e.shutdownOnce.Do(func() { close(e.shutdownCh) })
}

// Run pulls batches from the stream until it is closed (or shutdown is
// requested) and dispatches each to sink according to the configured
// strategy. It returns once every accepted batch has been acknowledged.
//
// The stream is expected to be produced by a single goroutine (the reader)
// and closed on completion — completion is signalled by the close, not by
// collecting futures, per spec §9's design note.
func (e *Executor[T]) Run(ctx context.Context, stream <-chan Batch[T], sink SinkFunc[T]) (Result, error) {
	start := time.Now()
	var processed, failed, retried, abandoned int64

	process := func(ctx context.Context, batch Batch[T]) {
		if !e.breaker.Allow() {
			atomic.AddInt64(&failed, int64(len(batch.Rows)))
			slog.Warn("executor: circuit open, batch rejected",
				"start_row", batch.StartRow, "rows", len(batch.Rows))
			return
		}

		sinkErr, retries := withRetry(ctx, e.cfg.Retry, func(ctx context.Context) error {
			sinkCtx, cancel := context.WithTimeout(ctx, e.cfg.SinkTimeout)
			defer cancel()
			return sink(sinkCtx, batch)
		})
		atomic.AddInt64(&retried, int64(retries))
		e.breaker.Record(sinkErr == nil)

		if sinkErr != nil {
			atomic.AddInt64(&failed, int64(len(batch.Rows)))
			slog.Error("executor: batch failed",
				"start_row", batch.StartRow, "rows", len(batch.Rows),
				"error", sinkErr, "token", errs.Classify(sinkErr).Token)
			return
		}
		atomic.AddInt64(&processed, int64(len(batch.Rows)))
	}

	var runErr error
	switch e.cfg.Strategy {
	case Sequential:
		runErr = e.runSequential(ctx, stream, process)
	case Reactive:
		runErr = e.runReactive(ctx, stream, process)
	default:
		runErr = e.runBoundedParallel(ctx, stream, process)
	}

	abandoned = e.drainRemainder(stream)

	return Result{
		Processed:    int(processed),
		Failed:       int(failed),
		RetriedCount: int(retried),
		DurationMs:   time.Since(start).Milliseconds(),
		Abandoned:    int(abandoned),
	}, runErr
}

func (e *Executor[T]) runSequential(ctx context.Context, stream <-chan Batch[T], process func(context.Context, Batch[T])) error {
	for {
		// A requested shutdown takes precedence over a batch already waiting.
		select {
		case <-e.shutdownCh:
			return nil
		default:
		}
		select {
		case <-e.shutdownCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-stream:
			if !ok {
				return nil
			}
			process(ctx, batch)
		}
	}
}

// runBoundedParallel implements the recommended-default strategy: a pool of
// MaxConcurrentBatches workers pulling from the bounded stream, backpressure
// coming from the channel itself (spec §4.E, §5). Grounded on the teacher's
// upload_limiter.go semaphore-acquire/release shape.
func (e *Executor[T]) runBoundedParallel(ctx context.Context, stream <-chan Batch[T], process func(context.Context, Batch[T])) error {
	sem := semaphore.NewWeighted(int64(e.cfg.MaxConcurrentBatches))
	var wg sync.WaitGroup

	for {
		// A requested shutdown takes precedence over a batch already waiting.
		select {
		case <-e.shutdownCh:
			wg.Wait()
			return nil
		default:
		}
		select {
		case <-e.shutdownCh:
			wg.Wait()
			return nil
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case batch, ok := <-stream:
			if !ok {
				wg.Wait()
				return nil
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return err
			}
			wg.Add(1)
			go func(b Batch[T]) {
				defer wg.Done()
				defer sem.Release(1)
				process(ctx, b)
			}(batch)
		}
	}
}

// runReactive is externally equivalent to BoundedParallel but built on
// errgroup's explicit concurrency limit instead of a hand-rolled semaphore,
// for sinks that are themselves asynchronous (spec §4.E).
func (e *Executor[T]) runReactive(ctx context.Context, stream <-chan Batch[T], process func(context.Context, Batch[T])) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrentBatches)

loop:
	for {
		// A requested shutdown takes precedence over a batch already waiting.
		select {
		case <-e.shutdownCh:
			break loop
		default:
		}
		select {
		case <-e.shutdownCh:
			break loop
		case <-gctx.Done():
			break loop
		case batch, ok := <-stream:
			if !ok {
				break loop
			}
			b := batch
			g.Go(func() error {
				process(gctx, b)
				return nil
			})
		}
	}
	return g.Wait()
}

// drainRemainder counts rows left in the stream after Run stops consuming
// (shutdown or context cancellation) so the caller can log how many rows
// were abandoned rather than silently dropping them. It does not block: a
// stream not closed by its producer will simply report what was already
// buffered.
func (e *Executor[T]) drainRemainder(stream <-chan Batch[T]) int64 {
	var abandoned int64
	for {
		select {
		case batch, ok := <-stream:
			if !ok {
				return abandoned
			}
			abandoned += int64(len(batch.Rows))
		default:
			return abandoned
		}
	}
}
