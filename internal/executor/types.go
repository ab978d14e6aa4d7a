// Package executor implements the Batch Executor (spec §4.E): it accumulates
// rows into fixed-size batches — received already-batched from the reader —
// and dispatches them to a caller-supplied sink with bounded concurrency,
// retry on transient faults, circuit breaking, and graceful shutdown.
//
// The core is generic over the row type T so it can serve both the Ingest
// phase (sink = bulk insert into staging_raw) and the Apply phase (sink =
// bulk insert into a master table), matching spec §1's "the core is
// parameterized over a row type."
package executor

import (
	"context"
	"time"
)

// Strategy selects how batches are dispatched to the sink (spec §4.E).
type Strategy string

const (
	// Sequential processes one batch fully before the next is produced.
	// Lowest memory; used when the sink is CPU-bound or enforces ordering.
	Sequential Strategy = "sequential"

	// BoundedParallel runs a pool of workers pulling from a bounded channel,
	// backpressure comes from the channel itself. Recommended default.
	BoundedParallel Strategy = "bounded_parallel"

	// Reactive is externally equivalent to BoundedParallel but is built on
	// golang.org/x/sync/errgroup's explicit concurrency limit rather than a
	// hand-rolled semaphore, for sinks that are themselves asynchronous.
	Reactive Strategy = "reactive"
)

// RetryConfig controls per-batch retry on transient sink errors.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultRetryConfig matches spec §4.E's defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 5 * time.Second,
		Multiplier:   2,
		MaxDelay:     2 * time.Minute,
	}
}

// CircuitConfig controls the sliding-window circuit breaker.
type CircuitConfig struct {
	WindowSize           int
	FailureRateThreshold float64
	OpenDuration         time.Duration
}

// DefaultCircuitConfig matches spec §4.E's defaults.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		WindowSize:           10,
		FailureRateThreshold: 0.5,
		OpenDuration:         30 * time.Second,
	}
}

// Config bundles the executor's tunables (spec §4.E, §6).
type Config struct {
	MaxConcurrentBatches int
	Strategy             Strategy
	Retry                RetryConfig
	Circuit              CircuitConfig
	SinkTimeout          time.Duration
	ShutdownDrainTimeout time.Duration
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentBatches: 4,
		Strategy:             BoundedParallel,
		Retry:                DefaultRetryConfig(),
		Circuit:              DefaultCircuitConfig(),
		SinkTimeout:          30 * time.Second,
		ShutdownDrainTimeout: 5 * time.Minute,
	}
}

// Batch is an in-memory ordered sequence of rows carrying the row number of
// the first row, for diagnostics (spec §3's Batch type).
type Batch[T any] struct {
	Rows     []T
	StartRow int
}

// SinkFunc persists a batch. Returning an error classified as transient (see
// internal/errs) triggers the executor's retry policy; any other error is
// permanent and fails the batch immediately.
type SinkFunc[T any] func(ctx context.Context, batch Batch[T]) error

// Result is returned by Run once the row stream is exhausted or shutdown
// completes (spec §4.E's run() contract).
type Result struct {
	Processed    int
	Failed       int
	RetriedCount int
	DurationMs   int64
	Abandoned    int // rows left unread in the stream when Run stopped consuming it (shutdown or cancellation)
}
