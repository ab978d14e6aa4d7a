package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func makeStream[T any](batches ...Batch[T]) <-chan Batch[T] {
	ch := make(chan Batch[T], len(batches))
	for _, b := range batches {
		ch <- b
	}
	close(ch)
	return ch
}

func TestRun_SequentialCountsProcessed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = Sequential
	e := New[int](cfg)

	stream := makeStream(
		Batch[int]{Rows: []int{1, 2, 3}, StartRow: 1},
		Batch[int]{Rows: []int{4, 5}, StartRow: 4},
	)

	sink := func(ctx context.Context, b Batch[int]) error { return nil }
	res, err := e.Run(context.Background(), stream, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Processed != 5 || res.Failed != 0 {
		t.Errorf("Processed=%d Failed=%d, want 5/0", res.Processed, res.Failed)
	}
}

func TestRun_BoundedParallelOrderIndependent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = BoundedParallel
	cfg.MaxConcurrentBatches = 4
	e := New[int](cfg)

	batches := make([]Batch[int], 20)
	for i := range batches {
		batches[i] = Batch[int]{Rows: []int{i}, StartRow: i}
	}
	stream := makeStream(batches...)

	var seen sync.Map
	sink := func(ctx context.Context, b Batch[int]) error {
		seen.Store(b.StartRow, true)
		return nil
	}
	res, err := e.Run(context.Background(), stream, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Processed != 20 {
		t.Errorf("Processed = %d, want 20", res.Processed)
	}
	for i := range batches {
		if _, ok := seen.Load(i); !ok {
			t.Errorf("batch %d never reached the sink", i)
		}
	}
}

func TestRun_ReactiveMatchesBoundedParallel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = Reactive
	cfg.MaxConcurrentBatches = 2
	e := New[int](cfg)

	stream := makeStream(
		Batch[int]{Rows: []int{1, 2}, StartRow: 1},
		Batch[int]{Rows: []int{3}, StartRow: 3},
	)
	sink := func(ctx context.Context, b Batch[int]) error { return nil }
	res, err := e.Run(context.Background(), stream, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Processed != 3 {
		t.Errorf("Processed = %d, want 3", res.Processed)
	}
}

type transientErr struct{}

func (transientErr) Error() string { return "connection reset by peer" }

func TestRun_RetryConvergesOnTransientFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = Sequential
	cfg.Retry = RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 10 * time.Millisecond}
	e := New[int](cfg)

	var calls int64
	sink := func(ctx context.Context, b Batch[int]) error {
		n := atomic.AddInt64(&calls, 1)
		if n < 3 {
			return transientErr{}
		}
		return nil
	}
	stream := makeStream(Batch[int]{Rows: []int{1}, StartRow: 1})
	res, err := e.Run(context.Background(), stream, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Processed != 1 || res.Failed != 0 {
		t.Errorf("Processed=%d Failed=%d, want 1/0", res.Processed, res.Failed)
	}
	if res.RetriedCount != 2 {
		t.Errorf("RetriedCount = %d, want 2", res.RetriedCount)
	}
}

func TestRun_PermanentErrorFailsWithoutRetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = Sequential
	e := New[int](cfg)

	var calls int64
	sink := func(ctx context.Context, b Batch[int]) error {
		atomic.AddInt64(&calls, 1)
		return errors.New("zip: not a valid zip file")
	}
	stream := makeStream(Batch[int]{Rows: []int{1, 2}, StartRow: 1})
	res, err := e.Run(context.Background(), stream, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Failed != 2 || res.Processed != 0 {
		t.Errorf("Processed=%d Failed=%d, want 0/2", res.Processed, res.Failed)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Errorf("sink called %d times, want 1 (no retry on permanent error)", calls)
	}
}

func TestRun_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = Sequential
	cfg.Retry = RetryConfig{MaxAttempts: 1}
	cfg.Circuit = CircuitConfig{WindowSize: 4, FailureRateThreshold: 0.5, OpenDuration: time.Hour}
	e := New[int](cfg)

	var sinkCalls int64
	failingSink := func(ctx context.Context, b Batch[int]) error {
		atomic.AddInt64(&sinkCalls, 1)
		return errors.New("deadlock detected")
	}

	batches := make([]Batch[int], 8)
	for i := range batches {
		batches[i] = Batch[int]{Rows: []int{i}, StartRow: i}
	}
	stream := makeStream(batches...)

	res, err := e.Run(context.Background(), stream, failingSink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Failed != 8 {
		t.Errorf("Failed = %d, want 8 (all rows counted failed even once circuit opens)", res.Failed)
	}
	// Once the window (4) fills with failures the breaker opens and the
	// remaining batches are rejected without reaching the sink.
	if calls := atomic.LoadInt64(&sinkCalls); calls >= 8 {
		t.Errorf("sink called %d times, want fewer than 8 once the circuit opens", calls)
	}
}

func TestExecutor_ShutdownStopsAcceptingNewBatches(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Strategy = Sequential
	e := New[int](cfg)
	e.Shutdown()

	stream := makeStream(Batch[int]{Rows: []int{1}, StartRow: 1})
	sink := func(ctx context.Context, b Batch[int]) error { return nil }
	res, err := e.Run(context.Background(), stream, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Processed != 0 {
		t.Errorf("Processed = %d, want 0 after shutdown requested before Run", res.Processed)
	}
	if res.Abandoned != 1 {
		t.Errorf("Abandoned = %d, want 1", res.Abandoned)
	}
}
