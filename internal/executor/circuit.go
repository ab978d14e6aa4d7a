package executor

// circuit.go implements the sliding-window circuit breaker described in
// spec §4.E: once `failureRateThreshold` of the last `windowSize` batches
// have failed, the breaker opens and fast-fails new batches with
// errs.CircuitOpen for `openDuration`; a single trial batch afterwards
// determines whether it closes again or re-opens.

import (
	"sync"
	"time"
)

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// circuitBreaker is safe for concurrent use by the executor's worker pool.
type circuitBreaker struct {
	cfg CircuitConfig

	mu        sync.Mutex
	state     circuitState
	window    []bool // true = success, oldest first
	openUntil time.Time
	trialBusy bool
}

func newCircuitBreaker(cfg CircuitConfig) *circuitBreaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 10
	}
	if cfg.FailureRateThreshold <= 0 {
		cfg.FailureRateThreshold = 0.5
	}
	return &circuitBreaker{cfg: cfg, state: circuitClosed}
}

// Allow reports whether a new batch may be dispatched to the sink. When the
// breaker is open and the open window has not elapsed, it returns false.
// When the open window has just elapsed, it admits exactly one trial batch
// and transitions to half-open.
func (b *circuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if time.Now().Before(b.openUntil) {
			return false
		}
		b.state = circuitHalfOpen
		b.trialBusy = true
		return true
	case circuitHalfOpen:
		// Only one trial batch in flight at a time.
		if b.trialBusy {
			return false
		}
		b.trialBusy = true
		return true
	default:
		return true
	}
}

// Record reports the outcome of a batch dispatched after a successful Allow.
func (b *circuitBreaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == circuitHalfOpen {
		b.trialBusy = false
		if success {
			b.state = circuitClosed
			b.window = nil
		} else {
			b.state = circuitOpen
			b.openUntil = time.Now().Add(b.cfg.OpenDuration)
		}
		return
	}

	b.window = append(b.window, success)
	if len(b.window) > b.cfg.WindowSize {
		b.window = b.window[len(b.window)-b.cfg.WindowSize:]
	}

	if len(b.window) < b.cfg.WindowSize {
		return
	}

	failures := 0
	for _, ok := range b.window {
		if !ok {
			failures++
		}
	}
	failureRate := float64(failures) / float64(len(b.window))
	if failureRate >= b.cfg.FailureRateThreshold {
		b.state = circuitOpen
		b.openUntil = time.Now().Add(b.cfg.OpenDuration)
		b.window = nil
	}
}

// IsOpen reports the breaker's current state for status/telemetry purposes.
func (b *circuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == circuitOpen && time.Now().Before(b.openUntil)
}
