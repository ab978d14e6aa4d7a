package executor

// retry.go implements the per-batch retry policy from spec §4.E: on a
// transient sink error, sleep initialDelay·multiplier^(attempt-1) (capped at
// MaxDelay) and retry up to MaxAttempts; permanent errors fail immediately.

import (
	"context"
	"math"
	"time"

	"github.com/levanminh/xlmigrate/internal/errs"
)

// withRetry invokes fn up to cfg.MaxAttempts times, sleeping between
// attempts according to the exponential backoff policy. It returns the
// final error (nil on success) and the number of retries actually taken
// (attempts beyond the first).
func withRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) (err error, retries int) {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil, retries
		}

		if !errs.IsTransient(err) {
			return err, retries
		}
		if attempt == maxAttempts {
			return err, retries
		}

		delay := backoffDelay(cfg, attempt)
		select {
		case <-ctx.Done():
			return ctx.Err(), retries
		case <-time.After(delay):
		}
		retries++
	}
	return err, retries
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier <= 1 {
		multiplier = 2
	}
	delay := float64(cfg.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	d := time.Duration(delay)
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d
}
