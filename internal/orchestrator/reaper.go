package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/levanminh/xlmigrate/internal/staging"
)

// StaleReaperConfig controls the background sweep that fails jobs stuck
// in a running phase past their per-phase timeout without ever reaching
// a terminal state — e.g. a process crash mid-phase leaves the job row
// behind in INGESTING forever otherwise.
type StaleReaperConfig struct {
	CheckInterval time.Duration // default 5m
	StaleAfter    time.Duration // default cfg.PhaseTimeout
}

// DefaultStaleReaperConfig returns sensible defaults; StaleAfter of zero
// means "use the Orchestrator's own PhaseTimeout" (resolved in RunStaleReaper).
func DefaultStaleReaperConfig() StaleReaperConfig {
	return StaleReaperConfig{CheckInterval: 5 * time.Minute}
}

// RunStaleReaper runs until ctx is cancelled, periodically failing any job
// whose current running phase has been active longer than staleAfter.
// Grounded on the teacher's archive scheduler's run-immediately-then-tick
// shape, adapted from a maintenance sweep into a job-liveness sweep.
func (o *Orchestrator[T]) RunStaleReaper(ctx context.Context, cfg StaleReaperConfig) {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultStaleReaperConfig().CheckInterval
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = o.cfg.PhaseTimeout
	}

	slog.Info("orchestrator: stale-phase reaper started", "check_interval", cfg.CheckInterval, "stale_after", staleAfter)
	o.reapOnce(ctx, staleAfter)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("orchestrator: stale-phase reaper stopped")
			return
		case <-ticker.C:
			o.reapOnce(ctx, staleAfter)
		}
	}
}

func (o *Orchestrator[T]) reapOnce(ctx context.Context, staleAfter time.Duration) {
	jobIDs, err := o.store.StaleRunningJobIDs(ctx, staleAfter)
	if err != nil {
		slog.Error("orchestrator: stale-phase scan failed", "error", err)
		return
	}
	for _, jobID := range jobIDs {
		slog.Warn("orchestrator: reaping stale job", "job_id", jobID)
		if err := o.store.AdvancePhase(ctx, jobID, staging.PhaseFailed, "reaped: phase exceeded its timeout without completing"); err != nil {
			slog.Error("orchestrator: failed to reap stale job", "job_id", jobID, "error", err)
		}
	}
}
