package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/levanminh/xlmigrate/internal/errs"
	"github.com/levanminh/xlmigrate/internal/executor"
	"github.com/levanminh/xlmigrate/internal/logging"
	"github.com/levanminh/xlmigrate/internal/staging"
	"github.com/levanminh/xlmigrate/internal/validate"
)

// DuplicateKeyFunc extracts the natural key used by the Validate phase's
// cross-row duplicate-within-file check. A nil func skips that check.
type DuplicateKeyFunc[T any] func(row T) string

// Orchestrator drives one job type T through Ingest/Validate/Apply/
// Reconcile. One Orchestrator is built per application row type and
// shared across jobs; each Start call is independent and keyed by jobId.
type Orchestrator[T any] struct {
	store      *staging.Store
	pool       *pgxpool.Pool
	cfg        Config
	sheetName  string
	validator  *validate.Validator[T]
	dupKey     DuplicateKeyFunc[T]
	targets    []Target[T]
	execConfig executor.Config
}

// Deps bundles the caller-supplied, application-specific pieces of a
// migration: which worksheet to read, how to field-validate a row, how to
// detect cross-row duplicates, and where Apply writes master rows.
type Deps[T any] struct {
	SheetName      string
	Validator      *validate.Validator[T]
	DuplicateKey   DuplicateKeyFunc[T] // optional
	Targets        []Target[T]
	ExecutorConfig executor.Config // zero value uses executor.DefaultConfig()
}

// New builds an Orchestrator. cfg's zero fields fall back to DefaultConfig.
func New[T any](store *staging.Store, pool *pgxpool.Pool, cfg Config, deps Deps[T]) (*Orchestrator[T], error) {
	if cfg.MaxConcurrentSheets <= 0 {
		cfg.MaxConcurrentSheets = DefaultConfig().MaxConcurrentSheets
	}
	if cfg.PhaseTimeout <= 0 {
		cfg.PhaseTimeout = DefaultConfig().PhaseTimeout
	}
	if cfg.IngestBatchSize <= 0 {
		cfg.IngestBatchSize = DefaultConfig().IngestBatchSize
	}
	if cfg.Limits.MaxRows <= 0 || cfg.Limits.MaxCells <= 0 {
		cfg.Limits = DefaultConfig().Limits
	}
	if deps.SheetName == "" {
		return nil, fmt.Errorf("orchestrator: SheetName is required")
	}
	if _, err := levelize(deps.Targets); err != nil {
		return nil, err
	}

	execCfg := deps.ExecutorConfig
	if execCfg.MaxConcurrentBatches <= 0 {
		execCfg = executor.DefaultConfig()
	}

	return &Orchestrator[T]{
		store:      store,
		pool:       pool,
		cfg:        cfg,
		sheetName:  deps.SheetName,
		validator:  deps.Validator,
		dupKey:     deps.DuplicateKey,
		targets:    deps.Targets,
		execConfig: execCfg,
	}, nil
}

// StartResult is returned by Start; for an idempotent no-op restart it
// reflects the job's state as found rather than as re-run.
type StartResult struct {
	JobID      string
	Phase      staging.Phase
	AlreadyRan bool // true if Start found the job in any phase other than PENDING or FAILED
}

// Start begins or resumes jobID's migration (spec §4.G's idempotency
// contract): a COMPLETED job returns immediately with its existing
// result, a job in any other phase except PENDING and FAILED is returned
// as found (its current phase, AlreadyRan set) without re-entering any
// phase, and a FAILED job resumes from the phase after its last
// successful one.
func (o *Orchestrator[T]) Start(ctx context.Context, jobID, filePath, createdBy string) (StartResult, error) {
	job, err := o.ensureJob(ctx, jobID, filePath, createdBy)
	if err != nil {
		return StartResult{}, err
	}

	switch job.Phase {
	case staging.PhaseCompleted:
		return StartResult{JobID: jobID, Phase: job.Phase, AlreadyRan: true}, nil
	case staging.PhasePending, staging.PhaseFailed:
		// proceed below
	default:
		return StartResult{JobID: jobID, Phase: job.Phase, AlreadyRan: true}, nil
	}

	resumeFrom := staging.PhasePending
	if job.Phase == staging.PhaseFailed {
		resumeFrom = staging.PreviousPhase(o.failedOutOfPhase(ctx, jobID))
	}

	if err := o.runFrom(ctx, jobID, filePath, resumeFrom); err != nil {
		return StartResult{}, err
	}
	final, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{JobID: jobID, Phase: final.Phase}, nil
}

// ensureJob fetches jobID, creating it in PENDING if it doesn't exist yet.
// Every entry point that can be the first call for a given jobID (Start,
// IngestOnly) goes through this so AdvancePhase/UpdateCounters never
// silently no-op against a missing row.
func (o *Orchestrator[T]) ensureJob(ctx context.Context, jobID, filePath, createdBy string) (*staging.Job, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err == nil {
		return job, nil
	}
	if errs.Classify(err).Token != errs.JobNotFound {
		return nil, err
	}
	if createdBy == "" {
		createdBy = "system"
	}
	if _, err := o.store.CreateJob(ctx, jobID, filePath, createdBy); err != nil {
		return nil, err
	}
	return o.store.GetJob(ctx, jobID)
}

// failedOutOfPhase recovers which running phase a FAILED job was in.
// AdvancePhase only leaves job.phase = FAILED, so the running phase is
// recovered from lastError's "<PHASE>: <message>" prefix convention,
// written by fail below.
func (o *Orchestrator[T]) failedOutOfPhase(ctx context.Context, jobID string) staging.Phase {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return staging.PhasePending
	}
	return phaseFromLastError(job.LastError)
}

// runFrom drives every phase in forward order starting at (and including)
// from, stopping at the first failure.
func (o *Orchestrator[T]) runFrom(ctx context.Context, jobID, filePath string, from staging.Phase) error {
	phases := []staging.Phase{
		staging.PhasePending,
		staging.PhaseIngestCompleted,
		staging.PhaseValidated,
		staging.PhaseApplied,
	}
	started := from == staging.PhasePending
	for _, p := range phases {
		if !started {
			if p == from {
				started = true
			} else {
				continue
			}
		}
		var err error
		switch p {
		case staging.PhasePending:
			err = o.runIngest(ctx, jobID, filePath)
		case staging.PhaseIngestCompleted:
			err = o.runValidate(ctx, jobID)
		case staging.PhaseValidated:
			err = o.runApply(ctx, jobID)
		case staging.PhaseApplied:
			err = o.runReconcile(ctx, jobID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// phaseTimeoutCtx applies the per-phase wall-clock budget (spec §5).
func (o *Orchestrator[T]) phaseTimeoutCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.cfg.PhaseTimeout)
}

// fail records a phase-fatal error and transitions the job to FAILED,
// tagging lastError with the phase that was running so a later restart
// resumes from the right point (see phaseFromLastError).
func (o *Orchestrator[T]) fail(ctx context.Context, jobID string, runningPhase staging.Phase, err error) error {
	tagged := fmt.Sprintf("%s: %s", runningPhase, errs.MapError(err).Message)
	logging.WithFields(ctx, "job_id", jobID, "phase", runningPhase).Error("orchestrator: phase failed", "error", err)
	if aerr := o.store.AdvancePhase(ctx, jobID, staging.PhaseFailed, tagged); aerr != nil {
		return aerr
	}
	return err
}

func phaseFromLastError(lastError string) staging.Phase {
	for _, p := range []staging.Phase{
		staging.PhaseIngesting, staging.PhaseValidating, staging.PhaseApplying, staging.PhaseReconciling,
	} {
		if len(lastError) >= len(p) && lastError[:len(p)] == string(p) {
			return p
		}
	}
	return staging.PhasePending
}

// IngestOnly runs just the Ingest phase (spec §6's /migration/excel/ingest-only),
// regardless of the job's current phase — ingest is idempotent on
// (jobId, rowNumber) so re-running it is always safe. createdBy is only
// used if jobID names a job that doesn't exist yet.
func (o *Orchestrator[T]) IngestOnly(ctx context.Context, jobID, filePath, createdBy string) error {
	if _, err := o.ensureJob(ctx, jobID, filePath, createdBy); err != nil {
		return err
	}
	return o.runIngest(ctx, jobID, filePath)
}

// RunValidate runs just the Validate phase (spec §6's /migration/job/{jobId}/validate).
func (o *Orchestrator[T]) RunValidate(ctx context.Context, jobID string) error {
	return o.runValidate(ctx, jobID)
}

// RunApply runs just the Apply phase (spec §6's /migration/job/{jobId}/apply).
func (o *Orchestrator[T]) RunApply(ctx context.Context, jobID string) error {
	return o.runApply(ctx, jobID)
}

// RunReconcile runs just the Reconcile phase (spec §6's /migration/job/{jobId}/reconcile).
// Re-running it after a RECONCILIATION_MISMATCH, possibly following a
// fresh RunApply call, is the restart path named in spec's S6 scenario.
func (o *Orchestrator[T]) RunReconcile(ctx context.Context, jobID string) error {
	return o.runReconcile(ctx, jobID)
}

func marshalPayload(v any) ([]byte, error) {
	return json.Marshal(v)
}
