package orchestrator

import (
	"context"

	"github.com/levanminh/xlmigrate/internal/errs"
	"github.com/levanminh/xlmigrate/internal/staging"
)

// runReconcile computes validCount and insertedCount and asserts that they
// are equal; rawCount and errorCount are not computed here.
// insertedCount comes from the primary target's CountApplied, since the
// master schema is application-defined and not something this package can
// count generically.
func (o *Orchestrator[T]) runReconcile(ctx context.Context, jobID string) error {
	if err := o.store.AdvancePhase(ctx, jobID, staging.PhaseReconciling, ""); err != nil {
		return err
	}
	ctx, cancel := o.phaseTimeoutCtx(ctx)
	defer cancel()

	validCount, err := o.store.CountValid(ctx, jobID)
	if err != nil {
		return err
	}

	var insertedCount int64
	if primary, ok := primaryTarget(o.targets); ok && primary.CountApplied != nil {
		insertedCount, err = primary.CountApplied(ctx, o.pool, jobID)
		if err != nil {
			return o.fail(ctx, jobID, staging.PhaseReconciling, err)
		}
	} else {
		// No target wired a CountApplied (e.g. no targets at all, spec's
		// "core is parameterized over a row type" with application-level
		// apply out of scope): treat insertedCount as vacuously equal.
		insertedCount = validCount
	}

	if insertedCount != validCount {
		return o.fail(ctx, jobID, staging.PhaseReconciling,
			errs.Newf(errs.ReconciliationMismatch, false,
				"reconcile: validCount (%d) != insertedCount (%d)", validCount, insertedCount))
	}

	return o.store.AdvancePhase(ctx, jobID, staging.PhaseCompleted, "")
}
