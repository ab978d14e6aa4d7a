package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/levanminh/xlmigrate/internal/errs"
	"github.com/levanminh/xlmigrate/internal/staging"
)

const duplicateCode = "DUPLICATE_WITHIN_FILE"

// runValidate re-runs cross-row checks that need the whole staging set —
// today, duplicate-within-file detection by the caller-supplied natural
// key — and promotes every staging_raw row into staging_valid or
// staging_error (spec §4.G's Validate contract).
func (o *Orchestrator[T]) runValidate(ctx context.Context, jobID string) error {
	if err := o.store.AdvancePhase(ctx, jobID, staging.PhaseValidating, ""); err != nil {
		return err
	}
	ctx, cancel := o.phaseTimeoutCtx(ctx)
	defer cancel()

	dupCounts := map[string]int{}
	if o.dupKey != nil {
		rows, errCh := o.store.StreamRaw(ctx, jobID)
		for r := range rows {
			var row T
			if err := json.Unmarshal(r.Payload, &row); err != nil {
				continue // unparseable payloads were already flagged at ingest
			}
			dupCounts[o.dupKey(row)]++
		}
		if err := <-errCh; err != nil {
			return o.fail(ctx, jobID, staging.PhaseValidating, err)
		}
	}

	validTbl := staging.Table[staging.StagedRow]{
		Name:    "staging_valid",
		Columns: []string{"job_id", "row_number", "payload"},
		ToRow:   func(r staging.StagedRow) []any { return []any{jobID, r.RowNumber, r.Payload} },
	}
	errorTbl := staging.Table[staging.StagedError]{
		Name:    "staging_error",
		Columns: []string{"job_id", "row_number", "payload", "error_code", "error_message"},
		ToRow: func(r staging.StagedError) []any {
			return []any{jobID, r.RowNumber, r.Payload, r.ErrorCode, r.ErrorMessage}
		},
	}

	rows, errCh := o.store.StreamRaw(ctx, jobID)
	var validRows, errorRows int
	var validBatch []staging.StagedRow
	var errorBatch []staging.StagedError
	flush := func() error {
		if len(validBatch) > 0 {
			if _, err := staging.BulkInsert(ctx, o.pool, validTbl, validBatch); err != nil {
				return err
			}
			validBatch = validBatch[:0]
		}
		if len(errorBatch) > 0 {
			if _, err := staging.BulkInsert(ctx, o.pool, errorTbl, errorBatch); err != nil {
				return err
			}
			errorBatch = errorBatch[:0]
		}
		return nil
	}

	for r := range rows {
		code, msg := r.ErrorCode, r.ErrorMessage
		if o.dupKey != nil {
			var row T
			if err := json.Unmarshal(r.Payload, &row); err == nil {
				if dupCounts[o.dupKey(row)] > 1 {
					if code != "" {
						code += ","
						msg += "; "
					}
					code += duplicateCode
					msg += "duplicate natural key within file"
				}
			}
		}

		if code == "" {
			validRows++
			validBatch = append(validBatch, staging.StagedRow{RowNumber: r.RowNumber, Payload: r.Payload})
		} else {
			errorRows++
			errorBatch = append(errorBatch, staging.StagedError{RowNumber: r.RowNumber, Payload: r.Payload, ErrorCode: code, ErrorMessage: msg})
		}

		if len(validBatch) >= o.cfg.IngestBatchSize || len(errorBatch) >= o.cfg.IngestBatchSize {
			if err := flush(); err != nil {
				return o.fail(ctx, jobID, staging.PhaseValidating, err)
			}
		}
	}
	if err := <-errCh; err != nil {
		return o.fail(ctx, jobID, staging.PhaseValidating, err)
	}
	if err := flush(); err != nil {
		return o.fail(ctx, jobID, staging.PhaseValidating, err)
	}

	total := validRows + errorRows
	if err := o.store.UpdateCounters(ctx, jobID, total, total, errorRows, validRows); err != nil {
		return err
	}

	rawCount, err := o.store.CountByJob(ctx, jobID)
	if err != nil {
		return err
	}
	if int(rawCount) != total {
		return o.fail(ctx, jobID, staging.PhaseValidating,
			errs.Newf(errs.ReconciliationMismatch, false, "validate: staging_valid+staging_error (%d) != staging_raw (%d)", total, rawCount))
	}

	return o.store.AdvancePhase(ctx, jobID, staging.PhaseValidated, "")
}
