package orchestrator

import (
	"context"
	"log/slog"

	"github.com/levanminh/xlmigrate/internal/errs"
	"github.com/levanminh/xlmigrate/internal/executor"
	"github.com/levanminh/xlmigrate/internal/rowmap"
	"github.com/levanminh/xlmigrate/internal/staging"
	"github.com/levanminh/xlmigrate/internal/xlsx"
)

func rawStagingTable(jobID string) staging.Table[rawRow] {
	return staging.Table[rawRow]{
		Name:    "staging_raw",
		Columns: []string{"job_id", "row_number", "payload", "error_code", "error_message"},
		ToRow: func(r rawRow) []any {
			return []any{jobID, r.RowNumber, r.Payload, r.ErrorCode, r.ErrorMessage}
		},
	}
}

type rawRow struct {
	RowNumber    int
	Payload      []byte
	ErrorCode    string // "" when valid
	ErrorMessage string
}

// runIngest runs Reader → Mapper → Validator → Executor(sink = bulkInsert
// into staging_raw), then writes totalRows/errorRows/validRows once every
// batch has been staged (spec §4.G's Ingest contract).
//
// Idempotency is enforced coarsely rather than per-row: if staging_raw
// already has rows for jobID, re-ingest is a no-op. A per-row ON CONFLICT
// DO NOTHING would also satisfy "idempotent on (jobId, rowNumber)", but
// would have to bypass the COPY fast path (COPY cannot express a conflict
// clause), defeating the bulk-insert performance contract on the common
// (non-restart) path — so the cheaper whole-job guard is used instead.
func (o *Orchestrator[T]) runIngest(ctx context.Context, jobID, filePath string) error {
	if existing, err := o.store.CountByJob(ctx, jobID); err != nil {
		return err
	} else if existing > 0 {
		slog.Info("orchestrator: ingest is a no-op, staging_raw already populated", "job_id", jobID, "rows", existing)
		return o.store.AdvancePhase(ctx, jobID, staging.PhaseIngestCompleted, "")
	}

	if err := o.store.AdvancePhase(ctx, jobID, staging.PhaseIngesting, ""); err != nil {
		return err
	}
	ctx, cancel := o.phaseTimeoutCtx(ctx)
	defer cancel()

	dim, err := xlsx.ReadDimension(filePath, o.sheetName)
	if err != nil {
		return o.fail(ctx, jobID, staging.PhaseIngesting, err)
	}
	if err := dim.Validate(o.cfg.Limits); err != nil {
		return o.fail(ctx, jobID, staging.PhaseIngesting, err)
	}

	rd, err := xlsx.Open(filePath, o.sheetName)
	if err != nil {
		return o.fail(ctx, jobID, staging.PhaseIngesting, err)
	}
	defer rd.Close()

	var binder *rowmap.Binder[T]
	var totalRows, errorRows, validRows int
	var streamedCells int

	exec := executor.New[rawRow](o.execConfig)
	sink := func(ctx context.Context, batch executor.Batch[rawRow]) error {
		_, err := staging.BulkInsert(ctx, o.pool, rawStagingTable(jobID), batch.Rows)
		return err
	}

	stream := make(chan executor.Batch[rawRow], 2*o.execConfig.MaxConcurrentBatches)
	var streamErr error

	go func() {
		defer close(stream)
		streamErr = rd.Stream(ctx, o.cfg.IngestBatchSize,
			func(header xlsx.Row) {
				binder, err = rowmap.Compile[T](header)
			},
			func(rows []xlsx.Row) error {
				if err != nil {
					return err
				}
				if binder == nil {
					return errs.Newf(errs.FileCorrupt, false, "ingest: no header row found")
				}
				batch := executor.Batch[rawRow]{StartRow: rows[0].Number}
				for _, row := range rows {
					totalRows++
					streamedCells += len(row.Cells)
					if limits := o.cfg.Limits; limits.MaxRows > 0 && totalRows > limits.MaxRows {
						return errs.Newf(errs.FileTooLarge, false,
							"worksheet exceeded the row limit of %d while streaming", limits.MaxRows)
					} else if limits.MaxCells > 0 && streamedCells > limits.MaxCells {
						return errs.Newf(errs.FileTooLarge, false,
							"worksheet exceeded the cell limit of %d while streaming", limits.MaxCells)
					}

					bound, convErrs := binder.Bind(row)

					var code, msg string
					if len(convErrs) > 0 {
						for i, ce := range convErrs {
							if i > 0 {
								msg += "; "
							}
							msg += ce.Error()
						}
						code = string(errs.ConversionError)
					} else if o.validator != nil {
						result := o.validator.Validate(bound)
						if !result.Valid {
							code = result.CodeString()
							msg = result.Message
						}
					}

					payload, perr := marshalPayload(bound)
					if perr != nil {
						return perr
					}
					if code == "" {
						validRows++
					} else {
						errorRows++
					}
					batch.Rows = append(batch.Rows, rawRow{
						RowNumber:    row.Number,
						Payload:      payload,
						ErrorCode:    code,
						ErrorMessage: msg,
					})
				}
				select {
				case stream <- batch:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		)
	}()

	result, runErr := exec.Run(ctx, stream, sink)
	if streamErr != nil {
		return o.fail(ctx, jobID, staging.PhaseIngesting, streamErr)
	}
	if runErr != nil {
		return o.fail(ctx, jobID, staging.PhaseIngesting, runErr)
	}
	if result.Failed > 0 {
		return o.fail(ctx, jobID, staging.PhaseIngesting, errs.Newf(errs.PhaseFailed, false, "ingest: %d rows failed to stage", result.Failed))
	}

	if err := o.store.UpdateCounters(ctx, jobID, totalRows, totalRows, errorRows, validRows); err != nil {
		return err
	}
	return o.store.AdvancePhase(ctx, jobID, staging.PhaseIngestCompleted, "")
}
