package staging

import (
	"context"
	"fmt"

	"github.com/levanminh/xlmigrate/internal/errs"
)

// StagedRow is one row streamed back out of staging_valid.
type StagedRow struct {
	RowNumber int
	Payload   []byte // jsonb, caller unmarshals into its own row type
}

// StagedError is one row streamed back out of staging_error.
type StagedError struct {
	RowNumber    int
	Payload      []byte
	ErrorCode    string
	ErrorMessage string
}

// RawStagedRow is one row streamed back out of staging_raw, carrying the
// per-row findings Ingest already recorded (Validate layers cross-row
// findings on top of these before promoting to staging_valid/staging_error).
type RawStagedRow struct {
	RowNumber    int
	Payload      []byte
	ErrorCode    string
	ErrorMessage string
}

const streamPageSize = 1000

// StreamRaw streams every staging_raw row for jobID, ordered by row
// number, the same cursor-paginated way StreamValid/StreamErrors do.
func (s *Store) StreamRaw(ctx context.Context, jobID string) (<-chan RawStagedRow, <-chan error) {
	out := make(chan RawStagedRow)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		offset := 0
		for {
			rows, err := s.pool.Query(ctx,
				`SELECT row_number, payload, coalesce(error_code, ''), coalesce(error_message, '')
				 FROM staging_raw WHERE job_id = $1 ORDER BY row_number LIMIT $2 OFFSET $3`,
				jobID, streamPageSize, offset)
			if err != nil {
				errCh <- errs.Classify(err)
				return
			}

			n := 0
			for rows.Next() {
				var r RawStagedRow
				if err := rows.Scan(&r.RowNumber, &r.Payload, &r.ErrorCode, &r.ErrorMessage); err != nil {
					rows.Close()
					errCh <- errs.Classify(err)
					return
				}
				select {
				case out <- r:
				case <-ctx.Done():
					rows.Close()
					errCh <- ctx.Err()
					return
				}
				n++
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				errCh <- errs.Classify(err)
				return
			}
			if n < streamPageSize {
				return
			}
			offset += streamPageSize
		}
	}()

	return out, errCh
}

// CountByJob returns the row count in staging_raw for a job.
func (s *Store) CountByJob(ctx context.Context, jobID string) (int64, error) {
	return s.countWhere(ctx, "staging_raw", jobID)
}

// CountValid returns the row count in staging_valid for a job.
func (s *Store) CountValid(ctx context.Context, jobID string) (int64, error) {
	return s.countWhere(ctx, "staging_valid", jobID)
}

// CountErrors returns the row count in staging_error for a job.
func (s *Store) CountErrors(ctx context.Context, jobID string) (int64, error) {
	return s.countWhere(ctx, "staging_error", jobID)
}

func (s *Store) countWhere(ctx context.Context, table, jobID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s WHERE job_id = $1", table), jobID).Scan(&n)
	if err != nil {
		return 0, errs.Classify(err)
	}
	return n, nil
}

// StreamValid streams every staging_valid row for jobID, ordered by row
// number, using cursor-style LIMIT/OFFSET pagination so the caller never
// holds the whole result set in memory.
func (s *Store) StreamValid(ctx context.Context, jobID string) (<-chan StagedRow, <-chan error) {
	out := make(chan StagedRow)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		offset := 0
		for {
			rows, err := s.pool.Query(ctx,
				"SELECT row_number, payload FROM staging_valid WHERE job_id = $1 ORDER BY row_number LIMIT $2 OFFSET $3",
				jobID, streamPageSize, offset)
			if err != nil {
				errCh <- errs.Classify(err)
				return
			}

			n := 0
			for rows.Next() {
				var r StagedRow
				if err := rows.Scan(&r.RowNumber, &r.Payload); err != nil {
					rows.Close()
					errCh <- errs.Classify(err)
					return
				}
				select {
				case out <- r:
				case <-ctx.Done():
					rows.Close()
					errCh <- ctx.Err()
					return
				}
				n++
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				errCh <- errs.Classify(err)
				return
			}
			if n < streamPageSize {
				return
			}
			offset += streamPageSize
		}
	}()

	return out, errCh
}

// StreamErrors streams every staging_error row for jobID, ordered by row
// number, the same way StreamValid does.
func (s *Store) StreamErrors(ctx context.Context, jobID string) (<-chan StagedError, <-chan error) {
	out := make(chan StagedError)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		offset := 0
		for {
			rows, err := s.pool.Query(ctx,
				`SELECT row_number, payload, error_code, error_message FROM staging_error
				 WHERE job_id = $1 ORDER BY row_number LIMIT $2 OFFSET $3`,
				jobID, streamPageSize, offset)
			if err != nil {
				errCh <- errs.Classify(err)
				return
			}

			n := 0
			for rows.Next() {
				var r StagedError
				if err := rows.Scan(&r.RowNumber, &r.Payload, &r.ErrorCode, &r.ErrorMessage); err != nil {
					rows.Close()
					errCh <- errs.Classify(err)
					return
				}
				select {
				case out <- r:
				case <-ctx.Done():
					rows.Close()
					errCh <- ctx.Err()
					return
				}
				n++
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				errCh <- errs.Classify(err)
				return
			}
			if n < streamPageSize {
				return
			}
			offset += streamPageSize
		}
	}()

	return out, errCh
}

// DeleteByJob removes a job's staging rows. When keepErrors is true,
// staging_error rows survive so a failed migration's diagnostics remain
// downloadable after cleanup (spec §6's cleanup endpoint contract).
func (s *Store) DeleteByJob(ctx context.Context, jobID string, keepErrors bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errs.Classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM staging_raw WHERE job_id = $1", jobID); err != nil {
		return errs.Classify(err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM staging_valid WHERE job_id = $1", jobID); err != nil {
		return errs.Classify(err)
	}
	if !keepErrors {
		if _, err := tx.Exec(ctx, "DELETE FROM staging_error WHERE job_id = $1", jobID); err != nil {
			return errs.Classify(err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.Classify(err)
	}
	return nil
}
