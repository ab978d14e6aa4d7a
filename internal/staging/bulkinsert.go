package staging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/levanminh/xlmigrate/internal/errs"
)

// Table describes how to turn a row of type T into a COPY/INSERT row for
// a specific staging table.
type Table[T any] struct {
	Name    string
	Columns []string
	ToRow   func(T) []any
}

// BulkInsert writes rows to tbl using PostgreSQL's COPY protocol, the
// fastest path, falling back to a single multi-row INSERT statement (never
// to a naive per-row loop — spec §4.F) if COPY fails, and only as a last
// resort isolates each row behind its own savepoint to identify which ones
// are actually rejected by the database.
//
// Grounded on the teacher's insertWithCopy/insertBatch/insertRowByRow
// savepoint-and-fallback shape, generalized from a fixed table registry to
// any Table[T].
func BulkInsert[T any](ctx context.Context, pool *pgxpool.Pool, tbl Table[T], rows []T) (inserted int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, errs.Classify(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if n, err := copyInsert(ctx, tx, tbl, rows); err == nil {
		if err := tx.Commit(ctx); err != nil {
			return 0, errs.Classify(err)
		}
		return n, nil
	}
	slog.Warn("staging: COPY failed, falling back to multi-row insert", "table", tbl.Name, "rows", len(rows))

	if n, err := multiRowInsert(ctx, tx, tbl, rows); err == nil {
		if err := tx.Commit(ctx); err != nil {
			return 0, errs.Classify(err)
		}
		return n, nil
	}
	slog.Warn("staging: multi-row insert failed, isolating rows by savepoint", "table", tbl.Name, "rows", len(rows))

	n, failedRows, err := rowByRowInsert(ctx, tx, tbl, rows)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, errs.Classify(err)
	}
	if len(failedRows) > 0 {
		slog.Error("staging: rows rejected by database", "table", tbl.Name, "failed", len(failedRows))
	}
	return n, nil
}

func copyInsert[T any](ctx context.Context, tx pgx.Tx, tbl Table[T], rows []T) (int, error) {
	if _, err := tx.Exec(ctx, "SAVEPOINT copy_sp"); err != nil {
		return 0, err
	}

	copyRows := make([][]any, len(rows))
	for i, r := range rows {
		copyRows[i] = tbl.ToRow(r)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{tbl.Name}, tbl.Columns, pgx.CopyFromRows(copyRows))
	if err != nil {
		_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT copy_sp")
		_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT copy_sp")
		return 0, err
	}
	_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT copy_sp")
	return int(n), nil
}

// multiRowInsert builds a single "INSERT INTO t (...) VALUES (...), (...)"
// statement for the whole batch — one round trip, no per-row savepoints.
func multiRowInsert[T any](ctx context.Context, tx pgx.Tx, tbl Table[T], rows []T) (int, error) {
	if _, err := tx.Exec(ctx, "SAVEPOINT multirow_sp"); err != nil {
		return 0, err
	}

	stmt, args := buildMultiRowInsert(tbl, rows)
	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT multirow_sp")
		_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT multirow_sp")
		return 0, err
	}
	_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT multirow_sp")
	return len(rows), nil
}

// buildMultiRowInsert renders the single "INSERT INTO t (...) VALUES
// (...), (...)" statement and its flattened argument list. Split out from
// multiRowInsert so the statement shape can be tested without a database.
func buildMultiRowInsert[T any](tbl Table[T], rows []T) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", tbl.Name, strings.Join(tbl.Columns, ", "))
	args := make([]any, 0, len(rows)*len(tbl.Columns))
	argN := 1
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		row := tbl.ToRow(r)
		for j := range row {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", argN)
			argN++
		}
		sb.WriteByte(')')
		args = append(args, row...)
	}
	return sb.String(), args
}

// rowByRowInsert is the last-resort fallback, used only to identify which
// specific rows the database rejects after both COPY and a single
// multi-row INSERT have failed.
func rowByRowInsert[T any](ctx context.Context, tx pgx.Tx, tbl Table[T], rows []T) (inserted int, failedIdx []int, err error) {
	placeholders := make([]string, len(tbl.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tbl.Name, strings.Join(tbl.Columns, ", "), strings.Join(placeholders, ", "))

	for i, r := range rows {
		sp := fmt.Sprintf("row_sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+sp); err != nil {
			return inserted, failedIdx, errs.Classify(err)
		}
		if _, err := tx.Exec(ctx, stmt, tbl.ToRow(r)...); err != nil {
			_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+sp)
			failedIdx = append(failedIdx, i)
		} else {
			inserted++
		}
		_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT "+sp)
	}
	return inserted, failedIdx, nil
}
