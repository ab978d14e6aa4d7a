package staging

import "testing"

type widgetRow struct {
	JobID     string
	RowNumber int
	Name      string
}

func widgetTable() Table[widgetRow] {
	return Table[widgetRow]{
		Name:    "staging_raw",
		Columns: []string{"job_id", "row_number", "payload"},
		ToRow: func(w widgetRow) []any {
			return []any{w.JobID, w.RowNumber, w.Name}
		},
	}
}

func TestBuildMultiRowInsert_PlaceholdersAreSequentialAcrossRows(t *testing.T) {
	rows := []widgetRow{
		{JobID: "JOB-20260101-001", RowNumber: 1, Name: "Alice"},
		{JobID: "JOB-20260101-001", RowNumber: 2, Name: "Bob"},
	}

	stmt, args := buildMultiRowInsert(widgetTable(), rows)

	const want = "INSERT INTO staging_raw (job_id, row_number, payload) VALUES ($1, $2, $3), ($4, $5, $6)"
	if stmt != want {
		t.Fatalf("stmt = %q, want %q", stmt, want)
	}
	if len(args) != 6 {
		t.Fatalf("len(args) = %d, want 6", len(args))
	}
	if args[2] != "Alice" || args[5] != "Bob" {
		t.Fatalf("args out of order: %v", args)
	}
}

func TestBuildMultiRowInsert_EmptyRowsProducesNoValuesClause(t *testing.T) {
	stmt, args := buildMultiRowInsert(widgetTable(), nil)
	const want = "INSERT INTO staging_raw (job_id, row_number, payload) VALUES "
	if stmt != want {
		t.Fatalf("stmt = %q, want %q", stmt, want)
	}
	if len(args) != 0 {
		t.Fatalf("len(args) = %d, want 0", len(args))
	}
}
