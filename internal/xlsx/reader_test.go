package xlsx

import (
	"context"
	"testing"
)

func TestReader_StreamResolvesCellTypes(t *testing.T) {
	path := writeTestWorkbook(t, testSheetXML)

	rd, err := Open(path, "Sheet1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rd.Close()

	var header Row
	var rows []Row
	err = rd.Stream(context.Background(), 10, func(h Row) { header = h }, func(batch []Row) error {
		rows = append(rows, batch...)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if v, ok := header.Get(0); !ok || v != "Name" {
		t.Errorf("header col 0 = %q, %v; want Name, true", v, ok)
	}
	if v, ok := header.Get(1); !ok || v != "JoinDate" {
		t.Errorf("header col 1 = %q, %v; want JoinDate, true", v, ok)
	}

	if len(rows) != 2 {
		t.Fatalf("got %d data rows, want 2", len(rows))
	}

	if v, _ := rows[0].Get(0); v != "Alice" {
		t.Errorf("row 2 col A = %q, want Alice (resolved shared string)", v)
	}
	if v, _ := rows[0].Get(1); v != "2021-01-01T00:00:00Z" {
		t.Errorf("row 2 col B = %q, want date-styled serial converted to ISO date", v)
	}

	if v, _ := rows[1].Get(0); v != "Bob" {
		t.Errorf("row 3 col A = %q, want Bob (inline string)", v)
	}
	if _, ok := rows[1].Get(1); ok {
		t.Errorf("row 3 col B should be absent (no <c> element for it)")
	}
	if v, _ := rows[1].Get(2); v != "42" {
		t.Errorf("row 3 col C = %q, want 42 (reconstructed from r attribute after skipped column)", v)
	}
}

func TestReadDimension(t *testing.T) {
	path := writeTestWorkbook(t, testSheetXML)

	d, err := ReadDimension(path, "Sheet1")
	if err != nil {
		t.Fatalf("ReadDimension() error = %v", err)
	}
	if d.EstimatedRows != 3 {
		t.Errorf("EstimatedRows = %d, want 3", d.EstimatedRows)
	}
	if d.EstimatedCells != 9 {
		t.Errorf("EstimatedCells = %d, want 9", d.EstimatedCells)
	}
}

func TestDimension_ValidateFailsClosedWithoutDimensionElement(t *testing.T) {
	noDimSheet := `<?xml version="1.0" encoding="UTF-8"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheetData>
    <row r="1"><c r="A1" t="s"><v>0</v></c></row>
  </sheetData>
</worksheet>`
	path := writeTestWorkbook(t, noDimSheet)

	d, err := ReadDimension(path, "Sheet1")
	if err != nil {
		t.Fatalf("ReadDimension() error = %v", err)
	}
	if d.EstimatedRows != -1 {
		t.Errorf("EstimatedRows = %d, want -1 for an unresolvable dimension", d.EstimatedRows)
	}
	if err := d.Validate(DefaultLimits()); err != nil {
		t.Fatalf("Validate() = %v, want nil: an unresolvable dimension is left to the streaming row counter", err)
	}
}

func TestDimension_ValidateRejectsOversizedWorkbook(t *testing.T) {
	d := Dimension{EstimatedRows: 2_000_000, EstimatedCells: 2_000_000}
	if err := d.Validate(DefaultLimits()); err == nil {
		t.Fatal("Validate() = nil, want FILE_TOO_LARGE")
	}
}

func TestParseDimensionRef(t *testing.T) {
	d, ok := parseDimensionRef("A1:C10")
	if !ok {
		t.Fatal("parseDimensionRef() ok = false")
	}
	if d.MinCol != 0 || d.MaxCol != 2 || d.MinRow != 1 || d.MaxRow != 10 {
		t.Errorf("got %+v", d)
	}
}

func TestColIndexRoundTrip(t *testing.T) {
	cases := []string{"A", "Z", "AA", "AZ", "BA"}
	for _, c := range cases {
		idx := colToIndex(c)
		if got := indexToCol(idx); got != c {
			t.Errorf("colToIndex/indexToCol round trip for %q: got %q", c, got)
		}
	}
}
