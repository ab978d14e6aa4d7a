package rowmap

import (
	"testing"

	"github.com/levanminh/xlmigrate/internal/xlsx"
)

type personRow struct {
	Name      string `rowmap:"Full Name"`
	AccountID string `rowmap:"Account Number,identifier"`
	JoinedAt  string `rowmap:"Ngày vào,date"`
	Active    bool   `rowmap:"Active,bool"`
}

func headerRow(names ...string) xlsx.Row {
	cells := make([]xlsx.Cell, len(names))
	for i, n := range names {
		cells[i] = xlsx.Cell{Col: i, Value: n}
	}
	return xlsx.Row{Number: 1, Cells: cells}
}

func dataRow(values ...string) xlsx.Row {
	cells := make([]xlsx.Cell, len(values))
	for i, v := range values {
		cells[i] = xlsx.Cell{Col: i, Value: v}
	}
	return xlsx.Row{Number: 2, Cells: cells}
}

func TestBinder_ExactAndNormalizedHeaderMatch(t *testing.T) {
	header := headerRow("Full Name", "Account Number", "ngay vao", "Active")
	b, err := Compile[personRow](header)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	row := dataRow("Alice", "1.234567E+11", "2021-01-01", "true")
	out, errs := b.Bind(row)
	if len(errs) != 0 {
		t.Fatalf("Bind() errors = %v", errs)
	}
	if out.Name != "Alice" {
		t.Errorf("Name = %q, want Alice", out.Name)
	}
	if out.AccountID != "123456700000" {
		t.Errorf("AccountID = %q, want 123456700000 (scientific notation reconstructed)", out.AccountID)
	}
	if out.JoinedAt != "2021-01-01" {
		t.Errorf("JoinedAt = %q, want 2021-01-01", out.JoinedAt)
	}
	if !out.Active {
		t.Error("Active = false, want true")
	}
}

func TestBinder_AmbiguousHeaderRejectedAtCompile(t *testing.T) {
	header := headerRow("Full Name", "full  name", "Account Number", "Ngày vào", "Active")
	if _, err := Compile[personRow](header); err == nil {
		t.Fatal("Compile() = nil error, want rejection of ambiguous normalized header")
	}
}

func TestBinder_MissingOptionalColumnLeavesZeroValue(t *testing.T) {
	header := headerRow("Full Name")
	b, err := Compile[personRow](header)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	row := dataRow("Alice")
	out, errs := b.Bind(row)
	if len(errs) != 0 {
		t.Fatalf("Bind() errors = %v", errs)
	}
	if out.AccountID != "" {
		t.Errorf("AccountID = %q, want empty", out.AccountID)
	}
}

func TestBinder_InvalidDateReportsConversionError(t *testing.T) {
	header := headerRow("Full Name", "Account Number", "Ngày vào", "Active")
	b, err := Compile[personRow](header)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	row := dataRow("Alice", "123", "not-a-date", "true")
	_, errs := b.Bind(row)
	if len(errs) != 1 || errs[0].Field != "Ngày vào" {
		t.Fatalf("Bind() errors = %v, want one error on Ngày vào", errs)
	}
}
