package validate

import "testing"

type testRow struct {
	MaDonVi   string
	NgayHieuLuc string
	NgayHetHan  string
	Status    string
}

func TestValidate_AccumulatesAllFailures(t *testing.T) {
	v := New[testRow](
		Required[testRow]("maDonVi", func(r testRow) string { return r.MaDonVi }),
		DateFormat[testRow]("ngayHieuLuc", func(r testRow) string { return r.NgayHieuLuc }),
		OneOf[testRow]("status", func(r testRow) string { return r.Status }, "ACTIVE", "INACTIVE"),
	)

	result := v.Validate(testRow{MaDonVi: "", NgayHieuLuc: "not-a-date", Status: "BOGUS"})
	if result.Valid {
		t.Fatal("Validate() Valid = true, want false")
	}
	if len(result.Codes) != 3 {
		t.Fatalf("Codes = %v, want 3 entries", result.Codes)
	}
	if result.CodeString() != "REQUIRED_MA_DON_VI,INVALID_DATE_FORMAT,INVALID_STATUS_VALUE" {
		t.Errorf("CodeString() = %q", result.CodeString())
	}
}

func TestValidate_PassingRowIsValid(t *testing.T) {
	v := New[testRow](
		Required[testRow]("maDonVi", func(r testRow) string { return r.MaDonVi }),
	)
	result := v.Validate(testRow{MaDonVi: "DV001"})
	if !result.Valid {
		t.Fatalf("Validate() Valid = false, want true; message=%q", result.Message)
	}
}

func TestDateLogic_FailsWhenEffectiveAfterExpiry(t *testing.T) {
	v := New[testRow](
		DateLogic[testRow]("effective date must not be after expiry date",
			func(r testRow) string { return r.NgayHieuLuc },
			func(r testRow) string { return r.NgayHetHan },
		),
	)
	result := v.Validate(testRow{NgayHieuLuc: "2024-06-01", NgayHetHan: "2024-01-01"})
	if result.Valid {
		t.Fatal("Validate() Valid = true, want false")
	}
	if result.CodeString() != "INVALID_DATE_LOGIC" {
		t.Errorf("CodeString() = %q, want INVALID_DATE_LOGIC", result.CodeString())
	}
}
