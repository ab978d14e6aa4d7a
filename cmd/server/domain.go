package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/levanminh/xlmigrate/internal/orchestrator"
	"github.com/levanminh/xlmigrate/internal/validate"
)

// donViRow is the example row type this binary migrates: a business-unit
// registry import. Its fields are named directly off spec's own S2
// scenario ("rows ... missing required column maDonVi"); the core
// components upstream of this file never reference it by name, per
// spec §1's "the core is parameterized over a row type."
type donViRow struct {
	MaDonVi     string `rowmap:"maDonVi,identifier,required"`
	TenDonVi    string `rowmap:"tenDonVi,required"`
	NgayHieuLuc string `rowmap:"ngayHieuLuc,date"`
	TrangThai   string `rowmap:"trangThai"`
}

func donViValidator() *validate.Validator[donViRow] {
	return validate.New(
		validate.Required[donViRow]("maDonVi", func(r donViRow) string { return r.MaDonVi }),
		validate.Required[donViRow]("tenDonVi", func(r donViRow) string { return r.TenDonVi }),
		validate.DateFormat[donViRow]("ngayHieuLuc", func(r donViRow) string { return r.NgayHieuLuc }),
		validate.OneOf[donViRow]("trangThai", func(r donViRow) string { return r.TrangThai }, "ACTIVE", "INACTIVE", ""),
	)
}

func donViDupKey(r donViRow) string { return r.MaDonVi }

const donViSchemaDDL = `
CREATE TABLE IF NOT EXISTS don_vi (
	ma_don_vi     text PRIMARY KEY,
	ten_don_vi    text NOT NULL,
	ngay_hieu_luc date,
	trang_thai    text
);
`

// donViTarget is the single Apply target for this binary: one master
// table, so it is marked Primary and there is nothing to depend on
// (spec §4.G's topological-order rule is exercised once httpapi is wired
// against a schema with more than one target table).
func donViTarget() orchestrator.Target[donViRow] {
	return orchestrator.Target[donViRow]{
		Name:    "don_vi",
		Primary: true,
		Apply:   applyDonVi,
		CountApplied: func(ctx context.Context, pool *pgxpool.Pool, jobID string) (int64, error) {
			var n int64
			err := pool.QueryRow(ctx, `
				SELECT count(*)
				FROM staging_valid sv
				JOIN don_vi dv ON dv.ma_don_vi = (sv.payload ->> 'MaDonVi')
				WHERE sv.job_id = $1
			`, jobID).Scan(&n)
			return n, err
		},
	}
}

// applyDonVi upserts by natural key (maDonVi) so re-running Apply after a
// partial failure never duplicates a row already inserted on a prior
// attempt (spec §9's natural-key-uniqueness assumption).
func applyDonVi(ctx context.Context, pool *pgxpool.Pool, rows []donViRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO don_vi (ma_don_vi, ten_don_vi, ngay_hieu_luc, trang_thai) VALUES ")
	args := make([]any, 0, len(rows)*4)
	for i, r := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, nullif($%d, '')::date, nullif($%d, ''))", base+1, base+2, base+3, base+4)
		args = append(args, r.MaDonVi, r.TenDonVi, r.NgayHieuLuc, r.TrangThai)
	}
	sb.WriteString(` ON CONFLICT (ma_don_vi) DO UPDATE SET
		ten_don_vi = excluded.ten_don_vi,
		ngay_hieu_luc = excluded.ngay_hieu_luc,
		trang_thai = excluded.trang_thai`)

	tag, err := pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
