package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/levanminh/xlmigrate/internal/rowmap"
)

// WriteErrorFile streams staging_error for jobID into a spreadsheet whose
// columns are T's tagged columns (rowmap.Columns) plus two trailing
// columns, errorMessage and errorCode (spec §4.G's error-file production).
// Cells hold each row's bound field values; input columns that T does not
// declare are not written. Can be
// called at any point after Ingest, independent of the job's current
// phase.
func (o *Orchestrator[T]) WriteErrorFile(ctx context.Context, jobID string) (*excelize.File, error) {
	cols := rowmap.Columns[T]()

	f := excelize.NewFile()
	const sheet = "Errors"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := make([]string, 0, len(cols)+2)
	for _, c := range cols {
		headers = append(headers, c.Column)
	}
	headers = append(headers, "errorMessage", "errorCode")
	for i, h := range headers {
		cellRef, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cellRef, h); err != nil {
			return nil, err
		}
	}

	rows, errCh := o.store.StreamErrors(ctx, jobID)
	rowIdx := 2
	for r := range rows {
		var decoded map[string]any
		if err := json.Unmarshal(r.Payload, &decoded); err != nil {
			decoded = map[string]any{}
		}
		for i, c := range cols {
			cellRef, _ := excelize.CoordinatesToCellName(i+1, rowIdx)
			if err := f.SetCellValue(sheet, cellRef, decoded[c.Field]); err != nil {
				return nil, err
			}
		}
		msgRef, _ := excelize.CoordinatesToCellName(len(cols)+1, rowIdx)
		codeRef, _ := excelize.CoordinatesToCellName(len(cols)+2, rowIdx)
		if err := f.SetCellValue(sheet, msgRef, r.ErrorMessage); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, codeRef, r.ErrorCode); err != nil {
			return nil, err
		}
		rowIdx++
	}
	if err := <-errCh; err != nil {
		return nil, fmt.Errorf("orchestrator: streaming staging_error for error file: %w", err)
	}

	return f, nil
}
