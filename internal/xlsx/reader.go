package xlsx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"strconv"

	"github.com/levanminh/xlmigrate/internal/errs"
)

// Cell is a single resolved cell value: its 0-based column index and its
// already-typed string representation (dates as RFC 3339 date, booleans as
// "true"/"false", everything else as the literal text).
type Cell struct {
	Col   int
	Value string
}

// Row is one worksheet row. Cells is sorted by Col ascending and sparse:
// a column with no <c> element (or an untyped one with no <v>) is simply
// absent, not a
// placeholder empty Cell — callers reconstruct positional gaps themselves
// from Col, matching spec §4.B's "missing cells are reconstructed from the
// r attribute, not assumed contiguous."
type Row struct {
	Number int
	Cells  []Cell
}

// Get returns the value at the given 0-based column index, if present.
func (r Row) Get(col int) (string, bool) {
	// Cells arrive in document order, which is column-ascending within a
	// row for well-formed SpreadsheetML; linear scan is fine at row width.
	for _, c := range r.Cells {
		if c.Col == col {
			return c.Value, true
		}
	}
	return "", false
}

// Reader streams rows of a single worksheet forward-only, resolving shared
// strings, inline strings, booleans, formula cached values, and date number
// formats as it goes (spec §4.B).
type Reader struct {
	zc   *zip.ReadCloser
	zr   *zip.Reader
	sst  sharedStrings
	nf   *numberFormats
	path string
}

// Open prepares a Reader for the named sheet in the .xlsx file at path. It
// eagerly loads the shared-strings and styles tables (both are small
// relative to row data) but does not touch the worksheet body itself.
func Open(path, sheetName string) (*Reader, error) {
	zc, err := zip.OpenReader(path)
	if err != nil {
		return nil, errs.New(errs.FileCorrupt, false, err)
	}

	sst, err := loadSharedStrings(&zc.Reader)
	if err != nil {
		zc.Close()
		return nil, err
	}
	nf, err := loadNumberFormats(&zc.Reader)
	if err != nil {
		zc.Close()
		return nil, err
	}
	sheetPath, err := resolveSheetPath(&zc.Reader, sheetName)
	if err != nil {
		zc.Close()
		return nil, err
	}

	return &Reader{zc: zc, zr: &zc.Reader, sst: sst, nf: nf, path: sheetPath}, nil
}

// Close releases the underlying zip archive.
func (rd *Reader) Close() error {
	return rd.zc.Close()
}

// Stream walks the worksheet body forward-only. The first row is delivered
// to onHeader; every subsequent row is buffered into batches of batchSize
// and delivered to onBatch (with a final, possibly short, batch at EOF).
// Stream respects ctx cancellation between rows.
func (rd *Reader) Stream(ctx context.Context, batchSize int, onHeader func(Row), onBatch func([]Row) error) error {
	f := findFile(rd.zr, rd.path)
	if f == nil {
		return errs.New(errs.FileCorrupt, false, errMissingSheetPart)
	}
	rc, err := f.Open()
	if err != nil {
		return errs.New(errs.IOError, false, err)
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	batch := make([]Row, 0, batchSize)
	sawHeader := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errs.New(errs.FileCorrupt, false, err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "row" {
			continue
		}

		var raw rowXML
		if err := dec.DecodeElement(&raw, &se); err != nil {
			return errs.New(errs.FileCorrupt, false, err)
		}
		row := rd.resolveRow(raw)

		if !sawHeader {
			sawHeader = true
			if onHeader != nil {
				onHeader(row)
			}
			continue
		}

		batch = append(batch, row)
		if len(batch) >= batchSize {
			if err := onBatch(batch); err != nil {
				return err
			}
			batch = make([]Row, 0, batchSize)
		}
	}

	if len(batch) > 0 {
		if err := onBatch(batch); err != nil {
			return err
		}
	}
	return nil
}

type rowXML struct {
	R string `xml:"r,attr"`
	C []cXML `xml:"c"`
}

type cXML struct {
	R  string `xml:"r,attr"`
	S  string `xml:"s,attr"`
	T  string `xml:"t,attr"`
	V  string `xml:"v"`
	Is struct {
		T string `xml:"t"`
	} `xml:"is"`
	F string `xml:"f"`
}

func (rd *Reader) resolveRow(raw rowXML) Row {
	rowNum := 0
	if raw.R != "" {
		if n, err := strconv.Atoi(raw.R); err == nil {
			rowNum = n
		}
	}

	cells := make([]Cell, 0, len(raw.C))
	for _, c := range raw.C {
		col, _, ok := splitCellRef(c.R)
		colIdx := 0
		if ok {
			colIdx = colToIndex(col)
		}
		value, skip := rd.resolveCellValue(c)
		if skip {
			continue
		}
		cells = append(cells, Cell{Col: colIdx, Value: value})
	}
	return Row{Number: rowNum, Cells: cells}
}

// resolveCellValue applies the cell-type resolution table from spec §4.B.
func (rd *Reader) resolveCellValue(c cXML) (value string, skip bool) {
	switch c.T {
	case "s":
		idx, err := strconv.Atoi(c.V)
		if err != nil {
			return "", false
		}
		return rd.sst.get(idx), false
	case "inlineStr":
		return c.Is.T, false
	case "b":
		if c.V == "1" {
			return "true", false
		}
		return "false", false
	case "e":
		slog.Warn("xlsx: cell error value treated as empty", "ref", c.R, "error", c.V)
		return "", false
	case "str":
		// Formula result typed as string: the cached <v> already holds it.
		return c.V, false
	default:
		if c.V == "" {
			return "", true
		}
		if c.S != "" {
			if styleIdx, err := strconv.Atoi(c.S); err == nil && rd.nf.isDateStyle(styleIdx) {
				if serial, err := strconv.ParseFloat(c.V, 64); err == nil {
					return serialToTime(serial).Format("2006-01-02T15:04:05Z07:00"), false
				}
			}
		}
		return c.V, false
	}
}

var errMissingSheetPart = missingSheetPartErr{}

type missingSheetPartErr struct{}

func (missingSheetPartErr) Error() string { return "worksheet part missing from archive" }
