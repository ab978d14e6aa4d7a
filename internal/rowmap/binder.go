package rowmap

import (
	"reflect"
	"time"

	"github.com/levanminh/xlmigrate/internal/errs"
	"github.com/levanminh/xlmigrate/internal/xlsx"
)

// Binder binds xlsx.Row values into T using a descriptor compiled once
// from T's struct tags (spec §9: "compiled field-binding descriptor, not
// per-cell reflection"). One Binder is built per job and reused for every
// row in the worksheet.
type Binder[T any] struct {
	typ    reflect.Type
	fields []boundField
}

type boundField struct {
	fieldDescriptor
	col int // resolved 0-based column index, -1 if unresolved
}

// ConversionError reports a single cell's coercion failure; callers
// collect these across a row rather than aborting on the first one.
type ConversionError struct {
	Field string
	Value string
	Err   error
}

func (e *ConversionError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Compile resolves every tagged field of T against the worksheet's header
// row. It fails closed: an ambiguous header (two columns that collide
// once normalized) or a missing required column is rejected here, before
// any row is processed, rather than producing silently-wrong bindings per
// row (spec §9's open-question decision to reject ambiguity at startup).
func Compile[T any](header xlsx.Row) (*Binder[T], error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ.Kind() != reflect.Struct {
		return nil, errs.Newf(errs.Unknown, false, "rowmap: %s is not a struct", typ)
	}

	exact, normalized, ambiguous := indexHeader(header)
	if len(ambiguous) > 0 {
		var first string
		for key := range ambiguous {
			first = key
			break
		}
		return nil, errs.Newf(errs.Unknown, false, "rowmap: header %q is ambiguous (two or more columns collide once normalized)", first)
	}

	b := &Binder[T]{typ: typ}
	for i := 0; i < typ.NumField(); i++ {
		d, ok := parseTag(typ.Field(i))
		if !ok {
			continue
		}
		d.structIndex = i

		col := -1
		switch {
		case exact[d.column] != nil:
			col = *exact[d.column]
		default:
			norm := normalizeHeader(d.column)
			if c, ok := normalized[norm]; ok {
				col = c
			} else if d.position >= 0 {
				col = d.position
			}
		}

		if col == -1 && d.required {
			return nil, errs.Newf(errs.Unknown, false, "rowmap: required column %q not found in header", d.column)
		}

		b.fields = append(b.fields, boundField{fieldDescriptor: d, col: col})
	}
	return b, nil
}

// indexHeader builds exact and normalized lookup tables from the header
// row, marking any key reached by more than one column as ambiguous.
func indexHeader(header xlsx.Row) (exact map[string]*int, normalized map[string]int, ambiguous map[string]bool) {
	exact = map[string]*int{}
	normCount := map[string]int{}
	normalized = map[string]int{}
	ambiguous = map[string]bool{}

	seen := map[string]int{}
	for _, c := range header.Cells {
		seen[c.Value]++
		col := c.Col
		exact[c.Value] = &col

		norm := normalizeHeader(c.Value)
		normCount[norm]++
		normalized[norm] = c.Col
	}
	for k, n := range seen {
		if n > 1 {
			ambiguous[k] = true
		}
	}
	for k, n := range normCount {
		if n > 1 {
			ambiguous[k] = true
		}
	}
	return exact, normalized, ambiguous
}

// Bind populates a new T from row, returning every coercion failure found
// (it does not stop at the first, matching the Row Validator's
// accumulate-all-errors behavior downstream).
func (b *Binder[T]) Bind(row xlsx.Row) (T, []ConversionError) {
	var out T
	v := reflect.ValueOf(&out).Elem()
	var errsOut []ConversionError

	for _, f := range b.fields {
		if f.col == -1 {
			continue
		}
		raw, ok := row.Get(f.col)
		if !ok || raw == "" {
			if f.required {
				errsOut = append(errsOut, ConversionError{Field: f.column, Err: errMissingValue})
			}
			continue
		}

		fv := v.Field(f.structIndex)
		if err := setField(fv, f, raw); err != nil {
			errsOut = append(errsOut, ConversionError{Field: f.column, Value: raw, Err: err})
		}
	}
	return out, errsOut
}

func setField(fv reflect.Value, f boundField, raw string) error {
	switch f.kind {
	case Identifier:
		fv.SetString(CoerceIdentifier(raw))
		return nil
	case Date:
		t, ok := CoerceDate(raw)
		if !ok {
			return errInvalidDate
		}
		if fv.Type() == reflect.TypeOf(time.Time{}) {
			fv.Set(reflect.ValueOf(t))
		} else {
			fv.SetString(t.Format("2006-01-02"))
		}
		return nil
	case Numeric:
		n, ok := CoerceNumeric(raw)
		if !ok {
			return errInvalidNumeric
		}
		switch fv.Kind() {
		case reflect.Float32, reflect.Float64:
			fv.SetFloat(n)
		case reflect.Int, reflect.Int32, reflect.Int64:
			fv.SetInt(int64(n))
		default:
			fv.SetString(raw)
		}
		return nil
	case Bool:
		bv, ok := CoerceBool(raw)
		if !ok {
			return errInvalidBool
		}
		fv.SetBool(bv)
		return nil
	default:
		fv.SetString(raw)
		return nil
	}
}

var (
	errMissingValue   = plainError("required value missing")
	errInvalidDate    = plainError("invalid date format")
	errInvalidNumeric = plainError("invalid numeric format")
	errInvalidBool    = plainError("invalid boolean format")
)

type plainError string

func (e plainError) Error() string { return string(e) }
