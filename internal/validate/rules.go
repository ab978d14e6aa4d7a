package validate

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/levanminh/xlmigrate/internal/rowmap"
)

// fieldCode converts a field name to SCREAMING_SNAKE_CASE for use inside an
// error code, e.g. "maDonVi" -> "MA_DON_VI", matching spec §4.D's
// REQUIRED_<FIELD> / INVALID_<FIELD>_LENGTH / INVALID_<FIELD>_VALUE shapes
// and spec's S2 scenario's literal REQUIRED_MA_DON_VI.
func fieldCode(field string) string {
	var b strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		switch {
		case r == ' ' || r == '-' || r == '_':
			if b.Len() > 0 {
				b.WriteByte('_')
			}
			continue
		case i > 0 && isLowerUpperBoundary(runes, i):
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// isLowerUpperBoundary reports whether position i starts a new camelCase
// word: a lower-to-upper transition ("aB"), or the last letter of a run of
// uppercase letters immediately before a lowercase one ("ABc" -> "A_Bc").
func isLowerUpperBoundary(runes []rune, i int) bool {
	prev, cur := runes[i-1], runes[i]
	if !unicode.IsUpper(cur) {
		return false
	}
	if unicode.IsLower(prev) {
		return true
	}
	if unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
		return true
	}
	return false
}

// Required fails with REQUIRED_<FIELD> when get(row) is empty.
func Required[T any](field string, get func(T) string) Rule[T] {
	code := "REQUIRED_" + fieldCode(field)
	return func(row T) *Finding {
		if strings.TrimSpace(get(row)) == "" {
			return &Finding{Code: code, Message: fmt.Sprintf("%s is required", field)}
		}
		return nil
	}
}

// DateFormat fails with INVALID_DATE_FORMAT when get(row) is non-empty but
// does not parse as a date.
func DateFormat[T any](field string, get func(T) string) Rule[T] {
	return func(row T) *Finding {
		v := get(row)
		if v == "" {
			return nil
		}
		if _, ok := rowmap.CoerceDate(v); !ok {
			return &Finding{Code: "INVALID_DATE_FORMAT", Message: fmt.Sprintf("%s %q is not a recognized date", field, v)}
		}
		return nil
	}
}

// DateLogic fails with INVALID_DATE_LOGIC when two date fields violate an
// ordering constraint (e.g. effective date after expiry date).
func DateLogic[T any](message string, before, after func(T) string) Rule[T] {
	return func(row T) *Finding {
		b, bok := rowmap.CoerceDate(before(row))
		a, aok := rowmap.CoerceDate(after(row))
		if !bok || !aok {
			return nil // DateFormat rules already cover unparsable values
		}
		if b.After(a) {
			return &Finding{Code: "INVALID_DATE_LOGIC", Message: message}
		}
		return nil
	}
}

// Length fails with INVALID_<FIELD>_LENGTH when get(row) is outside
// [min, max]. A zero max means unbounded.
func Length[T any](field string, get func(T) string, min, max int) Rule[T] {
	code := "INVALID_" + fieldCode(field) + "_LENGTH"
	return func(row T) *Finding {
		v := get(row)
		if v == "" {
			return nil
		}
		n := len([]rune(v))
		if n < min || (max > 0 && n > max) {
			return &Finding{Code: code, Message: fmt.Sprintf("%s length %d is out of range [%d,%d]", field, n, min, max)}
		}
		return nil
	}
}

// OneOf fails with INVALID_<FIELD>_VALUE when get(row) is non-empty and
// not (case-insensitively) one of allowed.
func OneOf[T any](field string, get func(T) string, allowed ...string) Rule[T] {
	code := "INVALID_" + fieldCode(field) + "_VALUE"
	return func(row T) *Finding {
		v := get(row)
		if v == "" {
			return nil
		}
		for _, a := range allowed {
			if strings.EqualFold(a, v) {
				return nil
			}
		}
		return &Finding{Code: code, Message: fmt.Sprintf("%s %q must be one of: %s", field, v, strings.Join(allowed, ", "))}
	}
}

// Numeric fails with INVALID_<FIELD>_VALUE when get(row) is non-empty and
// not a valid number.
func Numeric[T any](field string, get func(T) string) Rule[T] {
	code := "INVALID_" + fieldCode(field) + "_VALUE"
	return func(row T) *Finding {
		v := get(row)
		if v == "" {
			return nil
		}
		if _, ok := rowmap.CoerceNumeric(v); !ok {
			return &Finding{Code: code, Message: fmt.Sprintf("%s %q is not a valid number", field, v)}
		}
		return nil
	}
}

// Conversion fails with CONVERSION_ERROR when the Row Mapper already
// reported a coercion failure for this row; it surfaces those alongside
// the declarative rules so a row with both a binding failure and a
// validation failure still reports a single combined result.
func Conversion[T any](get func(T) []rowmap.ConversionError) Rule[T] {
	return func(row T) *Finding {
		errsForRow := get(row)
		if len(errsForRow) == 0 {
			return nil
		}
		parts := make([]string, len(errsForRow))
		for i, e := range errsForRow {
			parts[i] = e.Error()
		}
		return &Finding{Code: "CONVERSION_ERROR", Message: strings.Join(parts, "; ")}
	}
}
