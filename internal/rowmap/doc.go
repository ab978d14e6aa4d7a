// Package rowmap implements the Row Mapper (component C): binding a raw
// xlsx.Row to a caller-defined Go struct using a descriptor compiled once
// from struct tags, not by reflecting over every cell on the hot path.
//
// Binding precedence per column is: exact header name match, then a
// normalized (diacritic-stripped, collapsed-whitespace, case-insensitive)
// header match, then the field's declared position. Fields with no
// declared date/numeric/bool kind whose column name looks like an
// identifier (national ID, tax code, account/phone number) are bound as
// literal text, since Excel's own display formatting
// (and naive float round-tripping) silently corrupts long digit strings
// into scientific notation.
package rowmap
