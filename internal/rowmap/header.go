package rowmap

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticStripper decomposes accented runes (NFD) and drops the
// resulting non-spacing marks, so "Mã đơn vị" normalizes the same as
// "Ma don vi" for header matching.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeHeader strips diacritics, lowercases, and collapses internal
// whitespace so headers that differ only in accents, case, or spacing
// still bind to the same field.
func normalizeHeader(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)
	// "đ" is a base letter with no NFD decomposition, so map it explicitly.
	out = strings.ReplaceAll(out, "đ", "d")
	return strings.Join(strings.Fields(out), " ")
}
