package rowmap

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var scientificRe = regexp.MustCompile(`^[+-]?\d(\.\d+)?[eE][+-]?\d+$`)

// reconstructScientific detects a cell value that Excel (or a prior
// export) mangled into scientific notation and, when the underlying
// number would have at least 10 integer digits, reconstructs the literal
// digit string. This is the S6 identifier-preservation case: a 12-digit
// account number typed as "1.234567E+11" must come back as
// "123456700000", not stay in exponential form or lose precision to a
// float64 round trip for smaller numbers where it isn't needed.
func reconstructScientific(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if !scientificRe.MatchString(s) {
		return "", false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}
	digits := strconv.FormatFloat(f, 'f', -1, 64)
	intPart := digits
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		intPart = digits[:i]
	}
	if len(strings.TrimPrefix(intPart, "-")) < 10 {
		return "", false
	}
	return digits, true
}

// CoerceIdentifier returns the cell text as a literal string, reversing
// scientific-notation corruption first. It never attempts a numeric
// parse of its own.
func CoerceIdentifier(raw string) string {
	if v, ok := reconstructScientific(raw); ok {
		return v
	}
	return strings.TrimSpace(raw)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"2006/01/02",
}

// CoerceDate parses a cell value into a date, trying RFC 3339 (what the
// xlsx reader emits for date-styled numeric cells) before falling back to
// common spreadsheet text-entry layouts.
func CoerceDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var numericRe = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// CoerceNumeric parses a cell value into a float64. A parenthesized value
// is treated as negative and currency symbols are stripped, but a
// thousands separator is rejected rather than stripped: "12,345.67" fails
// rather than silently parsing as 12345.67.
func CoerceNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", "€", "", "£", "").Replace(s)
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}
	if !numericRe.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// CoerceBool parses a cell value into a bool, accepting the common
// spreadsheet spellings.
func CoerceBool(raw string) (bool, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}
