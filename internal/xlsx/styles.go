package xlsx

import (
	"archive/zip"
	"encoding/xml"
	"strings"
)

// numberFormats resolves a cell's style index (the `s` attribute) to
// whether that style represents a date. SpreadsheetML stores dates as
// plain numeric serials styled with a date number format — there is no
// cell type "date", so this table is the only way to tell a date apart
// from an ordinary number (spec §4.B).
type numberFormats struct {
	// custom maps a numFmtId to its formatCode, for ids >= 164 (the builtin
	// range ends at 163; anything below that not explicitly listed here
	// uses the well-known builtin table).
	custom map[int]string
	// xfNumFmtID maps a cellXfs index (what a cell's `s` attribute points
	// at) to the numFmtId it uses.
	xfNumFmtID []int
}

type stylesXML struct {
	NumFmts struct {
		NumFmt []struct {
			NumFmtID   int    `xml:"numFmtId,attr"`
			FormatCode string `xml:"formatCode,attr"`
		} `xml:"numFmt"`
	} `xml:"numFmts"`
	CellXfs struct {
		Xf []struct {
			NumFmtID int `xml:"numFmtId,attr"`
		} `xml:"xf"`
	} `xml:"cellXfs"`
}

func loadNumberFormats(zr *zip.Reader) (*numberFormats, error) {
	nf := &numberFormats{custom: map[int]string{}}

	f := findFile(zr, "xl/styles.xml")
	if f == nil {
		return nf, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var doc stylesXML
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, classifyXMLErr(err)
	}

	for _, n := range doc.NumFmts.NumFmt {
		nf.custom[n.NumFmtID] = n.FormatCode
	}
	nf.xfNumFmtID = make([]int, len(doc.CellXfs.Xf))
	for i, xf := range doc.CellXfs.Xf {
		nf.xfNumFmtID[i] = xf.NumFmtID
	}
	return nf, nil
}

// isDateStyle reports whether the cellXfs entry at styleIdx uses a
// date/time number format.
func (nf *numberFormats) isDateStyle(styleIdx int) bool {
	if styleIdx < 0 || styleIdx >= len(nf.xfNumFmtID) {
		return false
	}
	numFmtID := nf.xfNumFmtID[styleIdx]

	if code, ok := nf.custom[numFmtID]; ok {
		return formatCodeLooksLikeDate(code)
	}
	return builtinDateFormats[numFmtID]
}

// builtinDateFormats lists the well-known builtin numFmtId values (0-163)
// that represent date, time, or datetime formats per the OOXML spec.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true,
	21: true, 22: true, 45: true, 46: true, 47: true,
}

// formatCodeLooksLikeDate heuristically classifies a custom format code
// (e.g. "yyyy-mm-dd", "m/d/yy h:mm") as date-like by looking for date/time
// tokens, ignoring quoted literal text and color/condition directives.
func formatCodeLooksLikeDate(code string) bool {
	lower := strings.ToLower(code)
	if strings.Contains(lower, "@") || strings.Contains(lower, "general") {
		return false
	}
	for _, tok := range []string{"y", "m", "d", "h", "s"} {
		if strings.Contains(stripQuoted(lower), tok) {
			return true
		}
	}
	return false
}

// stripQuoted removes "..."-quoted literal segments and [...] color/
// condition directives from a format code so neither masquerades as a
// date token. Elapsed-time codes such as "[h]:mm" still match on the
// tokens outside the brackets.
func stripQuoted(s string) string {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range s {
		switch {
		case r == '"' && !inBracket:
			inQuote = !inQuote
			continue
		case r == '[' && !inQuote:
			inBracket = true
			continue
		case r == ']' && inBracket:
			inBracket = false
			continue
		}
		if !inQuote && !inBracket {
			b.WriteRune(r)
		}
	}
	return b.String()
}
