package xlsx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
)

type workbookXML struct {
	Sheets struct {
		Sheet []struct {
			Name  string `xml:"name,attr"`
			RID   string `xml:"id,attr"` // r:id, matched loosely below
			RIDNS string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sheet"`
	} `xml:"sheets"`
}

type relationshipsXML struct {
	Relationship []struct {
		ID     string `xml:"Id,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// SheetNames lists the worksheet names in workbook order.
func SheetNames(zr *zip.Reader) ([]string, error) {
	sheets, err := loadWorkbookSheets(zr)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(sheets))
	for i, s := range sheets {
		names[i] = s.name
	}
	return names, nil
}

type workbookSheet struct {
	name string
	rID  string
}

func loadWorkbookSheets(zr *zip.Reader) ([]workbookSheet, error) {
	f := findFile(zr, "xl/workbook.xml")
	if f == nil {
		return nil, classifyXMLErr(fmt.Errorf("missing xl/workbook.xml"))
	}
	rc, err := f.Open()
	if err != nil {
		return nil, classifyIOErr(err)
	}
	defer rc.Close()

	var doc workbookXML
	if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
		return nil, classifyXMLErr(err)
	}

	out := make([]workbookSheet, 0, len(doc.Sheets.Sheet))
	for _, s := range doc.Sheets.Sheet {
		rid := s.RIDNS
		if rid == "" {
			rid = s.RID
		}
		out = append(out, workbookSheet{name: s.Name, rID: rid})
	}
	return out, nil
}

// resolveSheetPath finds the zip part path for a worksheet name, following
// xl/workbook.xml's sheet list through xl/_rels/workbook.xml.rels.
func resolveSheetPath(zr *zip.Reader, sheetName string) (string, error) {
	sheets, err := loadWorkbookSheets(zr)
	if err != nil {
		return "", err
	}

	var target string
	for _, s := range sheets {
		if s.name == sheetName {
			target = s.rID
			break
		}
	}
	if target == "" {
		return "", classifyXMLErr(fmt.Errorf("sheet %q not found in workbook", sheetName))
	}

	relsFile := findFile(zr, "xl/_rels/workbook.xml.rels")
	if relsFile == nil {
		return "", classifyXMLErr(fmt.Errorf("missing xl/_rels/workbook.xml.rels"))
	}
	rc, err := relsFile.Open()
	if err != nil {
		return "", classifyIOErr(err)
	}
	defer rc.Close()

	var rels relationshipsXML
	if err := xml.NewDecoder(rc).Decode(&rels); err != nil {
		return "", classifyXMLErr(err)
	}

	for _, r := range rels.Relationship {
		if r.ID == target {
			if len(r.Target) > 0 && r.Target[0] == '/' {
				return r.Target[1:], nil
			}
			return "xl/" + r.Target, nil
		}
	}
	return "", classifyXMLErr(fmt.Errorf("relationship %q not found for sheet %q", target, sheetName))
}
