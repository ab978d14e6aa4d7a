package xlsx

import "github.com/levanminh/xlmigrate/internal/errs"

// classifyXMLErr wraps a malformed-XML decode failure as FILE_CORRUPT —
// the workbook's zip container is readable but a part inside it is not
// well-formed SpreadsheetML.
func classifyXMLErr(err error) error {
	if err == nil {
		return nil
	}
	return errs.New(errs.FileCorrupt, false, err)
}

// classifyIOErr wraps a failure to read bytes from the underlying file or
// zip stream as IO_ERROR (spec §4.B).
func classifyIOErr(err error) error {
	if err == nil {
		return nil
	}
	return errs.New(errs.IOError, false, err)
}
