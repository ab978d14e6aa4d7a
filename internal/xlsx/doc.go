// Package xlsx implements the Early Validator and Streaming Reader
// (components A and B): a forward-only, constant-memory reader over the
// SpreadsheetML parts inside an .xlsx zip archive.
//
// Rows are emitted as Row values whose sparse Cells carry the column index
// taken from each cell's `r` attribute (missing cells are absent, not
// padded) and are resolved against the shared-strings and number-format
// tables — callers never see raw XML. The package deliberately does not use
// excelize's row-reading API: resolving shared strings, detecting date
// number formats, and reconstructing skipped cells from their `r`
// attribute is the one piece of this system implemented by hand, against
// archive/zip and encoding/xml directly, rather than through a library.
package xlsx
