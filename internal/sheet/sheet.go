// Package sheet reads and writes XLSX workbooks as string tables.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of XLSX workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DefaultSheetName names the single sheet written by Write.
const DefaultSheetName = "data"

// maxColumnWidth is the widest column Excel accepts.
const maxColumnWidth = 255

// ErrLegacyFormat indicates a BIFF (.xls, Excel 97-2003) workbook.
var ErrLegacyFormat = errors.New("sheet: legacy binary workbook not supported")

// Sheet is one worksheet. The first row of the sheet becomes Columns.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// IsLegacy reports whether data looks like an OLE2 compound document, the
// container of BIFF workbooks.
func IsLegacy(data []byte) bool {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/vnd.ms-excel") || m.Is("application/x-ole-storage") {
			return true
		}
	}
	return false
}

// Read parses every worksheet of an XLSX workbook in workbook order.
//
// Header cells left blank, and cells beyond the header, are named
// "Unnamed: <index>". Data rows are padded to the header width. Trailing
// rows whose cells are all blank are not stored as rows by the workbook and
// are not returned.
func Read(r io.Reader) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("sheet: open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("sheet: read %q: %w", name, err)
		}
		sheets = append(sheets, toSheet(name, rows))
	}
	return sheets, nil
}

func toSheet(name string, rows [][]string) Sheet {
	s := Sheet{Name: name}
	if len(rows) == 0 {
		return s
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	s.Columns = make([]string, width)
	for i := range s.Columns {
		if i < len(rows[0]) && rows[0][i] != "" {
			s.Columns[i] = rows[0][i]
		} else {
			s.Columns[i] = fmt.Sprintf("Unnamed: %d", i)
		}
	}

	for _, row := range rows[1:] {
		padded := make([]string, width)
		copy(padded, row)
		s.Rows = append(s.Rows, padded)
	}
	return s
}

// Write encodes one sheet named DefaultSheetName holding columns as a
// header row and rows beneath it. The header carries an autofilter over
// the whole table and each column is as wide as its longest cell plus two.
func Write(w io.Writer, columns []string, rows [][]string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), DefaultSheetName); err != nil {
		return fmt.Errorf("sheet: rename sheet: %w", err)
	}

	header := columns
	if err := f.SetSheetRow(DefaultSheetName, "A1", &header); err != nil {
		return fmt.Errorf("sheet: write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(DefaultSheetName, cell, &row); err != nil {
			return fmt.Errorf("sheet: write row %d: %w", i, err)
		}
	}

	if len(columns) > 0 {
		last, err := excelize.CoordinatesToCellName(len(columns), len(rows)+1)
		if err != nil {
			return err
		}
		if err := f.AutoFilter(DefaultSheetName, "A1:"+last, nil); err != nil {
			return fmt.Errorf("sheet: autofilter: %w", err)
		}
	}

	for i, width := range columnWidths(columns, rows) {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(DefaultSheetName, col, col, width); err != nil {
			return fmt.Errorf("sheet: column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("sheet: write workbook: %w", err)
	}
	return nil
}

// columnWidths returns, per column, the longest cell or header length
// (in characters) plus two, capped at maxColumnWidth.
func columnWidths(columns []string, rows [][]string) []float64 {
	widths := make([]float64, len(columns))
	for i, name := range columns {
		longest := utf8.RuneCountInString(name)
		for _, row := range rows {
			if i < len(row) {
				longest = max(longest, utf8.RuneCountInString(row[i]))
			}
		}
		widths[i] = float64(min(longest+2, maxColumnWidth))
	}
	return widths
}
