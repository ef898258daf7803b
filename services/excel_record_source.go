package services

import (
	"fmt"
	"strings"

	"baliance.com/gooxml/spreadsheet"
	"baliance.com/gooxml/spreadsheet/reference"

	"visitauto/models"
)

// ExcelRecordSource reads records from the first sheet of an xlsx workbook.
// Row 1 is the header; each later non-empty row becomes one record keyed by
// the header names. Cells are matched to headers by their column reference,
// not slice position: sheets store sparse rows with empty cells omitted, and
// positional matching would shift every value after a gap one column left.
type ExcelRecordSource struct {
	records []models.Record
}

func NewExcelRecordSource(path string) (*ExcelRecordSource, error) {
	wb, err := spreadsheet.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open workbook %s: %v", path, err)
	}

	sheets := wb.Sheets()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows := sheets[0].Rows()
	if len(rows) < 2 {
		return nil, fmt.Errorf("workbook %s has no data rows", path)
	}

	headers := map[uint32]string{}
	for col, cell := range cellsByColumn(rows[0]) {
		if name := strings.TrimSpace(cell.GetString()); name != "" {
			headers[col] = name
		}
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("workbook %s has an empty header row", path)
	}

	src := &ExcelRecordSource{}
	for _, row := range rows[1:] {
		rec := models.Record{}
		for col, cell := range cellsByColumn(row) {
			name, ok := headers[col]
			if !ok {
				continue
			}
			if value := strings.TrimSpace(cell.GetString()); value != "" {
				rec[name] = value
			}
		}
		if len(rec) > 0 {
			src.records = append(src.records, rec)
		}
	}
	if len(src.records) == 0 {
		return nil, fmt.Errorf("workbook %s contains only empty rows", path)
	}
	return src, nil
}

// cellsByColumn indexes a row's cells by zero-based column. The cell's own
// reference wins; cells without a parseable reference fall back to the slot
// after the previous cell.
func cellsByColumn(row spreadsheet.Row) map[uint32]spreadsheet.Cell {
	out := make(map[uint32]spreadsheet.Cell)
	var next uint32
	for _, cell := range row.Cells() {
		col := next
		if ref, err := reference.ParseCellReference(cell.Reference()); err == nil {
			col = ref.ColumnIdx
		}
		out[col] = cell
		next = col + 1
	}
	return out
}

func (s *ExcelRecordSource) Count() int { return len(s.records) }

func (s *ExcelRecordSource) RecordAt(index int) (models.Record, bool) {
	if index < 0 || index >= len(s.records) {
		return nil, false
	}
	return s.records[index].Clone(), true
}
