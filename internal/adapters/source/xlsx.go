package source

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
)

// ReadXLSX reads every sheet of a workbook as one table named after the sheet.
func ReadXLSX(r io.Reader) ([]*model.RawTable, []string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open workbook: %v", ErrMalformed, err)
	}
	defer f.Close()

	var (
		tables   []*model.RawTable
		warnings []string
	)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: sheet %q: %v", ErrMalformed, sheet, err)
		}
		// Leading blank rows before the header are ignored.
		for len(rows) > 0 && blank(rows[0]) {
			rows = rows[1:]
		}
		if len(rows) == 0 {
			tables = append(tables, &model.RawTable{Name: sheet})
			continue
		}
		header := rows[0]
		// excelize omits trailing empty cells, so short rows are not ragged.
		body := make([][]string, 0, len(rows)-1)
		for _, row := range rows[1:] {
			if len(row) < len(header) {
				padded := make([]string, len(header))
				copy(padded, row)
				row = padded
			}
			body = append(body, row)
		}
		table, notes := buildTable(sheet, header, body)
		tables = append(tables, table)
		warnings = append(warnings, notes...)
	}
	return tables, warnings, nil
}
