package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
)

// ReadCSV reads one CSV table named name. The first row is the header.
// Ragged rows are padded or truncated to the header width and fully blank
// rows are dropped; both produce warnings rather than errors.
func ReadCSV(name string, r io.Reader) (*model.RawTable, []string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", name, err)
	}
	text, _, err := Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &model.RawTable{Name: name}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s header: %v", ErrMalformed, name, err)
	}

	var rows [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
		}
		rows = append(rows, rec)
	}
	table, warnings := buildTable(name, header, rows)
	return table, warnings, nil
}

// buildTable turns a header row and cell rows into a RawTable. Header line
// is row 1 in warnings, matching what a spreadsheet shows.
func buildTable(name string, header []string, rows [][]string) (*model.RawTable, []string) {
	var warnings []string
	columns, keep, notes := uniqueColumns(header)
	for _, n := range notes {
		warnings = append(warnings, fmt.Sprintf("%s: %s", name, n))
	}

	table := &model.RawTable{Name: name, Columns: columns}
	for i, cells := range rows {
		line := i + 2
		switch {
		case len(cells) < len(header):
			if !blank(cells) {
				warnings = append(warnings, fmt.Sprintf("%s row %d: %d cells, expected %d; padded", name, line, len(cells), len(header)))
			}
			padded := make([]string, len(header))
			copy(padded, cells)
			cells = padded
		case len(cells) > len(header):
			if !blank(cells[len(header):]) {
				warnings = append(warnings, fmt.Sprintf("%s row %d: %d cells, expected %d; truncated", name, line, len(cells), len(header)))
			}
			cells = cells[:len(header)]
		}
		if blank(cells) {
			continue
		}
		row := make(map[string]string, len(columns))
		for j, col := range keep {
			if col >= 0 {
				row[columns[col]] = cells[j]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, warnings
}

// uniqueColumns trims header names, drops blank ones and suffixes repeats
// ("Email", "Email_2"). keep maps each header position to its column index,
// or -1 when dropped.
func uniqueColumns(header []string) ([]string, []int, []string) {
	var (
		columns []string
		notes   []string
	)
	keep := make([]int, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			keep[i] = -1
			notes = append(notes, fmt.Sprintf("column %d has no header; ignored", i+1))
			continue
		}
		name := h
		if seen[strings.ToLower(h)] {
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s_%d", h, n)
				if !seen[strings.ToLower(candidate)] {
					name = candidate
					break
				}
			}
			notes = append(notes, fmt.Sprintf("duplicate column %q renamed to %q", h, name))
		}
		seen[strings.ToLower(name)] = true
		keep[i] = len(columns)
		columns = append(columns, name)
	}
	return columns, keep, notes
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
