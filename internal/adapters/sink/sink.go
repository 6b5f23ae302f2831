// Package sink writes normalized partitions to workbooks: one with the
// valid records and one with the rejected records and their violations.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	"github.com/safer-strategy/data-transformation-tool/pkg/logger"
)

const (
	// ViolationsColumn is the trailing column of invalid sheets.
	ViolationsColumn = "violations"

	defaultMaxWidth = 50
	widthPadding    = 2
	defaultSheet    = "Sheet1"
)

// Output file kinds.
const (
	KindConverted = "converted"
	KindInvalid   = "invalid"
)

// Sheet is one tab of a workbook.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Option configures a Writer.
type Option func(*Writer)

// WithMaxWidth caps auto-fitted column widths.
func WithMaxWidth(w float64) Option {
	return func(wr *Writer) {
		if w > 0 {
			wr.maxWidth = w
		}
	}
}

// WithLogger sets the writer logger.
func WithLogger(l logger.Logger) Option {
	return func(wr *Writer) {
		if l != nil {
			wr.logger = l
		}
	}
}

// Writer writes output workbooks into a directory.
type Writer struct {
	dir      string
	maxWidth float64
	logger   logger.Logger
}

// NewWriter creates a Writer for dir.
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{dir: dir, maxWidth: defaultMaxWidth, logger: logger.Nop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ConvertedName returns the file name of the valid-records workbook.
func ConvertedName(stem string) string { return "converted_" + stem + ".xlsx" }

// InvalidName returns the file name of the rejected-records workbook.
func InvalidName(stem string) string { return "invalid_records_" + ConvertedName(stem) }

// Write stores partitions as workbooks named after stem and returns the
// written paths by kind. The invalid workbook is written only when some
// record was rejected.
func (w *Writer) Write(ctx context.Context, stem string, partitions []*model.Partition) (map[string]string, error) {
	if len(partitions) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	valid, invalid := Sheets(partitions)
	files := make(map[string]string, 2)

	path := filepath.Join(w.dir, ConvertedName(stem))
	if err := w.save(path, valid); err != nil {
		return nil, err
	}
	files[KindConverted] = path

	rejected := 0
	for _, s := range invalid {
		rejected += len(s.Rows)
	}
	if rejected > 0 {
		path = filepath.Join(w.dir, InvalidName(stem))
		if err := w.save(path, invalid); err != nil {
			return nil, err
		}
		files[KindInvalid] = path
	}

	w.logger.Info(ctx, "output written",
		logger.String("converted", files[KindConverted]),
		logger.String("invalid", files[KindInvalid]),
		logger.Int("rejected", rejected),
	)
	return files, nil
}

// Sheets lays partitions out as valid and invalid sheets in partition order.
func Sheets(partitions []*model.Partition) (valid, invalid []Sheet) {
	for _, p := range partitions {
		vs := Sheet{Name: p.Table, Columns: p.Columns}
		for _, rec := range p.Valid {
			vs.Rows = append(vs.Rows, rec.Cells(p.Columns))
		}
		is := Sheet{Name: p.Table, Columns: append(append([]string(nil), p.Columns...), ViolationsColumn)}
		for _, ir := range p.Invalid {
			is.Rows = append(is.Rows, append(ir.Record.RawCells(p.Columns), ir.Outcome.Text()))
		}
		valid = append(valid, vs)
		invalid = append(invalid, is)
	}
	return valid, invalid
}

func (w *Writer) save(path string, sheets []Sheet) error {
	f, err := Workbook(sheets, w.maxWidth)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// Workbook builds a workbook with one sheet per entry, bold headers and
// column widths fitted to content up to maxWidth.
func Workbook(sheets []Sheet, maxWidth float64) (*excelize.File, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	for i, s := range sheets {
		if err := writeSheet(f, s, bold, maxWidth); err != nil {
			_ = f.Close()
			return nil, err
		}
		if i == 0 {
			idx, _ := f.GetSheetIndex(s.Name)
			f.SetActiveSheet(idx)
		}
	}
	if len(sheets) > 0 && !hasSheet(sheets, defaultSheet) {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("drop default sheet: %w", err)
		}
	}
	return f, nil
}

func hasSheet(sheets []Sheet, name string) bool {
	for _, s := range sheets {
		if s.Name == name {
			return true
		}
	}
	return false
}

func writeSheet(f *excelize.File, s Sheet, headerStyle int, maxWidth float64) error {
	if _, err := f.NewSheet(s.Name); err != nil {
		return fmt.Errorf("create sheet %q: %w", s.Name, err)
	}
	widths := make([]int, len(s.Columns))
	if err := setRow(f, s.Name, 1, s.Columns, widths); err != nil {
		return err
	}
	for i, row := range s.Rows {
		if err := setRow(f, s.Name, i+2, row, widths); err != nil {
			return err
		}
	}
	if err := f.SetRowStyle(s.Name, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style header of %q: %w", s.Name, err)
	}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(s.Name, col, col, min(float64(width+widthPadding), maxWidth)); err != nil {
			return fmt.Errorf("size column %s of %q: %w", col, s.Name, err)
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []string, widths []int) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	values := make([]any, len(cells))
	for i, c := range cells {
		values[i] = c
		if i < len(widths) {
			widths[i] = max(widths[i], utf8.RuneCountInString(c))
		}
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d of %q: %w", row, sheet, err)
	}
	return nil
}
