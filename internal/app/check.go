package service

import (
	"fmt"
	"strings"

	"github.com/safer-strategy/data-transformation-tool/internal/adapters/sink"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/validate"
)

// Finding is one rule violation in an already converted workbook.
// Row counts the header as row 1.
type Finding struct {
	Table   string `json:"table"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s row %d: %s", f.Table, f.Row, f.Message)
}

// CheckReport lists the problems found by Check.
type CheckReport struct {
	Errors   []Finding `json:"errors,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
}

// OK reports whether no errors were found.
func (r *CheckReport) OK() bool { return len(r.Errors) == 0 }

// Check validates a converted dataset, whose columns are already canonical
// field names, against the table rules of reg. Unknown tables and columns
// are warnings; rule violations are errors.
func Check(reg *schema.Registry, ds *model.Dataset) *CheckReport {
	report := &CheckReport{}
	var unexpected []string
	for _, raw := range ds.Tables {
		table, ok := reg.Table(raw.Name)
		if !ok {
			unexpected = append(unexpected, raw.Name)
			continue
		}
		for _, col := range raw.Columns {
			if !table.Has(col) && col != sink.ViolationsColumn {
				report.Warnings = append(report.Warnings, fmt.Sprintf("%s: unexpected column %q", table.Name, col))
			}
		}
		for i, row := range raw.Rows {
			rec := model.NewRecord(table.Name, i)
			for _, col := range raw.Columns {
				if table.Has(col) {
					rec.Set(col, strings.TrimSpace(row[col]))
				}
			}
			for _, v := range validate.Check(table, rec).Violations {
				report.Errors = append(report.Errors, Finding{Table: table.Name, Row: i + 2, Message: v})
			}
		}
	}
	if len(unexpected) > 0 {
		report.Warnings = append(report.Warnings,
			"found unexpected tabs that are not defined in the schema: "+strings.Join(unexpected, ", "))
	}
	return report
}
