// Package model contains domain models passed between layers.
package model

import (
	"slices"
	"strings"
	"time"
)

// RawTable is one input tab or file: rows of raw cells keyed by column name,
// plus the column order as encountered.
type RawTable struct {
	Name    string
	Columns []string
	Rows    []map[string]string
	// Source identifies where the table came from, e.g. a file path.
	Source string
}

// Sample returns up to n distinct non-blank values of column in row order.
func (t *RawTable) Sample(column string, n int) []string {
	out := make([]string, 0, n)
	for _, row := range t.Rows {
		if len(out) == n {
			break
		}
		v := strings.TrimSpace(row[column])
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Dataset is the full input of one run, tables in discovery order.
type Dataset struct {
	Name   string
	Tables []*RawTable
	// Warnings collects non-fatal reading problems, e.g. padded rows.
	Warnings []string
	// Failures lists input files that could not be read as tables.
	Failures []SourceFailure
}

// SourceFailure is an input file of a dataset that could not be read.
type SourceFailure struct {
	Name   string
	Source string
	Err    error
}

// Record is a normalized row: canonical field name to canonical value.
// An absent key means the field has no value.
type Record struct {
	Table  string
	Row    int
	Values map[string]string
	// Uncoercible keeps the raw input of cells that failed coercion.
	Uncoercible map[string]string
	// Orphans lists endpoint fields whose reference matched no indexed entity.
	Orphans []string
}

// NewRecord returns an empty record for row of table.
func NewRecord(table string, row int) *Record {
	return &Record{Table: table, Row: row, Values: make(map[string]string)}
}

// Get returns the value of field, or "" when absent.
func (r *Record) Get(field string) string { return r.Values[field] }

// Has reports whether field has a value.
func (r *Record) Has(field string) bool {
	_, ok := r.Values[field]
	return ok
}

// Set stores a value; empty values are treated as absent.
func (r *Record) Set(field, value string) {
	if value == "" {
		delete(r.Values, field)
		return
	}
	r.Values[field] = value
}

// MarkUncoercible records the raw input of a cell that failed coercion.
func (r *Record) MarkUncoercible(field, raw string) {
	if r.Uncoercible == nil {
		r.Uncoercible = make(map[string]string)
	}
	r.Uncoercible[field] = raw
}

// Outcome is the validation result of one record.
type Outcome struct {
	Valid      bool
	Violations []string
}

// Text joins the violations for the invalid-output column.
func (o Outcome) Text() string { return strings.Join(o.Violations, "; ") }

// Partition is the normalized output of one table.
type Partition struct {
	Table   string
	Columns []string
	Valid   []*Record
	Invalid []InvalidRecord
}

// InvalidRecord pairs a rejected record with its violations.
type InvalidRecord struct {
	Record  *Record
	Outcome Outcome
}

// Cells renders a record as cells in column order. Absent fields are empty.
func (r *Record) Cells(columns []string) []string {
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = r.Values[c]
	}
	return cells
}

// RawCells renders a rejected record. Uncoercible cells show the raw input
// so the row can be corrected at the source.
func (r *Record) RawCells(columns []string) []string {
	cells := r.Cells(columns)
	for i, c := range columns {
		if _, ok := r.Values[c]; ok {
			continue
		}
		if raw, ok := r.Uncoercible[c]; ok {
			cells[i] = raw
		}
	}
	return cells
}

// TableStatus describes what happened to one input table.
type TableStatus string

// Table statuses.
const (
	StatusNormalized TableStatus = "normalized"
	StatusSkipped    TableStatus = "skipped"
	StatusFailed     TableStatus = "failed"
)

// TableReport summarizes one table of a run.
type TableReport struct {
	Table       string            `json:"table"`
	Source      string            `json:"source,omitempty"`
	Status      TableStatus       `json:"status"`
	Rows        int               `json:"rows"`
	Valid       int               `json:"valid"`
	Invalid     int               `json:"invalid"`
	Orphans     int               `json:"orphans,omitempty"`
	Mapping     map[string]string `json:"mapping,omitempty"`
	Violations  map[string]int    `json:"violations,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
}

// RunReport is the side artifact of one run, kept as run history.
type RunReport struct {
	ID         string        `json:"id"`
	Dataset    string        `json:"dataset"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Tables     []TableReport `json:"tables"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// Totals sums valid and invalid records across tables.
func (r *RunReport) Totals() (valid, invalid int) {
	for _, t := range r.Tables {
		valid += t.Valid
		invalid += t.Invalid
	}
	return valid, invalid
}

// Failed reports whether any table failed structurally.
func (r *RunReport) Failed() bool {
	for _, t := range r.Tables {
		if t.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Result is the core output of a run: partitions in processing order and the report.
type Result struct {
	Partitions []*Partition
	Report     *RunReport
}

// Job is a queued request to normalize an uploaded file.
type Job struct {
	RunID       string
	Name        string
	Path        string
	Fingerprint string
	SubmittedAt time.Time
}
