// Package derive fills absent fields from other fields of the same record.
package derive

import (
	"strconv"
	"strings"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
)

// Sequence hands out surrogate integers starting at 1, skipping reserved values.
type Sequence struct {
	next     int
	reserved map[string]bool
}

// NewSequence creates a sequence that never returns a reserved value.
func NewSequence(reserved ...string) *Sequence {
	s := &Sequence{next: 1, reserved: make(map[string]bool, len(reserved))}
	for _, r := range reserved {
		s.reserved[strings.TrimSpace(r)] = true
	}
	return s
}

// Next returns the next free surrogate.
func (s *Sequence) Next() string {
	for {
		v := strconv.Itoa(s.next)
		s.next++
		if !s.reserved[v] {
			s.reserved[v] = true
			return v
		}
	}
}

// Table applies the table's derivations to records in input order.
// Each call is one processing pass: surrogate sequences restart at 1 and
// skip identifiers already present in the records.
// It returns how many values were derived per field.
func Table(table *schema.Table, records []*model.Record) map[string]int {
	sequences := make(map[string]*Sequence)
	for _, f := range table.Fields {
		if f.Derive == nil || f.Derive.Kind != schema.DeriveSequence {
			continue
		}
		var explicit []string
		for _, rec := range records {
			if rec.Has(f.Name) {
				explicit = append(explicit, rec.Get(f.Name))
			}
		}
		sequences[f.Name] = NewSequence(explicit...)
	}

	counts := make(map[string]int)
	for _, rec := range records {
		for _, f := range table.Fields {
			if f.Derive == nil || rec.Has(f.Name) {
				continue
			}
			if v, ok := derive(f, rec, sequences[f.Name]); ok {
				rec.Set(f.Name, v)
				counts[f.Name]++
			}
		}
	}
	return counts
}

func derive(f schema.Field, rec *model.Record, seq *Sequence) (string, bool) {
	d := f.Derive
	switch d.Kind {
	case schema.DeriveJoin:
		parts := make([]string, 0, len(d.From))
		for _, src := range d.From {
			if !rec.Has(src) {
				return "", false
			}
			parts = append(parts, rec.Get(src))
		}
		return strings.Join(parts, d.Separator), true
	case schema.DeriveCopy:
		for _, src := range d.From {
			if rec.Has(src) {
				return rec.Get(src), true
			}
		}
	case schema.DeriveSequence:
		for _, src := range d.From {
			if rec.Has(src) {
				return seq.Next(), true
			}
		}
	}
	return "", false
}
