// Package validate applies record-level rules and splits records into valid
// and invalid partitions.
package validate

import (
	"slices"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/coerce"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
)

// Check evaluates rec against the rules of its table. Violations are
// reported in a fixed order: table rules, missing relationship fields,
// then per-field problems in declaration order.
func Check(table *schema.Table, rec *model.Record) model.Outcome {
	var violations []string

	for _, r := range table.Rules {
		if len(r.AnyOf) > 0 && !slices.ContainsFunc(r.AnyOf, rec.Has) {
			violations = append(violations, r.Message)
			continue
		}
		if len(r.AllOf) > 0 && !allPresent(rec, r.AllOf) {
			violations = append(violations, r.Message)
		}
	}

	if table.Kind == schema.KindRelationship {
		for _, f := range table.Fields {
			if !rec.Has(f.Name) {
				violations = append(violations, "missing "+f.Name)
			}
		}
	}

	for _, f := range table.Fields {
		if msg, bad := fieldViolation(f, rec); bad {
			violations = append(violations, msg)
		}
	}

	return model.Outcome{Valid: len(violations) == 0, Violations: violations}
}

func fieldViolation(f schema.Field, rec *model.Record) (string, bool) {
	if slices.Contains(rec.Orphans, f.Name) {
		return "invalid reference " + f.Name, true
	}
	if _, failed := rec.Uncoercible[f.Name]; failed && (f.Mandatory || len(f.Values) > 0) {
		return "invalid " + f.Name, true
	}
	if !rec.Has(f.Name) {
		return "", false
	}
	v := rec.Get(f.Name)
	if len(f.Values) > 0 && !slices.Contains(f.Values, v) {
		return "invalid " + f.Name, true
	}
	if f.Type == schema.TypeDatetime && !coerce.IsISO(v) {
		return "invalid " + f.Name, true
	}
	return "", false
}

func allPresent(rec *model.Record, fields []string) bool {
	for _, f := range fields {
		if !rec.Has(f) {
			return false
		}
	}
	return true
}

// Partition validates records in order and routes them to the valid or
// invalid stream. Columns follow the table's declared field order.
func Partition(table *schema.Table, records []*model.Record) *model.Partition {
	p := &model.Partition{Table: table.Name, Columns: table.FieldNames()}
	for _, rec := range records {
		out := Check(table, rec)
		if out.Valid {
			p.Valid = append(p.Valid, rec)
			continue
		}
		p.Invalid = append(p.Invalid, model.InvalidRecord{Record: rec, Outcome: out})
	}
	return p
}

// Summary counts violations across the invalid records of p.
func Summary(p *model.Partition) map[string]int {
	if len(p.Invalid) == 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, inv := range p.Invalid {
		for _, v := range inv.Outcome.Violations {
			counts[v]++
		}
	}
	return counts
}
