// Package identity builds per-entity identifier indexes and rewrites
// relationship endpoints to canonical identifiers.
package identity

import (
	"fmt"
	"strings"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
)

// Index maps alternate keys of one entity to its canonical identifier.
// It is built once from fully normalized records and only read afterwards.
type Index struct {
	table  string
	keys   []string
	lookup map[string]map[string]string
	size   int
}

// Build indexes records of an entity table. Lookups are case-insensitive and
// the first record carrying a key value wins.
func Build(table *schema.Table, records []*model.Record) (*Index, error) {
	if table.Identity == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoIdentity, table.Name)
	}
	ix := &Index{
		table:  table.Name,
		keys:   append([]string(nil), table.Identity.Keys...),
		lookup: make(map[string]map[string]string, len(table.Identity.Keys)),
	}
	for _, k := range ix.keys {
		ix.lookup[k] = make(map[string]string, len(records))
	}
	for _, rec := range records {
		id := canonical(table.Identity, rec)
		if id == "" {
			continue
		}
		ix.size++
		for _, k := range ix.keys {
			v := fold(rec.Get(k))
			if v == "" {
				continue
			}
			if _, seen := ix.lookup[k][v]; !seen {
				ix.lookup[k][v] = id
			}
		}
	}
	return ix, nil
}

// canonical returns the first present identity field of rec.
func canonical(id *schema.Identity, rec *model.Record) string {
	for _, f := range id.Canonical {
		if v := rec.Get(f); v != "" {
			return v
		}
	}
	return ""
}

// Resolve looks value up under each key in declared order and returns the
// canonical identifier of the first match.
func (ix *Index) Resolve(value string) (string, bool) {
	v := fold(value)
	if v == "" {
		return "", false
	}
	for _, k := range ix.keys {
		if id, ok := ix.lookup[k][v]; ok {
			return id, true
		}
	}
	return "", false
}

// Table is the indexed entity's name.
func (ix *Index) Table() string { return ix.table }

// Len is the number of identified records.
func (ix *Index) Len() int { return ix.size }

func fold(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
