package identity

import (
	"fmt"
	"slices"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
)

// Registry holds the indexes built so far in a run, keyed by entity name.
type Registry struct {
	indexes map[string]*Index
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{indexes: make(map[string]*Index)}
}

// Add registers ix. An entity is indexed once per run; a second Add replaces nothing.
func (r *Registry) Add(ix *Index) bool {
	if _, ok := r.indexes[ix.table]; ok {
		return false
	}
	r.indexes[ix.table] = ix
	return true
}

// Get returns the index of an entity.
func (r *Registry) Get(table string) (*Index, bool) {
	ix, ok := r.indexes[table]
	return ix, ok
}

// Missing lists the entities a relationship table references that are not indexed.
func (r *Registry) Missing(table *schema.Table) []string {
	var out []string
	for _, ep := range table.Endpoints() {
		if _, ok := r.indexes[ep.References]; !ok && !slices.Contains(out, ep.References) {
			out = append(out, ep.References)
		}
	}
	return out
}

// Resolve rewrites each endpoint of records to the canonical identifier of
// the referenced entity. Values that match nothing pass through unchanged
// and are listed in the record's Orphans. It fails before touching any
// record when a referenced entity has no index.
func (r *Registry) Resolve(table *schema.Table, records []*model.Record) (int, error) {
	if missing := r.Missing(table); len(missing) > 0 {
		return 0, fmt.Errorf("%w: %s needs %v", ErrNotIndexed, table.Name, missing)
	}
	orphans := 0
	for _, rec := range records {
		for _, ep := range table.Endpoints() {
			v := rec.Get(ep.Name)
			if v == "" {
				continue
			}
			if id, ok := r.indexes[ep.References].Resolve(v); ok {
				rec.Set(ep.Name, id)
				continue
			}
			rec.Orphans = append(rec.Orphans, ep.Name)
			orphans++
		}
	}
	return orphans, nil
}
