// Package headers maps raw input column names onto the canonical fields of
// one schema table.
//
// Resolution runs three passes over the columns in input order: exact
// canonical names, then synonyms, then fuzzy similarity. A field is claimed
// by at most one column. Columns the fuzzy pass cannot settle are returned
// as Pending; the caller supplies dispositions through Resolution.Apply.
package headers

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/scoring"
)

const defaultCandidateLimit = 5

// Source tells how a column got its field.
type Source string

// Mapping sources.
const (
	SourceExact    Source = "exact"
	SourceSynonym  Source = "synonym"
	SourceFuzzy    Source = "fuzzy"
	SourceSeed     Source = "seed"
	SourceReviewer Source = "reviewer"
)

// Match is a settled column.
type Match struct {
	Column string
	Field  string
	Source Source
	Score  float64
}

// Candidate is a field offered for a pending column.
type Candidate struct {
	Field     string
	Score     float64
	Mandatory bool
}

// Pending is a column that needs a disposition.
type Pending struct {
	Column string
	// Tier is TierReview when Suggested holds a plausible field, TierUnresolved otherwise.
	Tier       scoring.Tier
	Suggested  string
	Score      float64
	Candidates []Candidate
	// Samples holds a few values of the column; filled in by the caller.
	Samples []string
}

// Disposition is the caller's decision for a column. An empty Field skips it.
type Disposition struct {
	Column string
	Field  string
}

// Resolver maps raw column names to schema fields.
type Resolver struct {
	scorer     scoring.Scorer
	candidates int
}

// New creates a Resolver with a default Levenshtein scorer.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		scorer:     scoring.NewLevenshteinScorer(),
		candidates: defaultCandidateLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolution is the result of resolving one table's columns.
type Resolution struct {
	Table   *schema.Table
	Columns []string
	Matches []Match
	Pending []Pending
}

// Resolve maps columns onto table's fields. It is a pure function of its inputs.
func (r *Resolver) Resolve(table *schema.Table, columns []string) *Resolution {
	res := &Resolution{Table: table, Columns: slices.Clone(columns)}
	normalized := make([]string, len(columns))
	for i, c := range columns {
		normalized[i] = scoring.Normalize(c)
	}

	claimed := make(map[string]bool, len(table.Fields))
	settled := make(map[string]Match, len(columns))

	// exact canonical names, then synonyms
	passes := []struct {
		source Source
		forms  func(f schema.Field) []string
	}{
		{SourceExact, func(f schema.Field) []string { return []string{f.Name} }},
		{SourceSynonym, func(f schema.Field) []string { return f.Synonyms }},
	}
	for _, pass := range passes {
		for i, col := range columns {
			if _, done := settled[col]; done || normalized[i] == "" {
				continue
			}
			for _, f := range table.Fields {
				if claimed[f.Name] || !matchesAny(normalized[i], pass.forms(f)) {
					continue
				}
				claimed[f.Name] = true
				settled[col] = Match{Column: col, Field: f.Name, Source: pass.source, Score: 100}
				break
			}
		}
	}

	for i, col := range columns {
		if _, done := settled[col]; done {
			continue
		}
		if normalized[i] == "" {
			res.Pending = append(res.Pending, Pending{Column: col, Tier: scoring.TierUnresolved})
			continue
		}
		ranked := r.rank(table, col, claimed)
		if len(ranked) == 0 {
			res.Pending = append(res.Pending, Pending{Column: col, Tier: scoring.TierUnresolved})
			continue
		}
		best := ranked[0]
		switch r.scorer.Classify(best.Score) {
		case scoring.TierAccept:
			claimed[best.Field] = true
			settled[col] = Match{Column: col, Field: best.Field, Source: SourceFuzzy, Score: best.Score}
		case scoring.TierReview:
			res.Pending = append(res.Pending, Pending{
				Column:     col,
				Tier:       scoring.TierReview,
				Suggested:  best.Field,
				Score:      best.Score,
				Candidates: r.limit(ranked),
			})
		default:
			res.Pending = append(res.Pending, Pending{
				Column:     col,
				Tier:       scoring.TierUnresolved,
				Score:      best.Score,
				Candidates: r.limit(ranked),
			})
		}
	}

	for _, col := range columns {
		if m, ok := settled[col]; ok {
			res.Matches = append(res.Matches, m)
		}
	}
	return res
}

// Seeded builds a resolution from a previously accepted mapping. The seed
// must cover exactly the current columns and pass Mapping.Check; otherwise
// the returned error explains why it cannot be used.
func (r *Resolver) Seeded(table *schema.Table, columns []string, seed Mapping) (*Resolution, error) {
	if err := seed.Check(table, columns); err != nil {
		return nil, err
	}
	res := &Resolution{Table: table, Columns: slices.Clone(columns)}
	for _, col := range columns {
		if f := seed[col]; f != "" {
			res.Matches = append(res.Matches, Match{Column: col, Field: f, Source: SourceSeed, Score: 100})
		}
	}
	return res, nil
}

// rank scores every unclaimed field by its best form. Ties keep declaration order.
func (r *Resolver) rank(table *schema.Table, col string, claimed map[string]bool) []Candidate {
	var ranked []Candidate
	for _, f := range table.Fields {
		if claimed[f.Name] {
			continue
		}
		best := r.scorer.Score(col, f.Name)
		for _, syn := range f.Synonyms {
			if s := r.scorer.Score(col, syn); s > best {
				best = s
			}
		}
		ranked = append(ranked, Candidate{Field: f.Name, Score: best, Mandatory: f.Mandatory})
	}
	slices.SortStableFunc(ranked, func(a, b Candidate) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return ranked
}

func (r *Resolver) limit(ranked []Candidate) []Candidate {
	if len(ranked) > r.candidates {
		ranked = ranked[:r.candidates]
	}
	return slices.Clone(ranked)
}

func matchesAny(normalized string, forms []string) bool {
	for _, form := range forms {
		if scoring.Normalize(form) == normalized {
			return true
		}
	}
	return false
}

// Done reports whether no column awaits a disposition.
func (res *Resolution) Done() bool { return len(res.Pending) == 0 }

// Mapping returns the settled columns; pending columns map to "" (skipped).
func (res *Resolution) Mapping() Mapping {
	m := make(Mapping, len(res.Columns))
	for _, col := range res.Columns {
		m[col] = ""
	}
	for _, match := range res.Matches {
		m[match.Column] = match.Field
	}
	return m
}

// Choices lists the fields not claimed by a settled column, mandatory fields
// first, each group in declaration order.
func (res *Resolution) Choices() []schema.Field {
	claimed := make(map[string]bool, len(res.Matches))
	for _, m := range res.Matches {
		claimed[m.Field] = true
	}
	var mandatory, optional []schema.Field
	for _, f := range res.Table.Fields {
		switch {
		case claimed[f.Name]:
		case f.Mandatory:
			mandatory = append(mandatory, f)
		default:
			optional = append(optional, f)
		}
	}
	return append(mandatory, optional...)
}

// Apply folds the caller's dispositions into the settled mapping and returns
// the final Mapping. Dispositions apply in order; assigning a field that
// another column holds moves it, so the last disposition wins. Pending
// columns without a disposition are skipped. Naming an unknown column or
// field is an error.
func (res *Resolution) Apply(dispositions []Disposition) (Mapping, error) {
	m := res.Mapping()
	for _, d := range dispositions {
		if _, ok := m[d.Column]; !ok {
			return nil, fmt.Errorf("%w: %q in %s", ErrUnknownColumn, d.Column, res.Table.Name)
		}
		if d.Field == "" {
			m[d.Column] = ""
			continue
		}
		if !res.Table.Has(d.Field) {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, res.Table.Name, d.Field)
		}
		for col, f := range m {
			if f == d.Field && col != d.Column {
				m[col] = ""
			}
		}
		m[d.Column] = d.Field
	}
	if err := m.Check(res.Table, res.Columns); err != nil {
		return nil, err
	}
	return m, nil
}
