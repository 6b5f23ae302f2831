package headers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
)

// Mapping maps each raw column to a canonical field. An empty field means
// the column is skipped.
type Mapping map[string]string

// Clone returns a copy of m.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Check verifies that m covers exactly columns, targets only fields of
// table and claims every field at most once.
func (m Mapping) Check(table *schema.Table, columns []string) error {
	if len(m) != len(columns) {
		return fmt.Errorf("%w: %d entries for %d columns", ErrIncompleteMapping, len(m), len(columns))
	}
	owner := make(map[string]string, len(m))
	for _, col := range columns {
		field, ok := m[col]
		if !ok {
			return fmt.Errorf("%w: %q", ErrIncompleteMapping, col)
		}
		if field == "" {
			continue
		}
		if !table.Has(field) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, table.Name, field)
		}
		if prev, dup := owner[field]; dup {
			return fmt.Errorf("%w: %s from %q and %q", ErrDuplicateTarget, field, prev, col)
		}
		owner[field] = col
	}
	return nil
}

// Fields returns the mapped fields in column order.
func (m Mapping) Fields(columns []string) []string {
	var out []string
	for _, col := range columns {
		if f := m[col]; f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Fingerprint identifies a raw column set independent of column order.
func Fingerprint(columns []string) string {
	sorted := slices.Clone(columns)
	for i, c := range sorted {
		sorted[i] = strings.TrimSpace(c)
	}
	slices.Sort(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x1f")))
	return hex.EncodeToString(sum[:])
}
