// Package coerce converts raw cell values into canonical values per field type.
package coerce

import (
	"strings"
	"time"

	"github.com/safer-strategy/data-transformation-tool/internal/domain/model"
	"github.com/safer-strategy/data-transformation-tool/internal/domain/schema"
)

// ISOLayout is the canonical datetime output format, always UTC.
const ISOLayout = "2006-01-02T15:04:05Z"

// Canonical boolean values.
const (
	Yes = "Yes"
	No  = "No"
)

var defaultLayouts = []string{ //nolint:gochecknoglobals // read-only defaults
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"01/02/2006 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC3339,
}

var truthy = map[string]bool{ //nolint:gochecknoglobals // read-only token table
	"true": true, "1": true, "yes": true, "y": true, "t": true, "active": true, "enabled": true,
}

var falsy = map[string]bool{ //nolint:gochecknoglobals // read-only token table
	"false": true, "0": true, "no": true, "n": true, "f": true,
	"inactive": true, "disabled": true, "deactivated": true, "partially deactivated": true,
}

// Option applies a configuration option to the Coercer.
type Option func(*Coercer)

// WithLayouts sets the datetime input layouts, tried in order.
func WithLayouts(layouts []string) Option {
	return func(c *Coercer) {
		if len(layouts) > 0 {
			c.layouts = append([]string(nil), layouts...)
		}
	}
}

// Coercer converts raw values to canonical values.
type Coercer struct {
	layouts []string
}

// New creates a Coercer with the default datetime layouts.
func New(opts ...Option) *Coercer {
	c := &Coercer{layouts: defaultLayouts}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Value coerces raw for field f. It returns ("", true) when the value is
// absent and ok=false when a non-empty value cannot be converted.
func (c *Coercer) Value(f schema.Field, raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", true
	}
	switch f.Type {
	case schema.TypeDatetime:
		return c.datetime(v)
	case schema.TypeBoolean:
		return boolean(v)
	default:
		return v, true
	}
}

func (c *Coercer) datetime(v string) (string, bool) {
	for _, layout := range c.layouts {
		t, err := time.ParseInLocation(layout, v, time.UTC)
		if err == nil {
			return t.UTC().Format(ISOLayout), true
		}
	}
	return "", false
}

func boolean(v string) (string, bool) {
	token := strings.ToLower(strings.Join(strings.Fields(v), " "))
	switch {
	case truthy[token]:
		return Yes, true
	case falsy[token]:
		return No, true
	default:
		return "", false
	}
}

// Record builds the normalized record for one raw row. Columns mapped to ""
// are dropped. Uncoercible cells are left absent and remembered on the record.
// The failed field names are returned in column order.
func (c *Coercer) Record(table *schema.Table, mapping map[string]string, columns []string, row map[string]string, idx int) (*model.Record, []string) {
	rec := model.NewRecord(table.Name, idx)
	var failed []string
	for _, col := range columns {
		name := mapping[col]
		if name == "" {
			continue
		}
		f, ok := table.Field(name)
		if !ok {
			continue
		}
		v, ok := c.Value(f, row[col])
		if !ok {
			rec.MarkUncoercible(name, strings.TrimSpace(row[col]))
			failed = append(failed, name)
			continue
		}
		rec.Set(name, v)
	}
	return rec, failed
}

// IsISO reports whether v is a canonical datetime.
func IsISO(v string) bool {
	_, err := time.Parse(ISOLayout, v)
	return err == nil
}
