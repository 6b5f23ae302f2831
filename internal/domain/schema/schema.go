// Package schema holds the target schema: entity and relationship tables,
// their ordered fields, synonyms, derivations and validation rules.
//
// A Registry is loaded once and never mutated afterwards; callers must treat
// the returned tables and fields as read-only.
package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var defaultSchema []byte

// FieldType is the declared value type of a field.
type FieldType string

// Field types.
const (
	TypeString   FieldType = "string"
	TypeBoolean  FieldType = "boolean"
	TypeDatetime FieldType = "datetime"
)

// Kind distinguishes entity tables from relationship tables.
type Kind string

// Table kinds.
const (
	KindEntity       Kind = "entity"
	KindRelationship Kind = "relationship"
)

// DeriveKind names how an absent field is computed.
type DeriveKind string

// Derivation kinds.
const (
	// DeriveJoin concatenates all sources with Separator; every source must be present.
	DeriveJoin DeriveKind = "join"
	// DeriveCopy takes the first present source verbatim.
	DeriveCopy DeriveKind = "copy"
	// DeriveSequence assigns the next surrogate integer when any source is present.
	DeriveSequence DeriveKind = "sequence"
)

// Derivation describes how to fill an absent field from others in the same record.
type Derivation struct {
	Kind      DeriveKind `yaml:"kind"`
	From      []string   `yaml:"from,omitempty"`
	Separator string     `yaml:"separator,omitempty"`
}

// Field is one canonical column of a table.
type Field struct {
	Name       string      `yaml:"name"`
	Type       FieldType   `yaml:"type,omitempty"`
	Synonyms   []string    `yaml:"synonyms,omitempty"`
	Mandatory  bool        `yaml:"mandatory"`
	Values     []string    `yaml:"values,omitempty"`
	Derive     *Derivation `yaml:"derive,omitempty"`
	References string      `yaml:"references,omitempty"`
}

// Rule is a record-level constraint over several fields.
type Rule struct {
	AnyOf   []string `yaml:"any_of,omitempty"`
	AllOf   []string `yaml:"all_of,omitempty"`
	Message string   `yaml:"message"`
}

// Identity declares how an entity's records are identified.
// Canonical lists the fields tried in order for the resolved identifier;
// Keys lists the lookup fields tried in order when resolving a reference.
type Identity struct {
	Canonical []string `yaml:"canonical"`
	Keys      []string `yaml:"keys"`
}

// Table is an entity or relationship definition.
type Table struct {
	Name     string    `yaml:"name"`
	Kind     Kind      `yaml:"kind"`
	Fields   []Field   `yaml:"fields"`
	Rules    []Rule    `yaml:"rules,omitempty"`
	Identity *Identity `yaml:"identity,omitempty"`

	index map[string]int
}

type document struct {
	Tables []*Table `yaml:"tables"`
}

// Registry is the loaded, immutable schema.
type Registry struct {
	tables []*Table
	byName map[string]*Table
}

// Default loads the embedded schema.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultSchema))
}

// LoadFile loads a schema from a YAML file.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load parses and checks a YAML schema document.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	return build(doc.Tables)
}

// Marshal renders the registry back to a YAML schema document.
func (reg *Registry) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(document{Tables: reg.tables})
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return out, nil
}

// Raw returns the embedded default schema document.
func Raw() []byte {
	return bytes.Clone(defaultSchema)
}

func build(tables []*Table) (*Registry, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: no tables", ErrInvalidSchema)
	}
	reg := &Registry{byName: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if t == nil || strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("%w: table without name", ErrInvalidSchema)
		}
		key := foldName(t.Name)
		if _, dup := reg.byName[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTable, t.Name)
		}
		if err := t.prepare(); err != nil {
			return nil, err
		}
		reg.byName[key] = t
		reg.tables = append(reg.tables, t)
	}
	for _, t := range reg.tables {
		if err := reg.checkReferences(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (t *Table) prepare() error {
	switch t.Kind {
	case KindEntity, KindRelationship:
	default:
		return fmt.Errorf("%w: table %s: unknown kind %q", ErrInvalidSchema, t.Name, t.Kind)
	}
	if len(t.Fields) == 0 {
		return fmt.Errorf("%w: table %s has no fields", ErrInvalidSchema, t.Name)
	}
	t.index = make(map[string]int, len(t.Fields))
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("%w: table %s: field without name", ErrInvalidSchema, t.Name)
		}
		if _, dup := t.index[f.Name]; dup {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateField, t.Name, f.Name)
		}
		if f.Type == "" {
			f.Type = TypeString
		}
		switch f.Type {
		case TypeString, TypeBoolean, TypeDatetime:
		default:
			return fmt.Errorf("%w: %s.%s: unknown type %q", ErrInvalidSchema, t.Name, f.Name, f.Type)
		}
		t.index[f.Name] = i
	}
	for _, f := range t.Fields {
		if f.Derive == nil {
			continue
		}
		switch f.Derive.Kind {
		case DeriveJoin, DeriveCopy, DeriveSequence:
		default:
			return fmt.Errorf("%w: %s.%s: unknown derivation %q", ErrInvalidSchema, t.Name, f.Name, f.Derive.Kind)
		}
		if len(f.Derive.From) == 0 {
			return fmt.Errorf("%w: %s.%s: derivation without sources", ErrInvalidSchema, t.Name, f.Name)
		}
		if err := t.requireFields(f.Derive.From...); err != nil {
			return err
		}
	}
	for _, r := range t.Rules {
		if len(r.AnyOf) == 0 && len(r.AllOf) == 0 {
			return fmt.Errorf("%w: table %s: empty rule", ErrInvalidSchema, t.Name)
		}
		if err := t.requireFields(append(append([]string{}, r.AnyOf...), r.AllOf...)...); err != nil {
			return err
		}
	}
	if t.Identity != nil {
		if t.Kind != KindEntity {
			return fmt.Errorf("%w: relationship %s declares identity", ErrInvalidSchema, t.Name)
		}
		if len(t.Identity.Canonical) == 0 || len(t.Identity.Keys) == 0 {
			return fmt.Errorf("%w: table %s: incomplete identity", ErrInvalidSchema, t.Name)
		}
		if err := t.requireFields(append(append([]string{}, t.Identity.Canonical...), t.Identity.Keys...)...); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) requireFields(names ...string) error {
	for _, n := range names {
		if _, ok := t.index[n]; !ok {
			return fmt.Errorf("%w: table %s references unknown field %q", ErrInvalidSchema, t.Name, n)
		}
	}
	return nil
}

func (reg *Registry) checkReferences(t *Table) error {
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.References == "" {
			continue
		}
		if t.Kind != KindRelationship {
			return fmt.Errorf("%w: %s.%s: only relationship fields may reference", ErrInvalidSchema, t.Name, f.Name)
		}
		ref, ok := reg.Table(f.References)
		if !ok || ref.Kind != KindEntity || ref.Identity == nil {
			return fmt.Errorf("%w: %s.%s references %q which is not an identified entity",
				ErrInvalidSchema, t.Name, f.Name, f.References)
		}
		f.References = ref.Name
	}
	return nil
}

// Table looks a table up by name, ignoring case and treating underscores and
// dashes as spaces, so "user_groups" finds "User Groups".
func (reg *Registry) Table(name string) (*Table, bool) {
	t, ok := reg.byName[foldName(name)]
	return t, ok
}

// Tables returns all tables in declaration order.
func (reg *Registry) Tables() []*Table {
	return append([]*Table(nil), reg.tables...)
}

// Entities returns entity tables in declaration order.
func (reg *Registry) Entities() []*Table {
	return reg.ofKind(KindEntity)
}

// Relationships returns relationship tables in declaration order.
func (reg *Registry) Relationships() []*Table {
	return reg.ofKind(KindRelationship)
}

func (reg *Registry) ofKind(k Kind) []*Table {
	var out []*Table
	for _, t := range reg.tables {
		if t.Kind == k {
			out = append(out, t)
		}
	}
	return out
}

// Field returns the named field.
func (t *Table) Field(name string) (Field, bool) {
	i, ok := t.index[name]
	if !ok {
		return Field{}, false
	}
	return t.Fields[i], true
}

// Has reports whether the table declares the field.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// FieldNames returns the output column order.
func (t *Table) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// Endpoints returns the fields that reference another table.
func (t *Table) Endpoints() []Field {
	var out []Field
	for _, f := range t.Fields {
		if f.References != "" {
			out = append(out, f)
		}
	}
	return out
}

// IsEntity reports whether the table is an entity table.
func (t *Table) IsEntity() bool { return t.Kind == KindEntity }

func foldName(name string) string {
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
