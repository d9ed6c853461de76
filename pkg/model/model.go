// Package model declares relational models statically: the field descriptors
// of a table, its uniqueness constraint, and the records bound to it.
package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// IdentityField is the name of the auto-increment surrogate key. It is never
// mapped from a dataset.
const IdentityField = "id"

var (
	// ErrNotFound is returned by stores when a lookup matches no record.
	ErrNotFound = errors.New("record does not exist")

	// ErrMultipleRecords is returned by stores when a lookup that must be
	// unique matches more than one record.
	ErrMultipleRecords = errors.New("lookup returned more than one record")

	// ErrUniqueViolation is returned by stores that enforce uniqueness
	// themselves when a write would duplicate a unique key.
	ErrUniqueViolation = errors.New("unique constraint violated")
)

// FieldType tags the storage type of a field.
type FieldType int

const (
	Text FieldType = iota
	Integer
	Float
	Boolean
	Date
	DateTime
)

var fieldTypeNames = map[FieldType]string{
	Text:     "text",
	Integer:  "integer",
	Float:    "float",
	Boolean:  "boolean",
	Date:     "date",
	DateTime: "datetime",
}

func (t FieldType) String() string {
	if s, ok := fieldTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// IsTemporal reports whether the type holds dates or timestamps.
func (t FieldType) IsTemporal() bool { return t == Date || t == DateTime }

// ParseFieldType maps a type name (as used in job files) to a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string", "char", "varchar":
		return Text, nil
	case "integer", "int", "bigint":
		return Integer, nil
	case "float", "real", "double", "decimal":
		return Float, nil
	case "boolean", "bool":
		return Boolean, nil
	case "date":
		return Date, nil
	case "datetime", "timestamp":
		return DateTime, nil
	}
	return 0, fmt.Errorf("model: unknown field type %q", s)
}

// Field describes one column of a model.
type Field struct {
	Name string
	Type FieldType

	// Null allows the column to hold NULL.
	Null bool

	// Default is applied to new records and used to fill missing dataset
	// values. A nil Default means the field has no default.
	Default any

	// PrimaryKey marks a natural primary key. A model without one gets the
	// auto-increment IdentityField.
	PrimaryKey bool

	// MaxLength bounds text columns in generated DDL; 0 means unbounded.
	MaxLength int
}

// HasDefault reports whether a default value was declared.
func (f Field) HasDefault() bool { return f.Default != nil }

// Model describes a table: its fields in column order and its uniqueness
// constraints.
type Model struct {
	Table          string
	Fields         []Field
	UniqueTogether [][]string
}

// IdentityName returns the identity field's name.
func (m *Model) IdentityName() string { return IdentityField }

// HasIdentity reports whether records are keyed by the auto-increment
// identity rather than a natural primary key.
func (m *Model) HasIdentity() bool {
	for _, f := range m.Fields {
		if f.PrimaryKey {
			return false
		}
	}
	return true
}

// PrimaryKeyName returns the natural primary key's name, or the identity name.
func (m *Model) PrimaryKeyName() string {
	for _, f := range m.Fields {
		if f.PrimaryKey {
			return f.Name
		}
	}
	return IdentityField
}

// UniqueKey returns the fields used to find an existing record: the first
// uniqueness tuple, or the primary key when none is declared.
func (m *Model) UniqueKey() []string {
	if len(m.UniqueTogether) > 0 {
		return slices.Clone(m.UniqueTogether[0])
	}
	return []string{m.PrimaryKeyName()}
}

// Field returns the named field descriptor.
func (m *Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the field names in declaration order.
func (m *Model) FieldNames() []string {
	out := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		out[i] = f.Name
	}
	return out
}

// Validate checks the declaration itself.
func (m *Model) Validate() error {
	if strings.TrimSpace(m.Table) == "" {
		return fmt.Errorf("model: table name must not be empty")
	}
	if len(m.Fields) == 0 {
		return fmt.Errorf("model %s: no fields declared", m.Table)
	}
	seen := make(map[string]struct{}, len(m.Fields))
	pks := 0
	for _, f := range m.Fields {
		if f.Name == "" {
			return fmt.Errorf("model %s: field with empty name", m.Table)
		}
		if f.Name == IdentityField {
			return fmt.Errorf("model %s: %q is reserved for the identity field", m.Table, IdentityField)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("model %s: duplicate field %q", m.Table, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.PrimaryKey {
			pks++
		}
	}
	if pks > 1 {
		return fmt.Errorf("model %s: %d primary key fields, want at most 1", m.Table, pks)
	}
	for i, tuple := range m.UniqueTogether {
		if len(tuple) == 0 {
			return fmt.Errorf("model %s: unique_together[%d] is empty", m.Table, i)
		}
		for _, name := range tuple {
			if _, ok := seen[name]; !ok {
				return fmt.Errorf("model %s: unique_together[%d] names unknown field %q", m.Table, i, name)
			}
		}
	}
	return nil
}

// NewRecord returns a blank record with declared defaults applied.
func (m *Model) NewRecord() *Record {
	r := &Record{model: m, values: make(map[string]any, len(m.Fields))}
	for _, f := range m.Fields {
		if f.HasDefault() {
			r.values[f.Name] = f.Default
		}
	}
	return r
}
