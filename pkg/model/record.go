package model

import "maps"

// Record is one row of a model: field values keyed by name, plus the primary
// key once the record is known to the store.
type Record struct {
	model  *Model
	values map[string]any
	pk     any
}

// Model returns the model the record belongs to.
func (r *Record) Model() *Model { return r.model }

// Set assigns a field value.
func (r *Record) Set(name string, v any) { r.values[name] = v }

// Get returns a field value and whether it was ever assigned.
func (r *Record) Get(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Value returns a field value, or nil when unassigned.
func (r *Record) Value(name string) any { return r.values[name] }

// Values returns the record's values aligned with names.
func (r *Record) Values(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = r.values[n]
	}
	return out
}

// Map returns a copy of the assigned values.
func (r *Record) Map() map[string]any { return maps.Clone(r.values) }

// PK returns the primary key value. For identity-keyed models it is nil until
// the record has been inserted or loaded.
func (r *Record) PK() any {
	if r.model != nil && !r.model.HasIdentity() {
		return r.values[r.model.PrimaryKeyName()]
	}
	return r.pk
}

// SetPK records the identity value assigned by the store.
func (r *Record) SetPK(v any) {
	if r.model != nil && !r.model.HasIdentity() {
		r.values[r.model.PrimaryKeyName()] = v
		return
	}
	r.pk = v
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	return &Record{model: r.model, values: maps.Clone(r.values), pk: r.pk}
}

// LoadRecord builds a record from stored values, as returned by a lookup.
func (m *Model) LoadRecord(pk any, values map[string]any) *Record {
	r := &Record{model: m, values: maps.Clone(values), pk: pk}
	if r.values == nil {
		r.values = make(map[string]any)
	}
	return r
}
