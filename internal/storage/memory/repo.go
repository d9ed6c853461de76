// Package memory implements an in-process storage.Repository. It enforces the
// primary key and the unique_together constraints of each model itself,
// keeping one xxh3-keyed index per constraint. It backs dry runs, local
// experiments and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"slices"
	"sync"
	"time"

	"rowexport/internal/logging"
	"rowexport/internal/storage"
	"rowexport/pkg/model"

	"github.com/zeebo/xxh3"
)

// Repository holds tables of records in memory. It is safe for concurrent use.
type Repository struct {
	mu     sync.Mutex
	tables map[string]*table
	log    logging.Logger
}

var _ storage.Repository = (*Repository)(nil)

// New returns an empty Repository.
func New(log logging.Logger) *Repository {
	if log == nil {
		log = logging.Discard{}
	}
	return &Repository{tables: map[string]*table{}, log: log.WithField("backend", "memory")}
}

// EnsureTable registers the table of m. It is idempotent.
func (r *Repository) EnsureTable(_ context.Context, m *model.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table(m)
	return nil
}

// Records returns copies of the stored records of table in insertion order.
func (r *Repository) Records(table string) []*model.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[table]
	if !ok {
		return nil
	}
	out := make([]*model.Record, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, row.Clone())
	}
	return out
}

// Get implements storage.Repository.
func (r *Repository) Get(ctx context.Context, m *model.Model, filter map[string]any) (*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for k := range filter {
		if k == m.IdentityName() && m.HasIdentity() {
			continue
		}
		if _, ok := m.Field(k); !ok {
			return nil, fmt.Errorf("memory: %s has no field %q", m.Table, k)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(m)

	var found *model.Record
	for _, i := range t.candidates(filter) {
		row := t.rows[i]
		if !matches(row, filter) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("memory: %s %v: %w", m.Table, filter, model.ErrMultipleRecords)
		}
		found = row
	}
	if found == nil {
		return nil, fmt.Errorf("memory: %s %v: %w", m.Table, filter, model.ErrNotFound)
	}
	return found.Clone(), nil
}

// Save implements storage.Repository. A record whose key is already stored
// replaces that row; any other record is inserted.
func (r *Repository) Save(ctx context.Context, rec *model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := rec.Model()
	if !m.HasIdentity() && rec.PK() == nil {
		return fmt.Errorf("memory: save %s: primary key %q is not set", m.Table, m.PrimaryKeyName())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(m)

	if rec.PK() != nil {
		if i, ok := t.byPK(rec.PK()); ok {
			if err := t.checkUnique([]*model.Record{rec}, i); err != nil {
				return err
			}
			t.replace(i, rec)
			return nil
		}
	}
	if err := t.checkUnique([]*model.Record{rec}, -1); err != nil {
		return err
	}
	t.insert(rec)
	return nil
}

// BulkCreate implements storage.Repository. Either every record is inserted
// or, on a constraint violation, none is.
func (r *Repository) BulkCreate(ctx context.Context, m *model.Model, recs []*model.Record) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(m)

	if err := t.checkUnique(recs, -1); err != nil {
		return 0, err
	}
	for _, rec := range recs {
		t.insert(rec)
	}
	r.log.WithFields(map[string]any{"table": m.Table, "rows": len(recs)}).Debug("bulk insert done")
	return int64(len(recs)), nil
}

// Exec implements storage.Repository. There is no SQL engine; statements are
// accepted and ignored.
func (r *Repository) Exec(context.Context, string) error { return nil }

// Close implements storage.Repository.
func (r *Repository) Close() {}

// table returns the table of m, creating it on first use. r.mu must be held.
func (r *Repository) table(m *model.Model) *table {
	t, ok := r.tables[m.Table]
	if !ok {
		t = newTable(m)
		r.tables[m.Table] = t
	}
	return t
}

// table is one model's rows with a hash index per unique key. The primary
// key is index 0.
type table struct {
	m      *model.Model
	rows   []*model.Record
	keys   [][]string
	index  []map[uint64][]int
	nextID int64
}

func newTable(m *model.Model) *table {
	keys := [][]string{{m.PrimaryKeyName()}}
	for _, tuple := range m.UniqueTogether {
		keys = append(keys, slices.Clone(tuple))
	}
	index := make([]map[uint64][]int, len(keys))
	for i := range index {
		index[i] = map[uint64][]int{}
	}
	return &table{m: m, keys: keys, index: index}
}

func (t *table) tupleOf(rec *model.Record, key []string) []any {
	vals := make([]any, len(key))
	for i, name := range key {
		if name == t.m.IdentityName() && t.m.HasIdentity() {
			vals[i] = rec.PK()
			continue
		}
		vals[i] = rec.Value(name)
	}
	return vals
}

// hasNull reports whether the tuple takes part in uniqueness. As in SQL, a
// NULL member never collides.
func hasNull(vals []any) bool {
	return slices.Contains(vals, nil)
}

func (t *table) byPK(pk any) (int, bool) {
	for _, i := range t.index[0][hashTuple([]any{pk})] {
		if equal(t.rows[i].PK(), pk) {
			return i, true
		}
	}
	return 0, false
}

// checkUnique verifies recs against the stored rows (skipping row skip) and
// against each other.
func (t *table) checkUnique(recs []*model.Record, skip int) error {
	for k, key := range t.keys {
		seen := map[uint64][][]any{}
		for _, rec := range recs {
			vals := t.tupleOf(rec, key)
			if hasNull(vals) {
				continue
			}
			h := hashTuple(vals)
			for _, i := range t.index[k][h] {
				if i != skip && tupleEqual(t.tupleOf(t.rows[i], key), vals) {
					return fmt.Errorf("memory: %s %v=%v: %w", t.m.Table, key, vals, model.ErrUniqueViolation)
				}
			}
			for _, other := range seen[h] {
				if tupleEqual(other, vals) {
					return fmt.Errorf("memory: %s %v=%v: %w", t.m.Table, key, vals, model.ErrUniqueViolation)
				}
			}
			seen[h] = append(seen[h], vals)
		}
	}
	return nil
}

// insert stores a copy of rec, assigning the next identity value to both.
func (t *table) insert(rec *model.Record) {
	if t.m.HasIdentity() && rec.PK() == nil {
		t.nextID++
		rec.SetPK(t.nextID)
	} else if id, ok := rec.PK().(int64); ok && t.m.HasIdentity() && id > t.nextID {
		t.nextID = id
	}
	i := len(t.rows)
	t.rows = append(t.rows, rec.Clone())
	t.indexRow(i)
}

func (t *table) replace(i int, rec *model.Record) {
	t.unindexRow(i)
	t.rows[i] = rec.Clone()
	t.indexRow(i)
}

func (t *table) indexRow(i int) {
	for k, key := range t.keys {
		vals := t.tupleOf(t.rows[i], key)
		if hasNull(vals) {
			continue
		}
		h := hashTuple(vals)
		t.index[k][h] = append(t.index[k][h], i)
	}
}

func (t *table) unindexRow(i int) {
	for k, key := range t.keys {
		vals := t.tupleOf(t.rows[i], key)
		if hasNull(vals) {
			continue
		}
		h := hashTuple(vals)
		t.index[k][h] = slices.DeleteFunc(t.index[k][h], func(j int) bool { return j == i })
		if len(t.index[k][h]) == 0 {
			delete(t.index[k], h)
		}
	}
}

// candidates narrows a lookup to one index bucket when filter names exactly
// the fields of a unique key; otherwise every row is a candidate.
func (t *table) candidates(filter map[string]any) []int {
	for k, key := range t.keys {
		if len(key) != len(filter) {
			continue
		}
		vals := make([]any, len(key))
		ok := true
		for i, name := range key {
			v, has := filter[name]
			if !has || v == nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if ok {
			return t.index[k][hashTuple(vals)]
		}
	}
	all := make([]int, len(t.rows))
	for i := range all {
		all[i] = i
	}
	return all
}

func matches(rec *model.Record, filter map[string]any) bool {
	m := rec.Model()
	for k, want := range filter {
		var got any
		if k == m.IdentityName() && m.HasIdentity() {
			got = rec.PK()
		} else {
			got = rec.Value(k)
		}
		if want == nil {
			if got != nil {
				return false
			}
			continue
		}
		if !equal(got, want) {
			return false
		}
	}
	return true
}

// canonical folds values that compare equal in a database onto one Go value:
// integers to int64, floats with an integral value to int64, times to UTC.
func canonical(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return canonical(float64(x))
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}

func equal(a, b any) bool {
	a, b = canonical(a), canonical(b)
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func tupleEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// hashTuple hashes the canonical form of vals. Equal tuples hash equally;
// callers confirm matches with tupleEqual.
func hashTuple(vals []any) uint64 {
	h := xxh3.New()
	for _, v := range vals {
		v = canonical(v)
		if t, ok := v.(time.Time); ok {
			fmt.Fprintf(h, "time:%d\x00", t.UnixNano())
			continue
		}
		fmt.Fprintf(h, "%T:%v\x00", v, v)
	}
	return h.Sum64()
}
