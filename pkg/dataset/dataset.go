// Package dataset holds an in-memory tabular dataset: ordered, uniquely named
// columns plus an optional (possibly multi-level) row index.
//
// Values are stored column-major as []any. A cell is "missing" when it is nil,
// the NA sentinel, a NaN float or the zero time.Time; see IsMissing.
package dataset

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"slices"
	"time"
)

var (
	// ErrLength is returned when a column or index level does not match the
	// dataset's row count.
	ErrLength = errors.New("dataset: length mismatch")

	// ErrNoColumn is returned when a named column does not exist.
	ErrNoColumn = errors.New("dataset: no such column")

	// ErrNoIndexLevel is returned when a named index level does not exist.
	ErrNoIndexLevel = errors.New("dataset: no such index level")
)

type naType struct{}

func (naType) String() string { return "NA" }

// NA is the dataset's missing-value sentinel. Loaders use it for empty cells.
var NA any = naType{}

// IsMissing reports whether v carries no meaningful data.
func IsMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case naType:
		return true
	case float64:
		return math.IsNaN(x)
	case float32:
		return math.IsNaN(float64(x))
	case time.Time:
		return x.IsZero()
	case *time.Time:
		return x == nil || x.IsZero()
	}
	return false
}

// Dataset is an ordered collection of named columns with an optional index.
// The zero value is an empty dataset with no columns.
type Dataset struct {
	names  []string
	pos    map[string]int
	cols   [][]any
	index  *Index
	length int
}

// FromColumns builds a dataset from column names and column-major values.
func FromColumns(names []string, values [][]any) (*Dataset, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("%w: %d names for %d columns", ErrLength, len(names), len(values))
	}
	ds := &Dataset{}
	for i, name := range names {
		if err := ds.SetColumn(name, values[i]); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// FromRows builds a dataset from column names and row-major values.
func FromRows(names []string, rows [][]any) (*Dataset, error) {
	cols := make([][]any, len(names))
	for c := range cols {
		cols[c] = make([]any, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrLength, r, len(row), len(names))
		}
		for c, v := range row {
			cols[c][r] = v
		}
	}
	ds, err := FromColumns(names, cols)
	if err != nil {
		return nil, err
	}
	ds.length = len(rows)
	return ds, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return d.length }

// Columns returns the column names in order.
func (d *Dataset) Columns() []string { return slices.Clone(d.names) }

// HasColumn reports whether name is a column (index levels are not columns).
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.pos[name]
	return ok
}

// Column returns a copy of the named column's values.
func (d *Dataset) Column(name string) ([]any, bool) {
	i, ok := d.pos[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(d.cols[i]), true
}

// SetColumn adds name as the last column, or replaces it in place when it
// already exists. The first column added to an empty dataset fixes Len.
func (d *Dataset) SetColumn(name string, values []any) error {
	if name == "" {
		return fmt.Errorf("dataset: empty column name")
	}
	if len(d.cols) == 0 && d.index == nil && d.length == 0 {
		d.length = len(values)
	}
	if len(values) != d.length {
		return fmt.Errorf("%w: column %q has %d values, want %d", ErrLength, name, len(values), d.length)
	}
	vals := slices.Clone(values)
	if vals == nil {
		vals = []any{}
	}
	if i, ok := d.pos[name]; ok {
		d.cols[i] = vals
		return nil
	}
	if d.pos == nil {
		d.pos = make(map[string]int)
	}
	d.pos[name] = len(d.names)
	d.names = append(d.names, name)
	d.cols = append(d.cols, vals)
	return nil
}

// MapColumn replaces every value of the named column with fn(value).
func (d *Dataset) MapColumn(name string, fn func(any) (any, error)) error {
	i, ok := d.pos[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	col := d.cols[i]
	for r, v := range col {
		nv, err := fn(v)
		if err != nil {
			return fmt.Errorf("dataset: column %q row %d: %w", name, r, err)
		}
		col[r] = nv
	}
	return nil
}

// FillMissing replaces missing values of the named column with v and returns
// how many cells were filled.
func (d *Dataset) FillMissing(name string, v any) (int, error) {
	i, ok := d.pos[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	n := 0
	for r, cur := range d.cols[i] {
		if IsMissing(cur) {
			d.cols[i][r] = v
			n++
		}
	}
	return n, nil
}

// Copy returns a deep copy of the column and index slices. Cell values
// themselves are shared.
func (d *Dataset) Copy() *Dataset {
	out := &Dataset{
		names:  slices.Clone(d.names),
		pos:    make(map[string]int, len(d.pos)),
		cols:   make([][]any, len(d.cols)),
		length: d.length,
	}
	for k, v := range d.pos {
		out.pos[k] = v
	}
	for i, c := range d.cols {
		out.cols[i] = slices.Clone(c)
	}
	if d.index != nil {
		out.index = d.index.clone()
	}
	return out
}

// Rows iterates the dataset in positional order, yielding each row's index key
// and a read-only view of the row.
func (d *Dataset) Rows() iter.Seq2[Key, Row] {
	return func(yield func(Key, Row) bool) {
		for r := 0; r < d.length; r++ {
			if !yield(d.key(r), Row{ds: d, pos: r}) {
				return
			}
		}
	}
}

func (d *Dataset) key(r int) Key {
	if d.index == nil {
		return Key{r}
	}
	k := make(Key, len(d.index.levels))
	for l, lvl := range d.index.levels {
		k[l] = lvl[r]
	}
	return k
}

// Key identifies a row: the index values of the row, or its position when the
// dataset has no index.
type Key []any

// Row is a view of one dataset row. It is only valid while the dataset is not
// modified.
type Row struct {
	ds  *Dataset
	pos int
}

// Position returns the zero-based row position.
func (r Row) Position() int { return r.pos }

// Get returns the row's value for a column.
func (r Row) Get(name string) (any, bool) {
	i, ok := r.ds.pos[name]
	if !ok {
		return nil, false
	}
	return r.ds.cols[i][r.pos], true
}

// Value returns the row's value for a column, or NA when there is no such
// column.
func (r Row) Value(name string) any {
	if v, ok := r.Get(name); ok {
		return v
	}
	return NA
}

// Map returns the row's column values keyed by column name.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.ds.names))
	for i, name := range r.ds.names {
		out[name] = r.ds.cols[i][r.pos]
	}
	return out
}
