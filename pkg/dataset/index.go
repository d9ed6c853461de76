package dataset

import (
	"fmt"
	"slices"
)

// Index is a row index with one or more levels. Level names may be empty for
// unnamed levels; unnamed levels never match a column lookup.
type Index struct {
	names  []string
	levels [][]any
}

// NewIndex builds an index from level names and aligned level values.
func NewIndex(names []string, levels [][]any) (*Index, error) {
	if len(names) == 0 || len(names) != len(levels) {
		return nil, fmt.Errorf("%w: %d index names for %d levels", ErrLength, len(names), len(levels))
	}
	n := len(levels[0])
	ix := &Index{names: slices.Clone(names), levels: make([][]any, len(levels))}
	for i, lvl := range levels {
		if len(lvl) != n {
			return nil, fmt.Errorf("%w: index level %d has %d values, want %d", ErrLength, i, len(lvl), n)
		}
		ix.levels[i] = slices.Clone(lvl)
	}
	return ix, nil
}

// Multi reports whether the index has more than one level.
func (ix *Index) Multi() bool { return len(ix.levels) > 1 }

// Len returns the number of rows covered by the index.
func (ix *Index) Len() int { return len(ix.levels[0]) }

func (ix *Index) clone() *Index {
	out := &Index{names: slices.Clone(ix.names), levels: make([][]any, len(ix.levels))}
	for i, lvl := range ix.levels {
		out.levels[i] = slices.Clone(lvl)
	}
	return out
}

// WithIndex replaces the dataset's index. Passing nil restores the default
// positional index.
func (d *Dataset) WithIndex(ix *Index) error {
	if ix == nil {
		d.index = nil
		return nil
	}
	if len(d.cols) == 0 && d.length == 0 {
		d.length = ix.Len()
	}
	if ix.Len() != d.length {
		return fmt.Errorf("%w: index has %d rows, want %d", ErrLength, ix.Len(), d.length)
	}
	d.index = ix.clone()
	return nil
}

// SetIndex returns a copy of the dataset with the named columns moved into a
// new index, in the given order.
func (d *Dataset) SetIndex(names ...string) (*Dataset, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("dataset: SetIndex needs at least one column")
	}
	levels := make([][]any, len(names))
	for i, name := range names {
		col, ok := d.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNoColumn, name)
		}
		levels[i] = col
	}
	out := &Dataset{length: d.length}
	for i, name := range d.names {
		if slices.Contains(names, name) {
			continue
		}
		if err := out.SetColumn(name, d.cols[i]); err != nil {
			return nil, err
		}
	}
	ix, err := NewIndex(names, levels)
	if err != nil {
		return nil, err
	}
	out.index = ix
	return out, nil
}

// IndexNames returns the index level names. A dataset with the default
// positional index has a single unnamed level.
func (d *Dataset) IndexNames() []string {
	if d.index == nil {
		return []string{""}
	}
	return slices.Clone(d.index.names)
}

// HasIndexLevel reports whether name is a named index level.
func (d *Dataset) HasIndexLevel(name string) bool {
	if name == "" || d.index == nil {
		return false
	}
	return slices.Contains(d.index.names, name)
}

// IndexLevelValues returns a copy of the named index level's values. For a
// single-level index the level's values are returned as a whole.
func (d *Dataset) IndexLevelValues(name string) ([]any, error) {
	if !d.HasIndexLevel(name) {
		return nil, fmt.Errorf("%w: %q", ErrNoIndexLevel, name)
	}
	if !d.index.Multi() {
		return slices.Clone(d.index.levels[0]), nil
	}
	i := slices.Index(d.index.names, name)
	return slices.Clone(d.index.levels[i]), nil
}
