package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMissing(t *testing.T) {
	t.Parallel()

	var nilTime *time.Time
	now := time.Now()
	tests := []struct {
		v    any
		want bool
	}{
		{nil, true},
		{NA, true},
		{math.NaN(), true},
		{float32(math.NaN()), true},
		{time.Time{}, true},
		{nilTime, true},
		{&now, false},
		{now, false},
		{0, false},
		{"", false},
		{1.5, false},
		{false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsMissing(tt.v), "IsMissing(%#v)", tt.v)
	}
}

func TestFromRows(t *testing.T) {
	t.Parallel()

	ds, err := FromRows([]string{"a", "b"}, [][]any{{1, "x"}, {2, "y"}, {3, "z"}})
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, []string{"a", "b"}, ds.Columns())

	col, ok := ds.Column("b")
	require.True(t, ok)
	assert.Equal(t, []any{"x", "y", "z"}, col)

	_, err = FromRows([]string{"a", "b"}, [][]any{{1}})
	assert.ErrorIs(t, err, ErrLength)

	empty, err := FromRows([]string{"a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.True(t, empty.HasColumn("a"))
}

func TestSetColumn(t *testing.T) {
	t.Parallel()

	ds := &Dataset{}
	require.NoError(t, ds.SetColumn("a", []any{1, 2}))
	require.NoError(t, ds.SetColumn("b", []any{3, 4}))
	assert.ErrorIs(t, ds.SetColumn("c", []any{1}), ErrLength)
	assert.Error(t, ds.SetColumn("", []any{1, 2}))

	// Replacing keeps the column position.
	require.NoError(t, ds.SetColumn("a", []any{5, 6}))
	assert.Equal(t, []string{"a", "b"}, ds.Columns())
	col, _ := ds.Column("a")
	assert.Equal(t, []any{5, 6}, col)
}

func TestColumnReturnsCopy(t *testing.T) {
	t.Parallel()

	ds, err := FromColumns([]string{"a"}, [][]any{{1, 2}})
	require.NoError(t, err)
	col, _ := ds.Column("a")
	col[0] = 99
	again, _ := ds.Column("a")
	assert.Equal(t, []any{1, 2}, again)
}

func TestMapColumnAndFillMissing(t *testing.T) {
	t.Parallel()

	ds, err := FromColumns([]string{"a"}, [][]any{{1, nil, NA, math.NaN()}})
	require.NoError(t, err)

	n, err := ds.FillMissing("a", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, ds.MapColumn("a", func(v any) (any, error) { return v.(int) + 1, nil }))
	col, _ := ds.Column("a")
	assert.Equal(t, []any{2, 1, 1, 1}, col)

	_, err = ds.FillMissing("nope", 0)
	assert.ErrorIs(t, err, ErrNoColumn)
	assert.ErrorIs(t, ds.MapColumn("nope", nil), ErrNoColumn)
}

func TestCopyIsIndependent(t *testing.T) {
	t.Parallel()

	ds, err := FromColumns([]string{"a", "b"}, [][]any{{1, nil}, {"x", "y"}})
	require.NoError(t, err)
	ix, err := NewIndex([]string{"k"}, [][]any{{"r1", "r2"}})
	require.NoError(t, err)
	require.NoError(t, ds.WithIndex(ix))

	cp := ds.Copy()
	_, err = cp.FillMissing("a", 7)
	require.NoError(t, err)
	require.NoError(t, cp.SetColumn("c", []any{true, false}))

	col, _ := ds.Column("a")
	assert.Equal(t, []any{1, nil}, col)
	assert.False(t, ds.HasColumn("c"))
	assert.Equal(t, []string{"k"}, cp.IndexNames())
}

func TestRows(t *testing.T) {
	t.Parallel()

	ds, err := FromColumns([]string{"a", "b"}, [][]any{{1, 2, 3}, {"x", "y", "z"}})
	require.NoError(t, err)

	var (
		keys []Key
		bs   []any
	)
	for k, row := range ds.Rows() {
		keys = append(keys, k)
		bs = append(bs, row.Value("b"))
		assert.Equal(t, NA, row.Value("missing"))
	}
	assert.Equal(t, []Key{{0}, {1}, {2}}, keys)
	assert.Equal(t, []any{"x", "y", "z"}, bs)

	// Early break stops the iteration.
	seen := 0
	for range ds.Rows() {
		seen++
		break
	}
	assert.Equal(t, 1, seen)

	indexed, err := ds.SetIndex("b")
	require.NoError(t, err)
	for k, row := range indexed.Rows() {
		assert.Equal(t, map[string]any{"a": row.Value("a")}, row.Map())
		if row.Position() == 1 {
			assert.Equal(t, Key{"y"}, k)
		}
	}
}
