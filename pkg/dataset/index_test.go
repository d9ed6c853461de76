package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIndex(t *testing.T) {
	t.Parallel()

	ds, err := FromColumns([]string{"a"}, [][]any{{1, 2}})
	require.NoError(t, err)

	assert.Equal(t, []string{""}, ds.IndexNames())
	assert.False(t, ds.HasIndexLevel(""))
	assert.False(t, ds.HasIndexLevel("a"))
	_, err = ds.IndexLevelValues("a")
	assert.ErrorIs(t, err, ErrNoIndexLevel)
}

func TestSetIndex(t *testing.T) {
	t.Parallel()

	ds, err := FromColumns([]string{"name1", "name2", "b"}, [][]any{
		{"a", "b"},
		{"x", "y"},
		{1, 2},
	})
	require.NoError(t, err)

	single, err := ds.SetIndex("name1")
	require.NoError(t, err)
	assert.Equal(t, []string{"name2", "b"}, single.Columns())
	assert.Equal(t, []string{"name1"}, single.IndexNames())
	vals, err := single.IndexLevelValues("name1")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, vals)

	multi, err := ds.SetIndex("name1", "name2")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, multi.Columns())
	assert.True(t, multi.HasIndexLevel("name2"))
	vals, err = multi.IndexLevelValues("name2")
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, vals)
	assert.Equal(t, 2, multi.Len())

	// The source dataset keeps its columns.
	assert.Equal(t, []string{"name1", "name2", "b"}, ds.Columns())

	_, err = ds.SetIndex("nope")
	assert.ErrorIs(t, err, ErrNoColumn)
	_, err = ds.SetIndex()
	assert.Error(t, err)
}

func TestWithIndex(t *testing.T) {
	t.Parallel()

	ds, err := FromColumns([]string{"a"}, [][]any{{1, 2}})
	require.NoError(t, err)

	bad, err := NewIndex([]string{"k"}, [][]any{{1}})
	require.NoError(t, err)
	assert.ErrorIs(t, ds.WithIndex(bad), ErrLength)

	_, err = NewIndex([]string{"k", "j"}, [][]any{{1, 2}, {1}})
	assert.ErrorIs(t, err, ErrLength)

	good, err := NewIndex([]string{"k"}, [][]any{{"p", "q"}})
	require.NoError(t, err)
	require.NoError(t, ds.WithIndex(good))
	assert.Equal(t, []string{"k"}, ds.IndexNames())

	require.NoError(t, ds.WithIndex(nil))
	assert.Equal(t, []string{""}, ds.IndexNames())
}
