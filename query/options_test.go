package query_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mow-search/mow/query"
)

func TestOptionsValidate(t *testing.T) {
	opts := query.DefaultOptions()
	require.NoError(t, opts.Validate())

	opts = &query.Options{StartOffset: -1, EndOffset: -1}
	require.Error(t, opts.Validate())

	opts = &query.Options{StartOffset: 20, EndOffset: 10}
	require.Error(t, opts.Validate())

	opts = &query.Options{EndOffset: -1, SortBy: []string{"-"}}
	require.Error(t, opts.Validate())

	opts = &query.Options{EndOffset: -1, SortBy: []string{"-pub_date", "id"}}
	require.NoError(t, opts.Validate(), "mixing sort directions is allowed")

	opts = &query.Options{EndOffset: -1, Narrow: []string{"no-colon"}}
	require.Error(t, opts.Validate())
}

func TestOptionsWindow(t *testing.T) {
	opts := &query.Options{StartOffset: 0, EndOffset: 20}
	assert.Equal(t, 20, opts.Window(10))

	opts = &query.Options{StartOffset: 20, EndOffset: 30}
	assert.Equal(t, 10, opts.Window(10))

	opts = &query.Options{StartOffset: 0, EndOffset: 0}
	assert.Equal(t, 1, opts.Window(10), "zero-width window returns one row")

	opts = &query.Options{EndOffset: -1}
	assert.Equal(t, 25, opts.Window(25))
}

func TestSortKey(t *testing.T) {
	field, desc := query.SortKey("-pub_date")
	assert.Equal(t, "pub_date", field)
	assert.True(t, desc)

	field, desc = query.SortKey("id")
	assert.Equal(t, "id", field)
	assert.False(t, desc)
}

func TestDateFacetNext(t *testing.T) {
	start := time.Date(2008, 2, 26, 0, 0, 0, 0, time.UTC)

	df := query.DateFacet{Start: start, End: start.AddDate(1, 0, 0), Gap: query.GapMonth}
	next, err := df.Next(start)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2008, 3, 26, 0, 0, 0, 0, time.UTC), next)

	df.Gap = query.Gap("decade")
	_, err = df.Next(start)
	require.Error(t, err)
}
