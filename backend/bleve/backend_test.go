package bleve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mow-search/mow/backend"
	"github.com/mow-search/mow/index"
	"github.com/mow-search/mow/internal/fixtures"
	"github.com/mow-search/mow/query"
	"github.com/mow-search/mow/schema"
)

func newTestBackend(t *testing.T, indexes ...index.Index) *Backend {
	t.Helper()

	ui, err := index.NewUnified(indexes...)
	require.NoError(t, err)
	s, err := ui.Schema()
	require.NoError(t, err)

	cfg := &backend.Config{Engine: backend.Bleve, Storage: backend.StorageMem}
	b, err := New(cfg, s)
	require.NoError(t, err)
	require.NoError(t, b.Setup(context.Background()))

	t.Cleanup(func() {
		_ = b.Close()
	})
	return b
}

func indexNotes(t *testing.T, b *Backend, idx index.Index, n int) {
	t.Helper()
	require.NoError(t, b.Update(context.Background(), idx, fixtures.Notes(n)))
}

func search(t *testing.T, b *Backend, sq *query.SQ, opts *query.Options) *backend.Result {
	t.Helper()
	res, err := b.Search(context.Background(), sq, opts)
	require.NoError(t, err)
	return res
}

func pks(res *backend.Result) []string {
	out := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, rec.PK)
	}
	return out
}

func TestUpdateAndDocCount(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	count, err := b.DocCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(23), count)
}

func TestUpdateSkipsDeclinedDocuments(t *testing.T) {
	idx, err := index.NewModelIndex(fixtures.NoteModel, fixtures.NoteFields(),
		index.WithFieldPrepare("text", func(ctx context.Context, obj any) (any, error) {
			note := obj.(*fixtures.Note)
			if note.ID == 3 {
				return nil, index.SkipDocument
			}
			return note.Body, nil
		}),
	)
	require.NoError(t, err)

	b := newTestBackend(t, idx)
	require.NoError(t, b.Update(context.Background(), idx, fixtures.Notes(5)))

	count, err := b.DocCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)

	res := search(t, b, query.MatchAll(), query.DefaultOptions())
	assert.NotContains(t, pks(res), "3")
}

func TestRemove(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	require.NoError(t, b.Remove(context.Background(), index.DocID(fixtures.NoteModel, "1")))

	count, err := b.DocCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(22), count)
}

func TestClearSingleModel(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex(), fixtures.CommentIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)
	require.NoError(t, b.Update(context.Background(), fixtures.CommentIndex(), fixtures.Comments(5)))

	require.NoError(t, b.Clear(context.Background(), []string{fixtures.CommentModel}))

	count, err := b.DocCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(23), count)
}

func TestClearEverything(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	require.NoError(t, b.Clear(context.Background(), nil))

	count, err := b.DocCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	// The index stays usable after a full wipe.
	indexNotes(t, b, fixtures.NoteIndex(), 2)
	count, err = b.DocCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestSearchMatchAll(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	res := search(t, b, query.MatchAll(), query.DefaultOptions())
	assert.Equal(t, int64(23), res.Hits)
	assert.Len(t, res.Records, 23)
}

func TestSearchContent(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	res := search(t, b, query.Content("indexed"), query.DefaultOptions())
	assert.Equal(t, int64(23), res.Hits)

	rec := res.Records[0]
	assert.Equal(t, fixtures.NoteModel, rec.Model)
	assert.NotEmpty(t, rec.PK)
	assert.Greater(t, rec.Score, 0.0)
}

func TestSearchBlankContentMatchesNothing(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	res := search(t, b, query.Content(""), query.DefaultOptions())
	assert.Equal(t, int64(0), res.Hits)
	assert.Empty(t, res.Records)
}

func TestSearchFieldFilter(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	res := search(t, b, query.Term("name", "daniel1"), query.DefaultOptions())
	require.Equal(t, int64(1), res.Hits)

	rec := res.Records[0]
	assert.Equal(t, index.DocID(fixtures.NoteModel, "1"), rec.ID)
	assert.Equal(t, "1", rec.PK)
	assert.Equal(t, "daniel1", rec.String("name"))
	assert.Equal(t, time.Date(2009, 2, 24, 0, 30, 0, 0, time.UTC), rec.Time("pub_date").UTC())
}

func TestSearchExclusion(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	sq := query.And(query.Content("indexed"), query.Not(query.Term("name", "daniel1")))
	res := search(t, b, sq, query.DefaultOptions())
	assert.Equal(t, int64(22), res.Hits)
	assert.NotContains(t, pks(res), "1")
}

func TestSearchDateRange(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	cutoff := time.Date(2009, 2, 23, 0, 0, 0, 0, time.UTC)

	res := search(t, b, query.Gt("pub_date", cutoff), query.DefaultOptions())
	assert.Equal(t, int64(2), res.Hits)

	res = search(t, b, query.Lte("pub_date", cutoff), query.DefaultOptions())
	assert.Equal(t, int64(21), res.Hits)
}

func TestSearchIDLookups(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	res := search(t, b, query.Exact("id", index.DocID(fixtures.NoteModel, "5")), query.DefaultOptions())
	require.Equal(t, int64(1), res.Hits)
	assert.Equal(t, "5", res.Records[0].PK)

	res = search(t, b, query.In("id",
		index.DocID(fixtures.NoteModel, "1"),
		index.DocID(fixtures.NoteModel, "2"),
	), query.DefaultOptions())
	assert.Equal(t, int64(2), res.Hits)
}

func TestSearchSort(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	opts := query.DefaultOptions()
	opts.SortBy = []string{"pub_date"}
	res := search(t, b, query.MatchAll(), opts)
	assert.Equal(t, "23", res.Records[0].PK)

	opts.SortBy = []string{"-pub_date"}
	res = search(t, b, query.MatchAll(), opts)
	assert.Equal(t, "1", res.Records[0].PK)

	opts.SortBy = []string{"id"}
	res = search(t, b, query.MatchAll(), opts)
	assert.Equal(t, index.DocID(fixtures.NoteModel, "1"), res.Records[0].ID)
}

func TestSearchWindow(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	opts := query.DefaultOptions()
	opts.SortBy = []string{"-pub_date"}
	opts.StartOffset = 0
	opts.EndOffset = 5
	res := search(t, b, query.MatchAll(), opts)
	assert.Equal(t, int64(23), res.Hits)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, pks(res))

	opts.StartOffset = 10
	opts.EndOffset = 30
	res = search(t, b, query.MatchAll(), opts)
	assert.Len(t, res.Records, 13)

	// Equal offsets still select the single row at the start position.
	opts.StartOffset = 2
	opts.EndOffset = 2
	res = search(t, b, query.MatchAll(), opts)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "3", res.Records[0].PK)
}

func TestSearchHighlight(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 3)

	opts := query.DefaultOptions()
	opts.Highlight = true
	res := search(t, b, query.Content("indexed"), opts)
	require.NotEmpty(t, res.Records)

	fragments := res.Records[0].Highlighted["text"]
	require.NotEmpty(t, fragments)
	assert.Contains(t, fragments[0], "<em>Indexed</em>")
}

func TestSearchNarrowAndModels(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex(), fixtures.CommentIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)
	require.NoError(t, b.Update(context.Background(), fixtures.CommentIndex(), fixtures.Comments(5)))

	opts := query.DefaultOptions()
	opts.Models = []string{fixtures.NoteModel}
	res := search(t, b, query.MatchAll(), opts)
	assert.Equal(t, int64(23), res.Hits)

	opts = query.DefaultOptions()
	opts.Narrow = []string{"name:daniel1"}
	res = search(t, b, query.MatchAll(), opts)
	assert.Equal(t, int64(1), res.Hits)
}

func TestSearchTermFacets(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	opts := query.DefaultOptions()
	opts.Facets = []string{"name"}
	res := search(t, b, query.MatchAll(), opts)

	require.NotNil(t, res.Facets)
	counts := res.Facets.Fields["name"]
	assert.Len(t, counts, 23)
	for _, fc := range counts {
		assert.Equal(t, int64(1), fc.Count)
	}
}

func TestSearchDateFacets(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	opts := query.DefaultOptions()
	opts.DateFacets = map[string]query.DateFacet{
		"pub_date": {
			Start: time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2009, 3, 1, 0, 0, 0, 0, time.UTC),
			Gap:   query.GapMonth,
		},
	}
	res := search(t, b, query.MatchAll(), opts)

	require.NotNil(t, res.Facets)
	counts := res.Facets.Dates["pub_date"]
	require.NotEmpty(t, counts)

	var february int64
	for _, fc := range counts {
		if fc.Value == "2009-02-01T00:00:00Z" {
			february = fc.Count
		}
	}
	assert.Equal(t, int64(23), february)
}

func TestSearchQueryFacets(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	opts := query.DefaultOptions()
	opts.QueryFacets = map[string]string{"indexed": "text:indexed"}
	res := search(t, b, query.MatchAll(), opts)

	require.NotNil(t, res.Facets)
	assert.Equal(t, int64(23), res.Facets.Queries["indexed"])
}

func TestSearchSpellingSuggestion(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	opts := query.DefaultOptions()
	opts.IncludeSpelling = true
	res := search(t, b, query.Content("Indexe"), opts)
	assert.Equal(t, "indexed", res.SpellingSuggestion)
}

func TestAutocomplete(t *testing.T) {
	idx := fixtures.AutocompleteNoteIndex()
	b := newTestBackend(t, idx)
	indexNotes(t, b, idx, 23)

	res := search(t, b, query.StartsWith("name_auto", "dani"), query.DefaultOptions())
	assert.Equal(t, int64(23), res.Hits)

	// Prefix matching is case insensitive.
	res = search(t, b, query.StartsWith("name_auto", "Dani"), query.DefaultOptions())
	assert.Equal(t, int64(23), res.Hits)

	res = search(t, b, query.StartsWith("text_auto", "indexe"), query.DefaultOptions())
	assert.Equal(t, int64(23), res.Hits)

	res = search(t, b, query.StartsWith("name_auto", "zzz"), query.DefaultOptions())
	assert.Equal(t, int64(0), res.Hits)
}

func TestMoreLikeThis(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	id := index.DocID(fixtures.NoteModel, "1")
	res, err := b.MoreLikeThis(context.Background(), id, nil, query.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, int64(22), res.Hits)
	for _, rec := range res.Records {
		assert.NotEqual(t, id, rec.ID)
	}
}

func TestMoreLikeThisUnknownDocument(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 3)

	_, err := b.MoreLikeThis(context.Background(), index.DocID(fixtures.NoteModel, "99"), nil, query.DefaultOptions())
	assert.Error(t, err)
}

func TestValueRoundTrip(t *testing.T) {
	idx := fixtures.RoundTripIndex()
	b := newTestBackend(t, idx)
	require.NoError(t, b.Update(context.Background(), idx, []any{&fixtures.Note{ID: 1}}))

	res := search(t, b, query.MatchAll(), query.DefaultOptions())
	require.Equal(t, int64(1), res.Hits)
	rec := res.Records[0]

	assert.Equal(t, "This is some example text.", rec.String("text"))
	assert.Equal(t, "Mister Pants", rec.String("name"))
	assert.True(t, rec.Bool("is_active"))
	assert.Equal(t, int64(25), rec.Int("post_count"))
	assert.InDelta(t, 3.6, rec.Float("average_rating"), 0.0001)
	assert.Equal(t, "24.99", rec.String("price"))
	assert.Equal(t, time.Date(2009, 11, 21, 0, 0, 0, 0, time.UTC), rec.Time("pub_date").UTC())
	assert.Equal(t, time.Date(2009, 11, 21, 21, 31, 0, 0, time.UTC), rec.Time("created").UTC())
	assert.ElementsMatch(t, []string{"staff", "outdoor", "activist", "scientist"}, rec.Strings("tags"))
	assert.ElementsMatch(t, []string{"3", "5", "1"}, rec.Strings("sites"))
	assert.Empty(t, rec.Strings("empty_list"))

	// Parsed values restore the declared types.
	for _, field := range idx.Fields() {
		if field.Name != "post_count" {
			continue
		}
		parsed, err := schema.ParseValue(field, rec.Fields["post_count"])
		require.NoError(t, err)
		assert.Equal(t, int64(25), parsed)
	}
}

func TestAutoQuerySearch(t *testing.T) {
	b := newTestBackend(t, fixtures.NoteIndex())
	indexNotes(t, b, fixtures.NoteIndex(), 23)

	res := search(t, b, query.Auto("Indexed! 1"), query.DefaultOptions())
	assert.Equal(t, int64(1), res.Hits)

	res = search(t, b, query.Auto("indexed -daniel"), query.DefaultOptions())
	assert.Equal(t, int64(23), res.Hits, "excluded token targets the document field only")

	res = search(t, b, query.Auto(""), query.DefaultOptions())
	assert.Equal(t, int64(23), res.Hits, "a blank user query matches everything")
}
