package pg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mow-search/mow/query"
	"github.com/mow-search/mow/schema"
)

func testBuilder(t *testing.T) *sqlBuilder {
	t.Helper()
	s, err := schema.Build([]schema.Field{
		schema.NewField("text", schema.Text, schema.WithDocument()),
		schema.NewField("name", schema.Keyword),
		schema.NewField("seen", schema.Integer),
		schema.NewField("active", schema.Boolean),
		schema.NewField("pub_date", schema.DateTime),
	})
	require.NoError(t, err)
	return newSQLBuilder(s)
}

func TestWhereMatchAll(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.MatchAll())
	require.NoError(t, err)
	assert.Equal(t, "TRUE", where)
	assert.Empty(t, b.args)
}

func TestWhereContent(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.Content("golden retriever"))
	require.NoError(t, err)
	assert.Equal(t, "doc @@ plainto_tsquery('english', $1)", where)
	assert.Equal(t, []any{"golden retriever"}, b.args)
}

func TestWhereBlankContentMatchesNothing(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.Content("   "))
	require.NoError(t, err)
	assert.Equal(t, "FALSE", where)
}

func TestWhereKeywordTerm(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.Term("name", "daniel1"))
	require.NoError(t, err)
	assert.Equal(t, "fields->>'name' = $1", where)
	assert.Equal(t, []any{"daniel1"}, b.args)
}

func TestWhereBooleanTree(t *testing.T) {
	b := testBuilder(t)

	sq := query.And(
		query.Content("indexed"),
		query.Not(query.Term("name", "daniel1")),
	)
	where, err := b.where(sq)
	require.NoError(t, err)
	assert.Equal(t,
		"(doc @@ plainto_tsquery('english', $1) AND NOT (fields->>'name' = $2))",
		where)
	assert.Equal(t, []any{"indexed", "daniel1"}, b.args)
}

func TestWhereOrTree(t *testing.T) {
	b := testBuilder(t)

	sq := query.Or(query.Term("name", "a"), query.Term("name", "b"))
	where, err := b.where(sq)
	require.NoError(t, err)
	assert.Equal(t, "(fields->>'name' = $1 OR fields->>'name' = $2)", where)
}

func TestWhereNumericCast(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.Gt("seen", 10))
	require.NoError(t, err)
	assert.Equal(t, "(fields->>'seen')::numeric > $1", where)
	assert.Equal(t, []any{10}, b.args)
}

func TestWhereDateRange(t *testing.T) {
	b := testBuilder(t)

	cutoff := time.Date(2009, 2, 23, 0, 0, 0, 0, time.UTC)
	where, err := b.where(query.Lte("pub_date", cutoff))
	require.NoError(t, err)
	assert.Equal(t, "(fields->>'pub_date')::timestamptz <= $1", where)
	assert.Equal(t, []any{cutoff}, b.args)
}

func TestWhereIn(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.In("name", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, "fields->>'name' IN ($1, $2)", where)
	assert.Equal(t, []any{"a", "b"}, b.args)
}

func TestWhereEmptyInMatchesNothing(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.In("name"))
	require.NoError(t, err)
	assert.Equal(t, "FALSE", where)
}

func TestWhereRangeBetween(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.Range("seen", 2, 10))
	require.NoError(t, err)
	assert.Equal(t, "(fields->>'seen')::numeric BETWEEN $1 AND $2", where)
	assert.Equal(t, []any{2, 10}, b.args)
}

func TestWhereRangeOpenBounds(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.Range("seen", nil, 8))
	require.NoError(t, err)
	assert.Equal(t, "(fields->>'seen')::numeric <= $1", where)
	assert.Equal(t, []any{8}, b.args)

	b = testBuilder(t)
	where, err = b.where(query.Range("seen", 2, nil))
	require.NoError(t, err)
	assert.Equal(t, "(fields->>'seen')::numeric >= $1", where)
	assert.Equal(t, []any{2}, b.args)

	b = testBuilder(t)
	where, err = b.where(query.Range("seen", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, "TRUE", where)
	assert.Empty(t, b.args)
}

func TestWhereStartsWithAnchorsWordStart(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.StartsWith("name", "Dani"))
	require.NoError(t, err)
	assert.Equal(t, `fields->>'name' ~* ('\m' || $1)`, where)
	assert.Equal(t, []any{"dani"}, b.args)
}

func TestWhereIDs(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.Term("id", []any{"core.note.1", "core.note.2"}))
	require.NoError(t, err)
	assert.Equal(t, "id IN ($1, $2)", where)

	b = testBuilder(t)
	where, err = b.where(query.Term("id", "core.note.1"))
	require.NoError(t, err)
	assert.Equal(t, "id = $1", where)
}

func TestWhereAutoTokens(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.Auto(`"gold pants" winner -loser`))
	require.NoError(t, err)
	assert.Equal(t,
		"(doc @@ phraseto_tsquery('english', $1) AND "+
			"doc @@ plainto_tsquery('english', $2) AND "+
			"NOT doc @@ plainto_tsquery('english', $3))",
		where)
	assert.Equal(t, []any{"gold pants", "winner", "loser"}, b.args)
}

func TestWhereExactPhrase(t *testing.T) {
	b := testBuilder(t)

	where, err := b.where(query.Exact("text", "gold pants"))
	require.NoError(t, err)
	assert.Equal(t, "doc @@ phraseto_tsquery('english', $1)", where)
}

func TestRankExpr(t *testing.T) {
	b := testBuilder(t)

	assert.Equal(t, "0.0", b.rankExpr(nil))
	assert.Equal(t,
		"(ts_rank(doc, plainto_tsquery('english', $1)) * boost)",
		b.rankExpr([]string{"golden", "retriever"}))
	assert.Equal(t, []any{"golden retriever"}, b.args)
}

func TestHeadlineExpr(t *testing.T) {
	b := testBuilder(t)

	assert.Equal(t, "''", b.headlineExpr(nil))
	assert.Equal(t,
		"ts_headline('english', fields->>'text', plainto_tsquery('english', $1)"+
			", 'StartSel=<em>, StopSel=</em>')",
		b.headlineExpr([]string{"indexed"}))
}

func TestOrderBy(t *testing.T) {
	b := testBuilder(t)

	orderBy, err := b.orderBy(nil)
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY rank DESC, id ASC", orderBy)

	orderBy, err = b.orderBy([]string{"-pub_date", "id"})
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY (fields->>'pub_date')::timestamptz DESC, id ASC", orderBy)
}
