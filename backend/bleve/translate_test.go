package bleve

import (
	"testing"

	bquery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mow-search/mow/query"
	"github.com/mow-search/mow/schema"
)

func TestTranslateAppliesFieldBoost(t *testing.T) {
	s, err := schema.Build([]schema.Field{
		schema.NewField("text", schema.Text, schema.WithDocument()),
		schema.NewField("title", schema.Text, schema.WithBoost(2.0)),
	})
	require.NoError(t, err)
	tr := &translator{schema: s}

	q, err := tr.translate(query.Term("title", "hello"))
	require.NoError(t, err)
	boosted, ok := q.(bquery.BoostableQuery)
	require.True(t, ok)
	assert.Equal(t, 2.0, boosted.Boost())

	// Unboosted fields keep the engine default.
	q, err = tr.translate(query.Content("hello"))
	require.NoError(t, err)
	boosted, ok = q.(bquery.BoostableQuery)
	require.True(t, ok)
	assert.Equal(t, 1.0, boosted.Boost())
}
