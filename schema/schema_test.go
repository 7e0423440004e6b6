package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mow-search/mow/schema"
)

func allKindsFields() []schema.Field {
	return []schema.Field{
		schema.NewField("text", schema.Text, schema.WithDocument()),
		schema.NewField("name", schema.Keyword, schema.WithAttr("Author"), schema.NotIndexed()),
		schema.NewField("pub_date", schema.DateTime, schema.WithAttr("PubDate")),
		schema.NewField("sites", schema.MultiValue),
		schema.NewField("seen_count", schema.Integer, schema.NotIndexed()),
		schema.NewField("is_active", schema.Boolean, schema.WithDefault(true)),
	}
}

func TestBuild(t *testing.T) {
	s, err := schema.Build(allKindsFields())
	require.NoError(t, err)

	assert.Equal(t, "text", s.DocumentField())
	assert.Equal(t, 6, s.Len())
	assert.Equal(t, []string{
		"id", "is_active", "model", "name", "pk", "pub_date", "seen_count", "sites", "text",
	}, s.Names())

	name, ok := s.Field("name")
	require.True(t, ok)
	assert.False(t, name.Indexed)
	assert.True(t, name.Stored)

	active, ok := s.Field("is_active")
	require.True(t, ok)
	assert.Equal(t, true, active.Default)
}

func TestBuildRequiresDocumentField(t *testing.T) {
	_, err := schema.Build([]schema.Field{
		schema.NewField("name", schema.Keyword),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no document field")
}

func TestBuildRejectsMultipleDocumentFields(t *testing.T) {
	_, err := schema.Build([]schema.Field{
		schema.NewField("text", schema.Text, schema.WithDocument()),
		schema.NewField("body", schema.Text, schema.WithDocument()),
	})
	require.Error(t, err)
}

func TestBuildRejectsReservedNames(t *testing.T) {
	for _, name := range []string{"id", "model", "pk"} {
		_, err := schema.Build([]schema.Field{
			schema.NewField("text", schema.Text, schema.WithDocument()),
			schema.NewField(name, schema.Keyword),
		})
		require.Error(t, err, "reserved name %q should be rejected", name)
	}
}

func TestBuildRejectsKindConflict(t *testing.T) {
	_, err := schema.Build([]schema.Field{
		schema.NewField("text", schema.Text, schema.WithDocument()),
		schema.NewField("count", schema.Integer),
		schema.NewField("count", schema.Keyword),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count")
}

func TestBuildMergesOverlappingDeclarations(t *testing.T) {
	s, err := schema.Build([]schema.Field{
		schema.NewField("text", schema.Text, schema.WithDocument()),
		schema.NewField("author", schema.Keyword, schema.WithBoost(2.0)),
		schema.NewField("author", schema.Keyword, schema.NotIndexed()),
	})
	require.NoError(t, err)

	author, ok := s.Field("author")
	require.True(t, ok)
	assert.Equal(t, 2.0, author.Boost)
	assert.True(t, author.Indexed, "any indexed declaration wins the merge")
}

func TestNewFieldDefaults(t *testing.T) {
	f := schema.NewField("title", schema.Text)
	assert.True(t, f.Indexed)
	assert.True(t, f.Stored)
	assert.Equal(t, 1.0, f.Boost)
	assert.False(t, f.Document)
}

func TestFieldValidateUnknownKind(t *testing.T) {
	f := schema.Field{Name: "x", Kind: schema.Kind("geo_shape")}
	require.Error(t, f.Validate())
}
