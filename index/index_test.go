package index_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mow-search/mow/index"
	"github.com/mow-search/mow/internal/fixtures"
	"github.com/mow-search/mow/schema"
)

func TestModelIndexPrepare(t *testing.T) {
	idx := fixtures.NoteIndex()
	notes := fixtures.Notes(3)

	doc, err := idx.Prepare(context.Background(), notes[0])
	require.NoError(t, err)

	assert.Equal(t, "core.note.1", doc.ID)
	assert.Equal(t, fixtures.NoteModel, doc.Model)
	assert.Equal(t, "1", doc.PK)
	assert.Equal(t, "Indexed!\n1", doc.Fields["text"])
	assert.Equal(t, "daniel1", doc.Fields["name"])
	assert.Equal(t, time.Date(2009, 2, 24, 0, 30, 0, 0, time.UTC), doc.Fields["pub_date"])
	assert.Equal(t, 1.0, doc.Boost)
}

func TestModelIndexPrepareHookOverridesAttr(t *testing.T) {
	idx, err := index.NewModelIndex(fixtures.NoteModel, fixtures.NoteFields(),
		index.WithFieldPrepare("text", func(ctx context.Context, obj any) (any, error) {
			return obj.(*fixtures.Note).Author, nil
		}),
	)
	require.NoError(t, err)

	doc, err := idx.Prepare(context.Background(), fixtures.Notes(1)[0])
	require.NoError(t, err)
	assert.Equal(t, "daniel1", doc.Fields["text"])
}

func TestModelIndexPrepareSkipDocument(t *testing.T) {
	idx, err := index.NewModelIndex(fixtures.NoteModel, fixtures.NoteFields(),
		index.WithFieldPrepare("text", func(ctx context.Context, obj any) (any, error) {
			if obj.(*fixtures.Note).Author == "daniel3" {
				return nil, index.SkipDocument
			}
			return obj.(*fixtures.Note).Author, nil
		}),
	)
	require.NoError(t, err)

	notes := fixtures.Notes(3)
	_, err = idx.Prepare(context.Background(), notes[2])
	assert.ErrorIs(t, err, index.SkipDocument)

	doc, err := idx.Prepare(context.Background(), notes[0])
	require.NoError(t, err)
	assert.Equal(t, "daniel1", doc.Fields["text"])
}

func TestModelIndexBoostFunc(t *testing.T) {
	idx, err := index.NewModelIndex(fixtures.NoteModel, fixtures.NoteFields(),
		index.WithBoostFunc(func(obj any) float64 {
			if obj.(*fixtures.Note).ID%2 == 0 {
				return 2.0
			}
			return 1.0
		}),
	)
	require.NoError(t, err)

	notes := fixtures.Notes(2)
	odd, err := idx.Prepare(context.Background(), notes[0])
	require.NoError(t, err)
	even, err := idx.Prepare(context.Background(), notes[1])
	require.NoError(t, err)

	assert.Equal(t, 1.0, odd.Boost)
	assert.Equal(t, 2.0, even.Boost)
}

func TestModelIndexMissingPK(t *testing.T) {
	idx, err := index.NewModelIndex(fixtures.NoteModel, fixtures.NoteFields(),
		index.WithPKAttr("Missing"))
	require.NoError(t, err)

	_, err = idx.Prepare(context.Background(), fixtures.Notes(1)[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary key")
}

func TestModelIndexRequiresValidSchema(t *testing.T) {
	_, err := index.NewModelIndex(fixtures.NoteModel, []schema.Field{
		schema.NewField("name", schema.Keyword),
	})
	require.Error(t, err)
}

func TestModelIndexDefaultValue(t *testing.T) {
	idx, err := index.NewModelIndex(fixtures.NoteModel, []schema.Field{
		schema.NewField("text", schema.Text, schema.WithDocument(), schema.WithAttr("Body")),
		schema.NewField("is_active", schema.Boolean, schema.WithDefault(true)),
	})
	require.NoError(t, err)

	doc, err := idx.Prepare(context.Background(), fixtures.Notes(1)[0])
	require.NoError(t, err)
	assert.Equal(t, true, doc.Fields["is_active"])
}

func TestUnifiedRegistry(t *testing.T) {
	ui, err := index.NewUnified(fixtures.NoteIndex(), fixtures.CommentIndex())
	require.NoError(t, err)

	assert.Equal(t, []string{fixtures.CommentModel, fixtures.NoteModel}, ui.Models())

	_, ok := ui.IndexFor(fixtures.NoteModel)
	assert.True(t, ok)
	_, ok = ui.IndexFor("core.unknown")
	assert.False(t, ok)

	name, err := ui.DocumentFieldName()
	require.NoError(t, err)
	assert.Equal(t, "text", name)
}

func TestUnifiedRejectsDuplicateModel(t *testing.T) {
	ui, err := index.NewUnified(fixtures.NoteIndex())
	require.NoError(t, err)

	err = ui.Register(fixtures.NoteIndex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestUnifiedSchemaConflict(t *testing.T) {
	conflicting, err := index.NewModelIndex(fixtures.CommentModel, []schema.Field{
		schema.NewField("text", schema.Text, schema.WithDocument()),
		schema.NewField("pub_date", schema.Keyword),
	})
	require.NoError(t, err)

	ui, err := index.NewUnified(fixtures.NoteIndex(), conflicting)
	require.NoError(t, err)

	_, err = ui.Schema()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "pub_date"))
}

func TestUnifiedSchemaEmpty(t *testing.T) {
	ui, err := index.NewUnified()
	require.NoError(t, err)
	_, err = ui.Schema()
	assert.Error(t, err)
}

func TestDocID(t *testing.T) {
	assert.Equal(t, "core.note.7", index.DocID("core.note", "7"))
}

func TestSkipDocumentIsSentinel(t *testing.T) {
	wrapped := errors.Join(index.SkipDocument)
	assert.ErrorIs(t, wrapped, index.SkipDocument)
}
