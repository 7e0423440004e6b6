// Package fixtures provides the sample models and deterministic data sets
// the package tests index and search against.
package fixtures

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mow-search/mow/index"
	"github.com/mow-search/mow/schema"
)

const (
	NoteModel    = "core.note"
	CommentModel = "core.comment"
)

// Note is the primary sample model.
type Note struct {
	ID      int
	Author  string
	Editor  string
	Body    string
	Tags    []string
	Seen    int
	Rating  float64
	Active  bool
	PubDate time.Time
}

// Comment is a second model for multi-model registry tests.
type Comment struct {
	ID      uuid.UUID
	Author  string
	Body    string
	PubDate time.Time
}

// Notes builds n deterministic notes, ids 1..n, with pub dates one day
// apart. Every body contains the token "indexed" so full-text assertions
// have a common anchor.
func Notes(n int) []any {
	base := time.Date(2009, 2, 25, 0, 30, 0, 0, time.UTC)
	out := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, &Note{
			ID:      i,
			Author:  fmt.Sprintf("daniel%d", i),
			Editor:  "david",
			Body:    fmt.Sprintf("Indexed!\n%d", i),
			Tags:    []string{"staff", "outdoor"},
			Seen:    i * 2,
			Rating:  3.6,
			Active:  i%2 == 1,
			PubDate: base.AddDate(0, 0, -i),
		})
	}
	return out
}

// Comments builds n deterministic comments with stable UUIDs.
func Comments(n int) []any {
	base := time.Date(2009, 6, 18, 9, 0, 0, 0, time.UTC)
	out := make([]any, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, &Comment{
			ID:      uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("comment-%d", i))),
			Author:  fmt.Sprintf("alice%d", i),
			Body:    fmt.Sprintf("A comment about note %d", i),
			PubDate: base.AddDate(0, 0, i),
		})
	}
	return out
}

// NoteFields is the standard field set for the note model.
func NoteFields() []schema.Field {
	return []schema.Field{
		schema.NewField("text", schema.Text, schema.WithDocument(), schema.WithAttr("Body")),
		schema.NewField("name", schema.Keyword, schema.WithAttr("Author")),
		schema.NewField("pub_date", schema.DateTime, schema.WithAttr("PubDate")),
	}
}

// NoteIndex declares the standard note index.
func NoteIndex() *index.ModelIndex {
	idx, err := index.NewModelIndex(NoteModel, NoteFields())
	if err != nil {
		panic(err)
	}
	return idx
}

// CommentIndex declares the standard comment index, sharing the note
// document field name.
func CommentIndex() *index.ModelIndex {
	idx, err := index.NewModelIndex(CommentModel, []schema.Field{
		schema.NewField("text", schema.Text, schema.WithDocument(), schema.WithAttr("Body")),
		schema.NewField("name", schema.Keyword, schema.WithAttr("Author")),
		schema.NewField("pub_date", schema.DateTime, schema.WithAttr("PubDate")),
	})
	if err != nil {
		panic(err)
	}
	return idx
}

// AutocompleteNoteIndex adds edge-ngram fields for autocomplete tests.
func AutocompleteNoteIndex() *index.ModelIndex {
	idx, err := index.NewModelIndex(NoteModel, []schema.Field{
		schema.NewField("text", schema.Text, schema.WithDocument(), schema.WithAttr("Body")),
		schema.NewField("name", schema.Keyword, schema.WithAttr("Author")),
		schema.NewField("text_auto", schema.EdgeNgram, schema.WithAttr("Body")),
		schema.NewField("name_auto", schema.EdgeNgram, schema.WithAttr("Author")),
	})
	if err != nil {
		panic(err)
	}
	return idx
}

// RoundTripIndex declares one field of every kind, filled by prepare hooks
// so stored-value round-tripping can be asserted end to end.
func RoundTripIndex() *index.ModelIndex {
	fixed := map[string]any{
		"text":           "This is some example text.",
		"name":           "Mister Pants",
		"is_active":      true,
		"post_count":     25,
		"average_rating": 3.6,
		"price":          "24.99",
		"pub_date":       time.Date(2009, 11, 21, 0, 0, 0, 0, time.UTC),
		"created":        time.Date(2009, 11, 21, 21, 31, 0, 0, time.UTC),
		"tags":           []string{"staff", "outdoor", "activist", "scientist"},
		"sites":          []string{"3", "5", "1"},
		"empty_list":     []string{},
	}

	fields := []schema.Field{
		schema.NewField("text", schema.Text, schema.WithDocument()),
		schema.NewField("name", schema.Keyword),
		schema.NewField("is_active", schema.Boolean),
		schema.NewField("post_count", schema.Integer),
		schema.NewField("average_rating", schema.Float),
		schema.NewField("price", schema.Decimal),
		schema.NewField("pub_date", schema.Date),
		schema.NewField("created", schema.DateTime),
		schema.NewField("tags", schema.MultiValue),
		schema.NewField("sites", schema.MultiValue),
		schema.NewField("empty_list", schema.MultiValue),
	}

	opts := make([]index.ModelIndexOption, 0, len(fixed))
	for name, value := range fixed {
		opts = append(opts, index.WithFieldPrepare(name, func(ctx context.Context, obj any) (any, error) {
			return value, nil
		}))
	}

	idx, err := index.NewModelIndex(NoteModel, fields, opts...)
	if err != nil {
		panic(err)
	}
	return idx
}
