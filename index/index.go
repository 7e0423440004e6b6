// Package index maps application model objects to searchable documents. An
// Index declares the fields for one model type; a UnifiedIndex is the
// registry engines derive their schema from.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/mow-search/mow/schema"
)

// SkipDocument is returned from a prepare hook to drop the object from the
// index without failing the batch.
var SkipDocument = errors.New("skip document")

// Index declares the searchable fields for one model type and prepares model
// objects into documents.
type Index interface {
	// Model is the registry key, e.g. "core.article".
	Model() string
	Fields() []schema.Field
	Prepare(ctx context.Context, obj any) (*Document, error)
}

// Document is the prepared, engine-agnostic form of a model object.
type Document struct {
	ID     string
	Model  string
	PK     string
	Boost  float64
	Fields map[string]any
}

// DocID builds the document identity "<model>.<pk>".
func DocID(model, pk string) string {
	return model + "." + pk
}

// PrepareFunc computes one field value from a model object. Returning
// SkipDocument drops the whole object.
type PrepareFunc func(ctx context.Context, obj any) (any, error)

// BoostFunc computes a per-document boost from a model object.
type BoostFunc func(obj any) float64

// ModelIndex is the standard Index implementation: field values come from
// struct attributes declared on the fields, overridable per field with
// prepare hooks.
type ModelIndex struct {
	model    string
	fields   []schema.Field
	pkAttr   string
	prepare  map[string]PrepareFunc
	boostFor BoostFunc
}

type ModelIndexOption func(*ModelIndex)

// WithPKAttr sets the attribute path the primary key is read from.
// Defaults to "ID".
func WithPKAttr(path string) ModelIndexOption {
	return func(mi *ModelIndex) { mi.pkAttr = path }
}

// WithFieldPrepare installs a prepare hook for one field, replacing
// attribute extraction.
func WithFieldPrepare(field string, fn PrepareFunc) ModelIndexOption {
	return func(mi *ModelIndex) { mi.prepare[field] = fn }
}

// WithBoostFunc installs a per-document boost hook.
func WithBoostFunc(fn BoostFunc) ModelIndexOption {
	return func(mi *ModelIndex) { mi.boostFor = fn }
}

// NewModelIndex declares an index for model with the given fields. The field
// list must build into a valid schema.
func NewModelIndex(model string, fields []schema.Field, opts ...ModelIndexOption) (*ModelIndex, error) {
	if model == "" {
		return nil, fmt.Errorf("index has no model name")
	}
	if _, err := schema.Build(fields); err != nil {
		return nil, fmt.Errorf("index %q: %w", model, err)
	}

	mi := &ModelIndex{
		model:   model,
		fields:  fields,
		pkAttr:  "ID",
		prepare: make(map[string]PrepareFunc),
	}
	for _, opt := range opts {
		opt(mi)
	}
	return mi, nil
}

func (mi *ModelIndex) Model() string { return mi.model }

func (mi *ModelIndex) Fields() []schema.Field { return mi.fields }

// Prepare extracts and converts every declared field from obj. Field prepare
// hooks run before conversion; a hook returning SkipDocument, or an
// attribute path resolving through it, drops the object.
func (mi *ModelIndex) Prepare(ctx context.Context, obj any) (*Document, error) {
	pkRaw, ok := Attr(obj, mi.pkAttr)
	if !ok || pkRaw == nil {
		return nil, fmt.Errorf("index %q: object has no primary key at %q", mi.model, mi.pkAttr)
	}
	pk := fmt.Sprintf("%v", pkRaw)

	doc := &Document{
		ID:     DocID(mi.model, pk),
		Model:  mi.model,
		PK:     pk,
		Boost:  1.0,
		Fields: make(map[string]any, len(mi.fields)),
	}
	if mi.boostFor != nil {
		doc.Boost = mi.boostFor(obj)
	}

	for _, f := range mi.fields {
		raw, err := mi.rawValue(ctx, f, obj)
		if err != nil {
			if errors.Is(err, SkipDocument) {
				return nil, SkipDocument
			}
			return nil, fmt.Errorf("index %q field %q: %w", mi.model, f.Name, err)
		}

		converted, err := schema.FormatValue(f, raw)
		if err != nil {
			return nil, fmt.Errorf("index %q: %w", mi.model, err)
		}
		if converted == nil {
			continue
		}
		doc.Fields[f.Name] = converted
	}

	return doc, nil
}

func (mi *ModelIndex) rawValue(ctx context.Context, f schema.Field, obj any) (any, error) {
	if fn, ok := mi.prepare[f.Name]; ok {
		return fn(ctx, obj)
	}
	if f.Attr != "" {
		v, ok := Attr(obj, f.Attr)
		if !ok {
			return nil, fmt.Errorf("attribute %q not found on %T", f.Attr, obj)
		}
		return v, nil
	}
	return nil, nil
}
