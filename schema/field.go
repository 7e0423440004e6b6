// Package schema declares the searchable field types an index exposes and
// converts model values to and from their index representation. Engines map
// these declarations onto their native field types.
package schema

import "fmt"

// Kind identifies how a field is analyzed, stored and queried.
type Kind string

const (
	Text       Kind = "text"
	EdgeNgram  Kind = "edge_ngram"
	Keyword    Kind = "keyword"
	MultiValue Kind = "multi_value"
	Integer    Kind = "integer"
	Float      Kind = "float"
	Decimal    Kind = "decimal"
	Boolean    Kind = "boolean"
	Date       Kind = "date"
	DateTime   Kind = "datetime"
)

var supportedKinds = map[Kind]bool{
	Text:       true,
	EdgeNgram:  true,
	Keyword:    true,
	MultiValue: true,
	Integer:    true,
	Float:      true,
	Decimal:    true,
	Boolean:    true,
	Date:       true,
	DateTime:   true,
}

// System field names present on every indexed document. User fields must not
// reuse them.
const (
	IDField    = "id"
	ModelField = "model"
	PKField    = "pk"
)

// Field is a declared searchable field.
//
// Document marks the primary full-text field; a schema has exactly one.
// Attr is a dotted path into the model struct the value is extracted from
// (e.g. "Author" or "Metadata.Source"). Fields with Indexed=false are stored
// with the document but cannot be searched.
type Field struct {
	Name     string
	Kind     Kind
	Document bool
	Indexed  bool
	Stored   bool
	Boost    float64
	Attr     string
	Default  any
}

type FieldOption func(*Field)

// NewField declares a field with the given name and kind. Fields are indexed
// and stored by default with a boost of 1.0.
func NewField(name string, kind Kind, opts ...FieldOption) Field {
	f := Field{
		Name:    name,
		Kind:    kind,
		Indexed: true,
		Stored:  true,
		Boost:   1.0,
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithDocument marks the field as the primary full-text document field.
func WithDocument() FieldOption {
	return func(f *Field) { f.Document = true }
}

// WithAttr sets the model attribute path the field value is extracted from.
func WithAttr(path string) FieldOption {
	return func(f *Field) { f.Attr = path }
}

// WithBoost sets the field weight used for relevance scoring.
func WithBoost(boost float64) FieldOption {
	return func(f *Field) { f.Boost = boost }
}

// WithDefault sets the value used when the model provides none.
func WithDefault(v any) FieldOption {
	return func(f *Field) { f.Default = v }
}

// NotIndexed stores the field without making it searchable.
func NotIndexed() FieldOption {
	return func(f *Field) { f.Indexed = false }
}

// NotStored indexes the field without keeping its stored value.
func NotStored() FieldOption {
	return func(f *Field) { f.Stored = false }
}

// Validate checks the declaration is usable.
func (f Field) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("field has no name")
	}
	if !supportedKinds[f.Kind] {
		return fmt.Errorf("field %q: unsupported kind %q", f.Name, f.Kind)
	}
	if f.Name == IDField || f.Name == ModelField || f.Name == PKField {
		return fmt.Errorf("field %q: name is reserved", f.Name)
	}
	if f.Document && f.Kind != Text {
		return fmt.Errorf("field %q: document field must be %q, got %q", f.Name, Text, f.Kind)
	}
	return nil
}
