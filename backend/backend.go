// Package backend defines the contract every search engine adapter
// implements, the result types they return, and the connection-level
// configuration shared across engines.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/mow-search/mow/index"
	"github.com/mow-search/mow/query"
)

// Kind names a supported engine.
type Kind string

const (
	Bleve         Kind = "bleve"
	Elasticsearch Kind = "elasticsearch"
	Postgres      Kind = "postgres"
)

// ErrUnsupportedEngine reports an unknown engine kind.
var ErrUnsupportedEngine = errors.New("unsupported engine kind")

// UnsupportedError reports a feature the selected engine cannot provide.
type UnsupportedError struct {
	Engine  Kind
	Feature string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("engine %q does not support %s", e.Engine, e.Feature)
}

// Backend is the engine adapter contract. Implementations translate the
// SQ filter algebra and Options into native engine calls. Backends are safe
// for concurrent use once Setup has returned.
type Backend interface {
	// Setup creates or opens the engine-native index derived from the
	// registered schema. Idempotent.
	Setup(ctx context.Context) error

	// Update prepares and indexes the given model objects through idx.
	// Objects whose prepare hooks return index.SkipDocument are dropped.
	Update(ctx context.Context, idx index.Index, objs []any) error

	// Remove deletes one document by its "<model>.<pk>" identity.
	Remove(ctx context.Context, id string) error

	// Clear deletes the documents of the given models; with no models it
	// empties the whole index.
	Clear(ctx context.Context, models []string) error

	// Search executes the filter tree with the given options.
	Search(ctx context.Context, sq *query.SQ, opts *query.Options) (*Result, error)

	// MoreLikeThis finds documents similar to the identified one. The extra
	// filter and options narrow the candidates.
	MoreLikeThis(ctx context.Context, id string, extra *query.SQ, opts *query.Options) (*Result, error)

	// DeleteIndex destroys the engine-native index entirely.
	DeleteIndex(ctx context.Context) error

	// DocCount reports the number of indexed documents.
	DocCount(ctx context.Context) (uint64, error)

	Capabilities() Capabilities

	Close() error
}

// Capabilities reports which optional features an engine provides. The
// queryset layer turns a missing capability into an UnsupportedError before
// touching the engine.
type Capabilities struct {
	Highlight    bool
	TermFacets   bool
	DateFacets   bool
	QueryFacets  bool
	Spelling     bool
	MoreLikeThis bool
	Autocomplete bool
	Fuzzy        bool
}

