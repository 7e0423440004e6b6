// Package mow is a backend-agnostic search layer: model objects are
// declared through indexes, stored by a pluggable engine, and queried
// through a lazy, chainable QuerySet.
package mow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mow-search/mow/backend"
	"github.com/mow-search/mow/backend/factory"
	"github.com/mow-search/mow/index"
	"github.com/mow-search/mow/query"
	"github.com/mow-search/mow/schema"
)

// DefaultAlias names the connection used when no alias is given.
const DefaultAlias = "default"

// QueryLogEntry is one executed search, recorded when debug is on.
type QueryLogEntry struct {
	Query string
	Took  time.Duration
}

// QueryLog collects executed searches per connection. Safe for
// concurrent use.
type QueryLog struct {
	mu      sync.Mutex
	entries []QueryLogEntry
}

func (l *QueryLog) record(q string, took time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, QueryLogEntry{Query: q, Took: took})
}

// Entries returns a copy of the recorded searches.
func (l *QueryLog) Entries() []QueryLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]QueryLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *QueryLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Connection binds a unified index registry to a configured engine.
type Connection struct {
	name    string
	cfg     *backend.Config
	backend backend.Backend
	unified *index.UnifiedIndex
	schema  *schema.Schema
	log     QueryLog
}

// Open builds the engine named by cfg, derives its native schema from the
// given indexes, and runs the engine's Setup.
func Open(ctx context.Context, name string, cfg *backend.Config, indexes ...index.Index) (*Connection, error) {
	ui, err := index.NewUnified(indexes...)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", name, err)
	}
	s, err := ui.Schema()
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", name, err)
	}

	b, err := factory.New(ctx, cfg, s)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", name, err)
	}

	return &Connection{name: name, cfg: cfg, backend: b, unified: ui, schema: s}, nil
}

// NewConnection wraps an already-built backend. Most callers use Open;
// this is for custom engines.
func NewConnection(name string, cfg *backend.Config, b backend.Backend, indexes ...index.Index) (*Connection, error) {
	ui, err := index.NewUnified(indexes...)
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", name, err)
	}
	s, err := ui.Schema()
	if err != nil {
		return nil, fmt.Errorf("connection %q: %w", name, err)
	}
	return &Connection{name: name, cfg: cfg, backend: b, unified: ui, schema: s}, nil
}

func (c *Connection) Name() string                 { return c.name }
func (c *Connection) Backend() backend.Backend     { return c.backend }
func (c *Connection) Schema() *schema.Schema       { return c.schema }
func (c *Connection) QueryLog() *QueryLog          { return &c.log }
func (c *Connection) Unified() *index.UnifiedIndex { return c.unified }

func (c *Connection) Close() error {
	return c.backend.Close()
}

// Update indexes objs through the index registered for model.
func (c *Connection) Update(ctx context.Context, model string, objs []any) error {
	idx, ok := c.unified.IndexFor(model)
	if !ok {
		return fmt.Errorf("connection %q: model %q is not registered", c.name, model)
	}
	return c.backend.Update(ctx, idx, objs)
}

// Remove deletes one document by its "<model>.<pk>" identity.
func (c *Connection) Remove(ctx context.Context, id string) error {
	return c.backend.Remove(ctx, id)
}

// Clear deletes the documents of the given models, or everything when
// none are named.
func (c *Connection) Clear(ctx context.Context, models ...string) error {
	return c.backend.Clear(ctx, models)
}

// search runs one window against the engine, recording the canonical
// query in the log when debug is on and swallowing errors when the
// connection is configured to fail silently.
func (c *Connection) search(ctx context.Context, sq *query.SQ, opts *query.Options) (*backend.Result, error) {
	start := time.Now()
	res, err := c.backend.Search(ctx, sq, opts)
	took := time.Since(start)

	if c.cfg.Debug {
		c.log.record(sq.String(), took)
	}
	if err != nil {
		if c.cfg.SilentlyFail {
			slog.Error("search failed silently", "connection", c.name, "query", sq.String(), "error", err)
			return backend.EmptyResult(), nil
		}
		return nil, err
	}
	return res, nil
}

func (c *Connection) moreLikeThis(ctx context.Context, id string, extra *query.SQ, opts *query.Options) (*backend.Result, error) {
	start := time.Now()
	res, err := c.backend.MoreLikeThis(ctx, id, extra, opts)
	took := time.Since(start)

	if c.cfg.Debug {
		c.log.record("more_like_this:"+id, took)
	}
	if err != nil {
		if c.cfg.SilentlyFail {
			slog.Error("more-like-this failed silently", "connection", c.name, "id", id, "error", err)
			return backend.EmptyResult(), nil
		}
		return nil, err
	}
	return res, nil
}

var (
	regMu       sync.RWMutex
	connections = make(map[string]*Connection)
)

// AddConnection registers c under its name, replacing any previous
// connection with that name.
func AddConnection(c *Connection) {
	regMu.Lock()
	defer regMu.Unlock()
	connections[c.name] = c
}

// Conn returns the registered connection with the given name.
func Conn(name string) (*Connection, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	c, ok := connections[name]
	if !ok {
		return nil, fmt.Errorf("no connection named %q", name)
	}
	return c, nil
}

// RemoveConnection drops a registered connection without closing it.
func RemoveConnection(name string) {
	regMu.Lock()
	defer regMu.Unlock()
	delete(connections, name)
}

// ResetSearchQueries clears the query logs of every registered
// connection.
func ResetSearchQueries() {
	regMu.RLock()
	defer regMu.RUnlock()
	for _, c := range connections {
		c.log.Reset()
	}
}
