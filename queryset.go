package mow

import (
	"context"
	"fmt"
	"time"

	"github.com/mow-search/mow/backend"
	"github.com/mow-search/mow/query"
)

// DefaultLoadWindow is how many records one backend round-trip fetches
// when no Load size is set.
const DefaultLoadWindow = 10

// QuerySet is a lazy, immutable chain of search refinements. Chain
// methods return modified copies; nothing hits the backend until a
// terminal accessor runs. A QuerySet caches its results, so repeated
// iteration over the same value does not re-query. QuerySet values are
// not safe for concurrent terminal calls.
type QuerySet struct {
	conn *Connection
	sq   *query.SQ
	opts query.Options
	load int

	cache      map[int]*backend.Record
	total      int64
	totalKnown bool
	facets     *backend.FacetCounts
	spelling   string
	spellKnown bool
}

// Query starts an unfiltered QuerySet on the connection.
func (c *Connection) Query() *QuerySet {
	return &QuerySet{conn: c, load: DefaultLoadWindow}
}

// clone copies the chain state deeply and drops the result cache.
func (q *QuerySet) clone() *QuerySet {
	out := &QuerySet{conn: q.conn, sq: q.sq, load: q.load}

	out.opts = q.opts
	out.opts.SortBy = append([]string(nil), q.opts.SortBy...)
	out.opts.Facets = append([]string(nil), q.opts.Facets...)
	out.opts.Narrow = append([]string(nil), q.opts.Narrow...)
	out.opts.Models = append([]string(nil), q.opts.Models...)
	if q.opts.DateFacets != nil {
		out.opts.DateFacets = make(map[string]query.DateFacet, len(q.opts.DateFacets))
		for k, v := range q.opts.DateFacets {
			out.opts.DateFacets[k] = v
		}
	}
	if q.opts.QueryFacets != nil {
		out.opts.QueryFacets = make(map[string]string, len(q.opts.QueryFacets))
		for k, v := range q.opts.QueryFacets {
			out.opts.QueryFacets[k] = v
		}
	}
	return out
}

// Filter narrows the set to documents matching sq.
func (q *QuerySet) Filter(sq *query.SQ) *QuerySet {
	out := q.clone()
	out.sq = out.sq.And(sq)
	return out
}

// Exclude removes documents matching sq.
func (q *QuerySet) Exclude(sq *query.SQ) *QuerySet {
	return q.Filter(query.Not(sq))
}

// AutoQuery filters on user-typed input: quoted phrases, "-" exclusion.
func (q *QuerySet) AutoQuery(input string) *QuerySet {
	return q.Filter(query.Auto(input))
}

// Models restricts results to the named model types.
func (q *QuerySet) Models(models ...string) *QuerySet {
	out := q.clone()
	out.opts.Models = append(out.opts.Models, models...)
	return out
}

// OrderBy replaces the sort keys; "-field" sorts descending.
func (q *QuerySet) OrderBy(keys ...string) *QuerySet {
	out := q.clone()
	out.opts.SortBy = append([]string(nil), keys...)
	return out
}

// Highlight asks the engine for highlighted document-field fragments.
func (q *QuerySet) Highlight() *QuerySet {
	out := q.clone()
	out.opts.Highlight = true
	return out
}

// Facet adds term facets on the given fields.
func (q *QuerySet) Facet(fields ...string) *QuerySet {
	out := q.clone()
	out.opts.Facets = append(out.opts.Facets, fields...)
	return out
}

// DateFacet buckets a date field between start and end in gap steps.
func (q *QuerySet) DateFacet(field string, start, end time.Time, gap query.Gap) *QuerySet {
	out := q.clone()
	if out.opts.DateFacets == nil {
		out.opts.DateFacets = make(map[string]query.DateFacet, 1)
	}
	out.opts.DateFacets[field] = query.DateFacet{Start: start, End: end, Gap: gap}
	return out
}

// QueryFacet counts documents matching an engine query-string expression.
func (q *QuerySet) QueryFacet(name, expr string) *QuerySet {
	out := q.clone()
	if out.opts.QueryFacets == nil {
		out.opts.QueryFacets = make(map[string]string, 1)
	}
	out.opts.QueryFacets[name] = expr
	return out
}

// Narrow drills down on "field:value" restrictions, applied as filters
// after faceting.
func (q *QuerySet) Narrow(exprs ...string) *QuerySet {
	out := q.clone()
	out.opts.Narrow = append(out.opts.Narrow, exprs...)
	return out
}

// Autocomplete filters on a prefix of the given field; edge-ngram fields
// complete on word starts.
func (q *QuerySet) Autocomplete(field, prefix string) *QuerySet {
	return q.Filter(query.StartsWith(field, prefix))
}

// Load sets how many records one backend round-trip fetches.
func (q *QuerySet) Load(n int) *QuerySet {
	out := q.clone()
	if n > 0 {
		out.load = n
	}
	return out
}

func (q *QuerySet) rootSQ() *query.SQ {
	if q.sq == nil {
		return query.MatchAll()
	}
	return q.sq
}

func (q *QuerySet) checkCapabilities() error {
	caps := q.conn.backend.Capabilities()
	engine := q.conn.cfg.Engine

	switch {
	case q.opts.Highlight && !caps.Highlight:
		return &backend.UnsupportedError{Engine: engine, Feature: "highlighting"}
	case len(q.opts.Facets) > 0 && !caps.TermFacets:
		return &backend.UnsupportedError{Engine: engine, Feature: "term facets"}
	case len(q.opts.DateFacets) > 0 && !caps.DateFacets:
		return &backend.UnsupportedError{Engine: engine, Feature: "date facets"}
	case len(q.opts.QueryFacets) > 0 && !caps.QueryFacets:
		return &backend.UnsupportedError{Engine: engine, Feature: "query facets"}
	case q.opts.IncludeSpelling && !caps.Spelling:
		return &backend.UnsupportedError{Engine: engine, Feature: "spelling suggestions"}
	case q.sq.UsesLookup(query.LookupFuzzy) && !caps.Fuzzy:
		return &backend.UnsupportedError{Engine: engine, Feature: "fuzzy matching"}
	case q.sq.UsesLookup(query.LookupStartsWith) && !caps.Autocomplete:
		return &backend.UnsupportedError{Engine: engine, Feature: "autocomplete"}
	}
	return nil
}

// cacheIsFull reports whether every known hit is loaded.
func (q *QuerySet) cacheIsFull() bool {
	return q.totalKnown && int64(len(q.cache)) >= q.total
}

// fillCache loads the half-open offset window [start, end) unless every
// offset in it is already cached. One call issues at most one search.
func (q *QuerySet) fillCache(ctx context.Context, start, end int) error {
	if err := q.checkCapabilities(); err != nil {
		return err
	}
	if err := q.opts.Validate(); err != nil {
		return err
	}

	if q.cache == nil {
		q.cache = make(map[int]*backend.Record)
	}
	if q.totalKnown {
		if int64(end) > q.total {
			end = int(q.total)
		}
		loaded := true
		for i := start; i < end; i++ {
			if _, ok := q.cache[i]; !ok {
				loaded = false
				break
			}
		}
		if loaded {
			return nil
		}
	}

	opts := q.opts
	opts.StartOffset = start
	opts.EndOffset = end

	res, err := q.conn.search(ctx, q.rootSQ(), &opts)
	if err != nil {
		return err
	}

	q.total = res.Hits
	q.totalKnown = true
	for i, rec := range res.Records {
		q.cache[start+i] = rec
	}
	if res.Facets != nil {
		q.facets = res.Facets
	}
	if opts.IncludeSpelling {
		q.spelling = res.SpellingSuggestion
		q.spellKnown = true
	}
	return nil
}

// Count returns the total number of hits.
func (q *QuerySet) Count(ctx context.Context) (int64, error) {
	if q.totalKnown {
		return q.total, nil
	}
	if err := q.fillCache(ctx, 0, q.load); err != nil {
		return 0, err
	}
	return q.total, nil
}

// All loads and returns every hit, window by window.
func (q *QuerySet) All(ctx context.Context) ([]*backend.Record, error) {
	count, err := q.Count(ctx)
	if err != nil {
		return nil, err
	}
	return q.Slice(ctx, 0, int(count))
}

// Each walks every hit in order, loading windows as needed. Returning an
// error from fn stops the walk.
func (q *QuerySet) Each(ctx context.Context, fn func(*backend.Record) error) error {
	count, err := q.Count(ctx)
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		rec, err := q.At(ctx, i)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// At returns the hit at offset i.
func (q *QuerySet) At(ctx context.Context, i int) (*backend.Record, error) {
	if i < 0 {
		return nil, fmt.Errorf("offset must not be negative, got %d", i)
	}
	if rec, ok := q.cache[i]; ok {
		return rec, nil
	}
	if err := q.fillCache(ctx, i, i+q.load); err != nil {
		return nil, err
	}
	rec, ok := q.cache[i]
	if !ok {
		return nil, fmt.Errorf("offset %d is beyond the %d hits", i, q.total)
	}
	return rec, nil
}

// Slice returns the hits in the half-open window [start, end). Offsets
// already cached are not re-queried; a window beyond the cache issues
// exactly one additional search.
func (q *QuerySet) Slice(ctx context.Context, start, end int) ([]*backend.Record, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid slice window [%d, %d)", start, end)
	}
	if err := q.fillCache(ctx, start, end); err != nil {
		return nil, err
	}

	if int64(end) > q.total {
		end = int(q.total)
	}
	out := make([]*backend.Record, 0, end-start)
	for i := start; i < end; i++ {
		rec, ok := q.cache[i]
		if !ok {
			if err := q.fillCache(ctx, i, i+q.load); err != nil {
				return nil, err
			}
			rec, ok = q.cache[i]
			if !ok {
				break
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Values returns the named stored fields of every hit.
func (q *QuerySet) Values(ctx context.Context, fields ...string) ([]map[string]any, error) {
	records, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		row := make(map[string]any, len(fields))
		for _, f := range fields {
			row[f] = rec.Fields[f]
		}
		out = append(out, row)
	}
	return out, nil
}

// ValuesFlat returns one stored field of every hit.
func (q *QuerySet) ValuesFlat(ctx context.Context, field string) ([]any, error) {
	records, err := q.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Fields[field])
	}
	return out, nil
}

// Facets returns the facet counts of the set.
func (q *QuerySet) Facets(ctx context.Context) (*backend.FacetCounts, error) {
	if q.facets != nil {
		return q.facets, nil
	}
	if err := q.fillCache(ctx, 0, q.load); err != nil {
		return nil, err
	}
	if q.facets == nil {
		return &backend.FacetCounts{}, nil
	}
	return q.facets, nil
}

// SpellingSuggestion returns the engine's suggestion for the query
// words, or "" when the words are already well spelled.
func (q *QuerySet) SpellingSuggestion(ctx context.Context) (string, error) {
	if q.spellKnown {
		return q.spelling, nil
	}

	spell := q.clone()
	spell.opts.IncludeSpelling = true
	if err := spell.fillCache(ctx, 0, q.load); err != nil {
		return "", err
	}
	q.spelling = spell.spelling
	q.spellKnown = true
	return q.spelling, nil
}

// MoreLikeThis returns documents similar to the identified one, further
// restricted by the set's filters and options.
func (q *QuerySet) MoreLikeThis(ctx context.Context, id string) ([]*backend.Record, error) {
	if !q.conn.backend.Capabilities().MoreLikeThis {
		return nil, &backend.UnsupportedError{Engine: q.conn.cfg.Engine, Feature: "more like this"}
	}

	opts := q.opts
	opts.StartOffset = 0
	opts.EndOffset = -1

	res, err := q.conn.moreLikeThis(ctx, id, q.sq, &opts)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}
