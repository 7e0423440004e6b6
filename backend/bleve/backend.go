// Package bleve implements the search backend on an embedded bleve index.
// It supports both on-disk and memory-only storage; the latter is what the
// test suites run against.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	htmlformat "github.com/blevesearch/bleve/v2/search/highlight/format/html"
	simplefrag "github.com/blevesearch/bleve/v2/search/highlight/fragmenter/simple"
	simplehl "github.com/blevesearch/bleve/v2/search/highlight/highlighter/simple"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/mow-search/mow/backend"
	"github.com/mow-search/mow/index"
	"github.com/mow-search/mow/pkg/pagination"
	"github.com/mow-search/mow/query"
	"github.com/mow-search/mow/schema"
)

const termFacetSize = 100

// emHighlighter wraps matches in <em> tags; the registry default wraps them
// in <mark>.
const emHighlighter = "em"

var (
	emHighlighterOnce sync.Once
	emHighlighterErr  error
)

func registerEmHighlighter() error {
	emHighlighterOnce.Do(func() {
		_, emHighlighterErr = bleve.Config.Cache.DefineFragmentFormatter(emHighlighter, map[string]any{
			"type":   htmlformat.Name,
			"before": "<em>",
			"after":  "</em>",
		})
		if emHighlighterErr != nil {
			return
		}
		_, emHighlighterErr = bleve.Config.Cache.DefineHighlighter(emHighlighter, map[string]any{
			"type":       simplehl.Name,
			"fragmenter": simplefrag.Name,
			"formatter":  emHighlighter,
		})
	})
	return emHighlighterErr
}

type Backend struct {
	mu     sync.RWMutex
	idx    bleve.Index
	cfg    *backend.Config
	schema *schema.Schema
	tr     *translator
}

// New creates a bleve backend for the given schema. Call Setup before any
// other operation.
func New(cfg *backend.Config, s *schema.Schema) (*Backend, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if cfg.Engine != backend.Bleve {
		return nil, fmt.Errorf("%w %q", backend.ErrUnsupportedEngine, cfg.Engine)
	}
	if err := registerEmHighlighter(); err != nil {
		return nil, fmt.Errorf("register highlighter: %w", err)
	}
	return &Backend{
		cfg:    cfg,
		schema: s,
		tr:     &translator{schema: s},
	}, nil
}

// Setup opens the index, creating it with the schema mapping when it does
// not exist yet.
func (b *Backend) Setup(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.idx != nil {
		return nil
	}
	return b.openLocked()
}

func (b *Backend) openLocked() error {
	if b.cfg.Storage == backend.StorageMem {
		return b.createLocked()
	}

	idx, err := bleve.Open(b.cfg.Path)
	if err == nil {
		b.idx = idx
		return nil
	}
	return b.createLocked()
}

func (b *Backend) createLocked() error {
	im, err := BuildIndexMapping(b.schema)
	if err != nil {
		return fmt.Errorf("build index mapping: %w", err)
	}

	var idx bleve.Index
	if b.cfg.Storage == backend.StorageMem {
		idx, err = bleve.NewMemOnly(im)
	} else {
		idx, err = bleve.New(b.cfg.Path, im)
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	b.idx = idx
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.idx == nil {
		return nil
	}
	err := b.idx.Close()
	b.idx = nil
	return err
}

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		Highlight:    true,
		TermFacets:   true,
		DateFacets:   true,
		QueryFacets:  true,
		Spelling:     true,
		MoreLikeThis: true,
		Autocomplete: true,
		Fuzzy:        true,
	}
}

// Update prepares and indexes the given objects. Objects the index declines
// to prepare are skipped; preparation failures abort the batch.
func (b *Backend) Update(ctx context.Context, idx index.Index, objs []any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.idx == nil {
		return fmt.Errorf("backend is not set up")
	}

	batch := b.idx.NewBatch()
	for _, obj := range objs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		doc, err := idx.Prepare(ctx, obj)
		if err != nil {
			if errors.Is(err, index.SkipDocument) {
				slog.Debug("document skipped during indexing", "model", idx.Model())
				continue
			}
			return fmt.Errorf("prepare document for %q: %w", idx.Model(), err)
		}

		if err := batch.Index(doc.ID, b.payload(doc)); err != nil {
			return fmt.Errorf("batch document %q: %w", doc.ID, err)
		}

		if batch.Size() >= b.cfg.BatchSize {
			if err := b.idx.Batch(batch); err != nil {
				return fmt.Errorf("commit batch: %w", err)
			}
			batch = b.idx.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := b.idx.Batch(batch); err != nil {
			return fmt.Errorf("commit final batch: %w", err)
		}
	}
	return nil
}

func (b *Backend) payload(doc *index.Document) map[string]any {
	fields := make(map[string]any, len(doc.Fields)+2)
	for name, value := range doc.Fields {
		fields[name] = value
	}
	fields[schema.ModelField] = doc.Model
	fields[schema.PKField] = doc.PK
	return fields
}

func (b *Backend) Remove(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.idx == nil {
		return fmt.Errorf("backend is not set up")
	}
	if err := b.idx.Delete(id); err != nil {
		return fmt.Errorf("remove document %q: %w", id, err)
	}
	return nil
}

// Clear removes all documents for the given models. With no models it wipes
// the whole index by recreating it.
func (b *Backend) Clear(ctx context.Context, models []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.idx == nil {
		return fmt.Errorf("backend is not set up")
	}

	if len(models) == 0 {
		return b.recreateLocked()
	}

	for _, model := range models {
		if err := b.clearModelLocked(ctx, model); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) recreateLocked() error {
	if err := b.idx.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	b.idx = nil

	if b.cfg.Storage == backend.StorageFile {
		if err := os.RemoveAll(b.cfg.Path); err != nil {
			return fmt.Errorf("remove index files: %w", err)
		}
	}
	return b.createLocked()
}

func (b *Backend) clearModelLocked(ctx context.Context, model string) error {
	q := bleve.NewTermQuery(model)
	q.SetField(schema.ModelField)

	for {
		req := bleve.NewSearchRequestOptions(q, pagination.PageMaxSize, 0, false)
		res, err := b.idx.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("find documents for model %q: %w", model, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}

		batch := b.idx.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.idx.Batch(batch); err != nil {
			return fmt.Errorf("delete documents for model %q: %w", model, err)
		}
	}
}

// DeleteIndex destroys the index storage entirely. A later Setup starts from
// an empty index.
func (b *Backend) DeleteIndex(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.idx != nil {
		if err := b.idx.Close(); err != nil {
			return fmt.Errorf("close index: %w", err)
		}
		b.idx = nil
	}
	if b.cfg.Storage == backend.StorageFile {
		if err := os.RemoveAll(b.cfg.Path); err != nil {
			return fmt.Errorf("remove index files: %w", err)
		}
	}
	return nil
}

func (b *Backend) DocCount(ctx context.Context) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.idx == nil {
		return 0, fmt.Errorf("backend is not set up")
	}
	return b.idx.DocCount()
}

// Search translates the filter tree into a native bleve query and runs it
// with the requested window, sorting, highlighting, and facets applied.
func (b *Backend) Search(ctx context.Context, sq *query.SQ, opts *query.Options) (*backend.Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.idx == nil {
		return nil, fmt.Errorf("backend is not set up")
	}
	if opts == nil {
		opts = query.DefaultOptions()
	}

	q, err := b.tr.translate(sq)
	if err != nil {
		return nil, err
	}
	q = b.constrain(q, opts)

	req, err := b.buildRequest(q, opts)
	if err != nil {
		return nil, err
	}

	res, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := b.convert(res, opts)

	if len(opts.QueryFacets) > 0 {
		if err := b.queryFacets(ctx, q, opts, out); err != nil {
			return nil, err
		}
	}

	if opts.IncludeSpelling {
		suggestion, err := b.suggest(sq)
		if err != nil {
			return nil, err
		}
		out.SpellingSuggestion = suggestion
	}
	return out, nil
}

// constrain narrows the base query to the requested models and narrow terms.
func (b *Backend) constrain(q bquery.Query, opts *query.Options) bquery.Query {
	extras := make([]bquery.Query, 0, 2)

	if len(opts.Models) > 0 {
		parts := make([]bquery.Query, 0, len(opts.Models))
		for _, model := range opts.Models {
			tq := bleve.NewTermQuery(model)
			tq.SetField(schema.ModelField)
			parts = append(parts, tq)
		}
		extras = append(extras, bleve.NewDisjunctionQuery(parts...))
	}

	for _, narrow := range opts.Narrow {
		field, value, ok := splitNarrow(narrow)
		if !ok {
			continue
		}
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		extras = append(extras, tq)
	}

	if len(extras) == 0 {
		return q
	}
	return bleve.NewConjunctionQuery(append([]bquery.Query{q}, extras...)...)
}

func (b *Backend) buildRequest(q bquery.Query, opts *query.Options) (*bleve.SearchRequest, error) {
	size := opts.Window(pagination.PageMaxSize)
	req := bleve.NewSearchRequestOptions(q, size, opts.StartOffset, false)
	req.Fields = []string{"*"}

	if len(opts.SortBy) > 0 {
		sorts := make([]string, 0, len(opts.SortBy))
		for _, key := range opts.SortBy {
			sorts = append(sorts, sortExpr(key))
		}
		req.SortBy(sorts)
	}

	if opts.Highlight {
		req.Highlight = bleve.NewHighlightWithStyle(emHighlighter)
		req.Highlight.AddField(b.schema.DocumentField())
	}

	for _, field := range opts.Facets {
		req.AddFacet(field, bleve.NewFacetRequest(field, termFacetSize))
	}

	for field, df := range opts.DateFacets {
		fr := bleve.NewFacetRequest(field, termFacetSize)
		if err := addDateRanges(fr, df); err != nil {
			return nil, fmt.Errorf("date facet on %q: %w", field, err)
		}
		req.AddFacet("date:"+field, fr)
	}

	return req, nil
}

func addDateRanges(fr *bleve.FacetRequest, df query.DateFacet) error {
	for start := df.Start; start.Before(df.End); {
		end, err := df.Next(start)
		if err != nil {
			return err
		}
		if end.After(df.End) {
			end = df.End
		}
		fr.AddDateTimeRange(start.UTC().Format(time.RFC3339), start, end)
		start = end
	}
	return nil
}

func (b *Backend) convert(res *bleve.SearchResult, opts *query.Options) *backend.Result {
	out := &backend.Result{
		Hits:    int64(res.Total),
		Records: make([]*backend.Record, 0, len(res.Hits)),
	}

	for _, hit := range res.Hits {
		rec := &backend.Record{
			ID:     hit.ID,
			Score:  hit.Score,
			Fields: hit.Fields,
		}
		if m, ok := hit.Fields[schema.ModelField].(string); ok {
			rec.Model = m
		}
		if pk, ok := hit.Fields[schema.PKField].(string); ok {
			rec.PK = pk
		}
		if len(hit.Fragments) > 0 {
			rec.Highlighted = hit.Fragments
		}
		out.Records = append(out.Records, rec)
	}

	if len(res.Facets) > 0 {
		out.Facets = b.convertFacets(res)
	}
	return out
}

func (b *Backend) convertFacets(res *bleve.SearchResult) *backend.FacetCounts {
	fc := &backend.FacetCounts{
		Fields:  make(map[string][]backend.FacetCount),
		Dates:   make(map[string][]backend.FacetCount),
		Queries: make(map[string]int64),
	}

	for name, fr := range res.Facets {
		if len(fr.DateRanges) > 0 {
			counts := make([]backend.FacetCount, 0, len(fr.DateRanges))
			for _, dr := range fr.DateRanges {
				counts = append(counts, backend.FacetCount{
					Value: dr.Name,
					Count: int64(dr.Count),
				})
			}
			fc.Dates[trimDatePrefix(name)] = counts
			continue
		}

		if fr.Terms == nil {
			continue
		}
		terms := fr.Terms.Terms()
		counts := make([]backend.FacetCount, 0, len(terms))
		for _, tf := range terms {
			counts = append(counts, backend.FacetCount{
				Value: tf.Term,
				Count: int64(tf.Count),
			})
		}
		fc.Fields[name] = counts
	}
	return fc
}

// queryFacets runs one count-only search per facet expression on top of the
// base query.
func (b *Backend) queryFacets(ctx context.Context, base bquery.Query, opts *query.Options, out *backend.Result) error {
	if out.Facets == nil {
		out.Facets = &backend.FacetCounts{
			Fields:  make(map[string][]backend.FacetCount),
			Dates:   make(map[string][]backend.FacetCount),
			Queries: make(map[string]int64),
		}
	}
	if out.Facets.Queries == nil {
		out.Facets.Queries = make(map[string]int64)
	}

	for name, expr := range opts.QueryFacets {
		qq := bleve.NewQueryStringQuery(expr)
		req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(base, qq), 0, 0, false)
		res, err := b.idx.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("query facet %q: %w", name, err)
		}
		out.Facets.Queries[name] = int64(res.Total)
	}
	return nil
}

func sortExpr(key string) string {
	field, desc := query.SortKey(key)
	if field == schema.IDField {
		field = "_id"
	}
	if desc {
		return "-" + field
	}
	return field
}

func splitNarrow(narrow string) (field, value string, ok bool) {
	for i := 0; i < len(narrow); i++ {
		if narrow[i] == ':' {
			return narrow[:i], narrow[i+1:], true
		}
	}
	return "", "", false
}

func trimDatePrefix(name string) string {
	const prefix = "date:"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return name
}
