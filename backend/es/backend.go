// Package es implements the search backend on Elasticsearch using the typed
// client. Filter trees translate to native query DSL, facets to
// aggregations, and spelling suggestions to the term suggester.
package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/sortorder"

	"github.com/mow-search/mow/backend"
	"github.com/mow-search/mow/index"
	"github.com/mow-search/mow/pkg/pagination"
	"github.com/mow-search/mow/query"
	"github.com/mow-search/mow/schema"
)

const (
	termFacetSize   = 100
	spellSuggestKey = "spelling"
)

type Backend struct {
	client    *elasticsearch.TypedClient
	indexName string
	cfg       *backend.Config
	schema    *schema.Schema
	tr        *translator
}

func New(cfg *backend.Config, s *schema.Schema) (*Backend, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if cfg.Engine != backend.Elasticsearch {
		return nil, fmt.Errorf("%w %q", backend.ErrUnsupportedEngine, cfg.Engine)
	}

	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Backend{
		client:    client,
		indexName: cfg.IndexName,
		cfg:       cfg,
		schema:    s,
		tr:        &translator{schema: s},
	}, nil
}

// Setup creates the index with the schema mapping when it does not exist.
func (b *Backend) Setup(ctx context.Context) error {
	exists, err := b.client.Indices.Exists(b.indexName).Do(ctx)
	if err != nil {
		return fmt.Errorf("check if index exists: %w", err)
	}
	if exists {
		slog.Info("index already exists", "index", b.indexName)
		return nil
	}

	mappings, err := buildMapping(b.schema)
	if err != nil {
		return err
	}

	res, err := b.client.Indices.Create(b.indexName).
		Settings(buildSettings()).
		Mappings(mappings).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if !res.Acknowledged {
		return fmt.Errorf("index creation was not acknowledged")
	}

	slog.Info("index created", "index", b.indexName)
	return nil
}

func (b *Backend) Close() error {
	return nil
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

// Update bulk-indexes the prepared documents.
func (b *Backend) Update(ctx context.Context, idx index.Index, objs []any) error {
	if len(objs) == 0 {
		return nil
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         b.indexName,
		Client:        b.client,
		NumWorkers:    4,
		FlushBytes:    5e+6, // 5MB
		FlushInterval: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create bulk indexer: %w", err)
	}

	var failed int64
	for _, obj := range objs {
		doc, err := idx.Prepare(ctx, obj)
		if err != nil {
			if errors.Is(err, index.SkipDocument) {
				slog.Debug("document skipped during indexing", "model", idx.Model())
				continue
			}
			_ = bi.Close(ctx)
			return fmt.Errorf("prepare document for %q: %w", idx.Model(), err)
		}

		payload, err := json.Marshal(b.payload(doc))
		if err != nil {
			_ = bi.Close(ctx)
			return fmt.Errorf("marshal document %q: %w", doc.ID, err)
		}

		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.ID,
			Body:       bytes.NewReader(payload),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				failed++
				if err != nil {
					slog.Error("bulk index error", "error", err, "id", item.DocumentID)
				} else {
					slog.Error("bulk index rejected", "id", item.DocumentID, "type", res.Error.Type, "reason", res.Error.Reason)
				}
			},
		})
		if err != nil {
			_ = bi.Close(ctx)
			return fmt.Errorf("add document %q to bulk: %w", doc.ID, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("flush bulk indexer: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d documents failed to index", failed)
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
	if _, err := b.client.Delete(b.indexName, id).Do(ctx); err != nil {
		return fmt.Errorf("remove document %q: %w", id, err)
	}
	return nil
}

// Clear deletes all documents for the given models, or everything when no
// models are named.
func (b *Backend) Clear(ctx context.Context, models []string) error {
	var q *types.Query
	if len(models) == 0 {
		q = &types.Query{MatchAll: &types.MatchAllQuery{}}
	} else {
		values := make([]types.FieldValue, 0, len(models))
		for _, model := range models {
			values = append(values, model)
		}
		q = &types.Query{Terms: &types.TermsQuery{
			TermsQuery: map[string]types.TermsQueryField{schema.ModelField: values},
		}}
	}

	if _, err := b.client.DeleteByQuery(b.indexName).Query(q).Do(ctx); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	return nil
}

func (b *Backend) DeleteIndex(ctx context.Context) error {
	if _, err := b.client.Indices.Delete(b.indexName).Do(ctx); err != nil {
		return fmt.Errorf("delete index %q: %w", b.indexName, err)
	}
	return nil
}

func (b *Backend) DocCount(ctx context.Context) (uint64, error) {
	res, err := b.client.Count().Index(b.indexName).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return uint64(res.Count), nil
}

func (b *Backend) Search(ctx context.Context, sq *query.SQ, opts *query.Options) (*backend.Result, error) {
	if opts == nil {
		opts = query.DefaultOptions()
	}

	q, err := b.tr.translate(sq)
	if err != nil {
		return nil, err
	}
	q = b.constrain(q, opts)

	req := b.client.Search().
		Index(b.indexName).
		Query(q).
		From(opts.StartOffset).
		Size(opts.Window(pagination.PageMaxSize)).
		TrackScores(true)

	for _, key := range opts.SortBy {
		req = req.Sort(sortOption(key))
	}

	if opts.Highlight {
		req = req.Highlight(&types.Highlight{
			Fields: map[string]types.HighlightField{
				b.schema.DocumentField(): {},
			},
		})
	}

	if aggs := b.aggregations(opts); len(aggs) > 0 {
		req = req.Aggregations(aggs)
	}

	if opts.IncludeSpelling {
		if text := strings.Join(backend.QueryWords(b.schema, sq), " "); text != "" {
			req = req.Suggest(&types.Suggester{
				Text: &text,
				Suggesters: map[string]types.FieldSuggester{
					spellSuggestKey: {Term: &types.TermSuggester{Field: b.schema.DocumentField()}},
				},
			})
		}
	}

	res, err := req.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}
	return b.convert(res.Hits, res.Aggregations, res.Suggest)
}

// MoreLikeThis delegates similarity to the native more_like_this query.
func (b *Backend) MoreLikeThis(ctx context.Context, id string, extra *query.SQ, opts *query.Options) (*backend.Result, error) {
	if opts == nil {
		opts = query.DefaultOptions()
	}

	one := 1
	mlt := types.Query{MoreLikeThis: &types.MoreLikeThisQuery{
		Fields:      []string{b.schema.DocumentField()},
		Like:        []types.Like{types.LikeDocument{Id_: &id}},
		MinTermFreq: &one,
		MinDocFreq:  &one,
	}}

	q := &mlt
	if extra != nil && !extra.IsMatchAll() {
		eq, err := b.tr.translate(extra)
		if err != nil {
			return nil, err
		}
		q = &types.Query{Bool: &types.BoolQuery{Must: []types.Query{mlt, *eq}}}
	}
	q = b.constrain(q, opts)

	res, err := b.client.Search().
		Index(b.indexName).
		Query(q).
		From(opts.StartOffset).
		Size(opts.Window(pagination.PageMaxSize)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("execute similarity search: %w", err)
	}
	return b.convert(res.Hits, res.Aggregations, res.Suggest)
}

func (b *Backend) constrain(q *types.Query, opts *query.Options) *types.Query {
	filters := make([]types.Query, 0, 2)

	if len(opts.Models) > 0 {
		values := make([]types.FieldValue, 0, len(opts.Models))
		for _, model := range opts.Models {
			values = append(values, model)
		}
		filters = append(filters, types.Query{Terms: &types.TermsQuery{
			TermsQuery: map[string]types.TermsQueryField{schema.ModelField: values},
		}})
	}

	for _, narrow := range opts.Narrow {
		field, value, ok := strings.Cut(narrow, ":")
		if !ok {
			continue
		}
		filters = append(filters, types.Query{Term: map[string]types.TermQuery{
			field: {Value: value},
		}})
	}

	if len(filters) == 0 {
		return q
	}
	return &types.Query{Bool: &types.BoolQuery{
		Must:   []types.Query{*q},
		Filter: filters,
	}}
}

func (b *Backend) aggregations(opts *query.Options) map[string]types.Aggregations {
	aggs := make(map[string]types.Aggregations)

	for _, field := range opts.Facets {
		f := field
		size := termFacetSize
		aggs["terms:"+field] = types.Aggregations{
			Terms: &types.TermsAggregation{Field: &f, Size: &size},
		}
	}

	for field, df := range opts.DateFacets {
		f := field
		ranges := make([]types.DateRangeExpression, 0, 8)
		for start := df.Start; start.Before(df.End); {
			end, err := df.Next(start)
			if err != nil {
				break
			}
			if end.After(df.End) {
				end = df.End
			}
			label := start.UTC().Format(time.RFC3339)
			ranges = append(ranges, types.DateRangeExpression{
				Key:  &label,
				From: start.UTC().Format(time.RFC3339),
				To:   end.UTC().Format(time.RFC3339),
			})
			start = end
		}
		aggs["dates:"+field] = types.Aggregations{
			DateRange: &types.DateRangeAggregation{Field: &f, Ranges: ranges},
		}
	}

	for name, expr := range opts.QueryFacets {
		aggs["query:"+name] = types.Aggregations{
			Filter: &types.Query{
				QueryString: &types.QueryStringQuery{Query: expr},
			},
		}
	}

	return aggs
}

func (b *Backend) convert(hits types.HitsMetadata, aggs map[string]types.Aggregate, suggest map[string][]types.Suggest) (*backend.Result, error) {
	out := &backend.Result{}
	if hits.Total != nil {
		out.Hits = hits.Total.Value
	}

	for _, hit := range hits.Hits {
		fields := make(map[string]any)
		if len(hit.Source_) > 0 {
			if err := json.Unmarshal(hit.Source_, &fields); err != nil {
				return nil, fmt.Errorf("unmarshal document: %w", err)
			}
		}

		rec := &backend.Record{Fields: fields}
		if hit.Id_ != nil {
			rec.ID = *hit.Id_
		}
		if hit.Score_ != nil {
			rec.Score = float64(*hit.Score_)
		}
		if m, ok := fields[schema.ModelField].(string); ok {
			rec.Model = m
		}
		if pk, ok := fields[schema.PKField].(string); ok {
			rec.PK = pk
		}
		if len(hit.Highlight) > 0 {
			rec.Highlighted = hit.Highlight
		}
		out.Records = append(out.Records, rec)
	}

	if len(aggs) > 0 {
		out.Facets = convertAggregates(aggs)
	}
	if len(suggest) > 0 {
		out.SpellingSuggestion = convertSuggestion(suggest[spellSuggestKey])
	}
	return out, nil
}

func convertAggregates(aggs map[string]types.Aggregate) *backend.FacetCounts {
	fc := &backend.FacetCounts{
		Fields:  make(map[string][]backend.FacetCount),
		Dates:   make(map[string][]backend.FacetCount),
		Queries: make(map[string]int64),
	}

	for name, agg := range aggs {
		kind, field, ok := strings.Cut(name, ":")
		if !ok {
			continue
		}

		switch a := agg.(type) {
		case *types.StringTermsAggregate:
			if buckets, ok := a.Buckets.([]types.StringTermsBucket); ok {
				counts := make([]backend.FacetCount, 0, len(buckets))
				for _, bucket := range buckets {
					counts = append(counts, backend.FacetCount{
						Value: fmt.Sprintf("%v", bucket.Key),
						Count: bucket.DocCount,
					})
				}
				fc.Fields[field] = counts
			}
		case *types.DateRangeAggregate:
			if buckets, ok := a.Buckets.([]types.RangeBucket); ok {
				counts := make([]backend.FacetCount, 0, len(buckets))
				for _, bucket := range buckets {
					value := ""
					if bucket.Key != nil {
						value = *bucket.Key
					}
					counts = append(counts, backend.FacetCount{
						Value: value,
						Count: bucket.DocCount,
					})
				}
				fc.Dates[field] = counts
			}
		case *types.FilterAggregate:
			if kind == "query" {
				fc.Queries[field] = a.DocCount
			}
		}
	}
	return fc
}

// convertSuggestion joins the best term suggestion per query word, keeping
// words the suggester considers correct.
func convertSuggestion(entries []types.Suggest) string {
	words := make([]string, 0, len(entries))
	for _, entry := range entries {
		ts, ok := entry.(*types.TermSuggest)
		if !ok {
			continue
		}
		word := ts.Text
		if len(ts.Options) > 0 {
			word = ts.Options[0].Text
		}
		words = append(words, word)
	}
	return strings.Join(words, " ")
}

func sortOption(key string) *types.SortOptions {
	field, descending := query.SortKey(key)
	if field == schema.IDField {
		// Sorting on _id needs fielddata; the pk keyword carries the same
		// ordering per model.
		field = schema.PKField
	}

	order := sortorder.Asc
	if descending {
		order = sortorder.Desc
	}
	return &types.SortOptions{
		SortOptions: map[string]types.FieldSort{
			field: {Order: &order},
		},
	}
}
