// Package pg implements the search backend on PostgreSQL full-text search.
// Documents live in a single table with their prepared values as jsonb and
// the document text as a tsvector; filter trees compile to WHERE clauses.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mow-search/mow/backend"
	"github.com/mow-search/mow/index"
	"github.com/mow-search/mow/pkg/pagination"
	"github.com/mow-search/mow/query"
	"github.com/mow-search/mow/schema"
)

const termFacetSize = 100

type Backend struct {
	pool   *ConnectionPool
	cfg    *backend.Config
	schema *schema.Schema
}

func New(ctx context.Context, cfg *backend.Config, s *schema.Schema) (*Backend, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	if cfg.Engine != backend.Postgres {
		return nil, fmt.Errorf("%w %q", backend.ErrUnsupportedEngine, cfg.Engine)
	}

	pool, err := NewConnectionPool(ctx, cfg.ConnString)
	if err != nil {
		return nil, err
	}

	return &Backend{pool: pool, cfg: cfg, schema: s}, nil
}

// Setup creates the documents table and its indexes.
func (b *Backend) Setup(ctx context.Context) error {
	for _, stmt := range ddl {
		if _, err := b.pool.GetConn().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create documents table: %w", err)
		}
	}
	return nil
}

func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		Highlight:    true,
		TermFacets:   true,
		DateFacets:   true,
		Autocomplete: true,
	}
}

// Update upserts the prepared documents in a single batch.
func (b *Backend) Update(ctx context.Context, idx index.Index, objs []any) error {
	const upsert = `
		INSERT INTO ` + documentsTable + ` (id, model, pk, boost, fields, doc)
		VALUES ($1, $2, $3, $4, $5, to_tsvector('` + searchConfig + `', $6))
		ON CONFLICT (id) DO UPDATE
		SET model = EXCLUDED.model, pk = EXCLUDED.pk, boost = EXCLUDED.boost,
		    fields = EXCLUDED.fields, doc = EXCLUDED.doc`

	batch := &pgx.Batch{}
	for _, obj := range objs {
		doc, err := idx.Prepare(ctx, obj)
		if err != nil {
			if errors.Is(err, index.SkipDocument) {
				slog.Debug("document skipped during indexing", "model", idx.Model())
				continue
			}
			return fmt.Errorf("prepare document for %q: %w", idx.Model(), err)
		}

		fieldsJSON, err := json.Marshal(doc.Fields)
		if err != nil {
			return fmt.Errorf("marshal document %q: %w", doc.ID, err)
		}
		docText := stringValue(doc.Fields[b.schema.DocumentField()])

		batch.Queue(upsert, doc.ID, doc.Model, doc.PK, doc.Boost, fieldsJSON, docText)
	}

	if batch.Len() == 0 {
		return nil
	}

	br := b.pool.GetConn().SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert documents: %w", err)
		}
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, id string) error {
	_, err := b.pool.GetConn().Exec(ctx, `DELETE FROM `+documentsTable+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove document %q: %w", id, err)
	}
	return nil
}

func (b *Backend) Clear(ctx context.Context, models []string) error {
	if len(models) == 0 {
		if _, err := b.pool.GetConn().Exec(ctx, `TRUNCATE `+documentsTable); err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
		return nil
	}

	_, err := b.pool.GetConn().Exec(ctx,
		`DELETE FROM `+documentsTable+` WHERE model = ANY($1)`, models)
	if err != nil {
		return fmt.Errorf("clear documents for models: %w", err)
	}
	return nil
}

func (b *Backend) DeleteIndex(ctx context.Context) error {
	if _, err := b.pool.GetConn().Exec(ctx, `DROP TABLE IF EXISTS `+documentsTable); err != nil {
		return fmt.Errorf("drop documents table: %w", err)
	}
	return nil
}

func (b *Backend) DocCount(ctx context.Context) (uint64, error) {
	var count uint64
	err := b.pool.GetConn().QueryRow(ctx, `SELECT COUNT(*) FROM `+documentsTable).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func (b *Backend) Search(ctx context.Context, sq *query.SQ, opts *query.Options) (*backend.Result, error) {
	if opts == nil {
		opts = query.DefaultOptions()
	}
	if len(opts.QueryFacets) > 0 {
		return nil, &backend.UnsupportedError{Engine: backend.Postgres, Feature: "query facets"}
	}
	if opts.IncludeSpelling {
		return nil, &backend.UnsupportedError{Engine: backend.Postgres, Feature: "spelling suggestions"}
	}

	out := &backend.Result{}

	// Total hits, as a separate count over the same restriction.
	{
		builder, where, err := b.whereFor(sq, opts)
		if err != nil {
			return nil, err
		}
		err = b.pool.GetConn().QueryRow(ctx,
			`SELECT COUNT(*) FROM `+documentsTable+` WHERE `+where, builder.args...).Scan(&out.Hits)
		if err != nil {
			return nil, fmt.Errorf("count matches: %w", err)
		}
	}

	builder, where, err := b.whereFor(sq, opts)
	if err != nil {
		return nil, err
	}
	words := backend.QueryWords(b.schema, sq)

	columns := []string{"id", "model", "pk", "fields", builder.rankExpr(words) + " AS rank"}
	if opts.Highlight {
		columns = append(columns, builder.headlineExpr(words)+" AS headline")
	}

	orderBy, err := builder.orderBy(opts.SortBy)
	if err != nil {
		return nil, err
	}

	stmt := `SELECT ` + strings.Join(columns, ", ") +
		` FROM ` + documentsTable +
		` WHERE ` + where + ` ` + orderBy +
		` LIMIT ` + builder.arg(opts.Window(pagination.PageMaxSize)) +
		` OFFSET ` + builder.arg(opts.StartOffset)

	rows, err := b.pool.GetConn().Query(ctx, stmt, builder.args...)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := b.scanRecord(rows, opts.Highlight)
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read search results: %w", err)
	}

	if len(opts.Facets) > 0 || len(opts.DateFacets) > 0 {
		facets, err := b.facets(ctx, sq, opts)
		if err != nil {
			return nil, err
		}
		out.Facets = facets
	}
	return out, nil
}

// MoreLikeThis is not available on this engine.
func (b *Backend) MoreLikeThis(ctx context.Context, id string, extra *query.SQ, opts *query.Options) (*backend.Result, error) {
	return nil, &backend.UnsupportedError{Engine: backend.Postgres, Feature: "more like this"}
}

func (b *Backend) scanRecord(rows pgx.Rows, highlighted bool) (*backend.Record, error) {
	rec := &backend.Record{}
	var fieldsJSON []byte
	var headline string

	dest := []any{&rec.ID, &rec.Model, &rec.PK, &fieldsJSON, &rec.Score}
	if highlighted {
		dest = append(dest, &headline)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan search result: %w", err)
	}

	if err := json.Unmarshal(fieldsJSON, &rec.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal document %q: %w", rec.ID, err)
	}
	if highlighted && headline != "" {
		rec.Highlighted = map[string][]string{
			b.schema.DocumentField(): {headline},
		}
	}
	return rec, nil
}

// whereFor builds a fresh WHERE clause for one statement: the filter tree
// plus model and narrow restrictions.
func (b *Backend) whereFor(sq *query.SQ, opts *query.Options) (*sqlBuilder, string, error) {
	builder := newSQLBuilder(b.schema)
	where, err := builder.where(sq)
	if err != nil {
		return nil, "", err
	}

	conds := []string{where}
	if len(opts.Models) > 0 {
		conds = append(conds, "model = ANY("+builder.arg(opts.Models)+")")
	}
	for _, narrow := range opts.Narrow {
		field, value, ok := strings.Cut(narrow, ":")
		if !ok {
			continue
		}
		column, err := builder.column(field)
		if err != nil {
			return nil, "", err
		}
		conds = append(conds, column+" = "+builder.arg(value))
	}

	if len(conds) == 1 {
		return builder, conds[0], nil
	}
	return builder, "(" + strings.Join(conds, " AND ") + ")", nil
}

func (b *Backend) facets(ctx context.Context, sq *query.SQ, opts *query.Options) (*backend.FacetCounts, error) {
	fc := &backend.FacetCounts{
		Fields:  make(map[string][]backend.FacetCount),
		Dates:   make(map[string][]backend.FacetCount),
		Queries: make(map[string]int64),
	}

	for _, field := range opts.Facets {
		builder, where, err := b.whereFor(sq, opts)
		if err != nil {
			return nil, err
		}
		stmt := `SELECT ` + jsonText(field) + ` AS value, COUNT(*)` +
			` FROM ` + documentsTable +
			` WHERE ` + where + ` AND ` + jsonText(field) + ` IS NOT NULL` +
			` GROUP BY 1 ORDER BY 2 DESC, 1 ASC LIMIT ` + builder.arg(termFacetSize)

		rows, err := b.pool.GetConn().Query(ctx, stmt, builder.args...)
		if err != nil {
			return nil, fmt.Errorf("facet on %q: %w", field, err)
		}

		counts := make([]backend.FacetCount, 0, termFacetSize)
		for rows.Next() {
			var fcnt backend.FacetCount
			if err := rows.Scan(&fcnt.Value, &fcnt.Count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan facet on %q: %w", field, err)
			}
			counts = append(counts, fcnt)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("read facet on %q: %w", field, err)
		}
		fc.Fields[field] = counts
	}

	for field, df := range opts.DateFacets {
		column := "(" + jsonText(field) + ")::timestamptz"

		var counts []backend.FacetCount
		for start := df.Start; start.Before(df.End); {
			end, err := df.Next(start)
			if err != nil {
				return nil, fmt.Errorf("date facet on %q: %w", field, err)
			}
			if end.After(df.End) {
				end = df.End
			}

			builder, where, err := b.whereFor(sq, opts)
			if err != nil {
				return nil, err
			}
			stmt := `SELECT COUNT(*) FROM ` + documentsTable +
				` WHERE ` + where +
				` AND ` + column + ` >= ` + builder.arg(start.UTC()) +
				` AND ` + column + ` < ` + builder.arg(end.UTC())

			var count int64
			if err := b.pool.GetConn().QueryRow(ctx, stmt, builder.args...).Scan(&count); err != nil {
				return nil, fmt.Errorf("date facet on %q: %w", field, err)
			}
			counts = append(counts, backend.FacetCount{
				Value: start.UTC().Format("2006-01-02T15:04:05Z07:00"),
				Count: count,
			})
			start = end
		}
		fc.Dates[field] = counts
	}

	return fc, nil
}
