package pg

import (
	"fmt"
	"strings"
	"time"

	"github.com/mow-search/mow/query"
	"github.com/mow-search/mow/schema"
)

// documentsTable holds every indexed document: typed system columns plus the
// prepared field values as jsonb and the document text as a tsvector.
const documentsTable = "mow_documents"

const searchConfig = "english"

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS ` + documentsTable + ` (
		id    text PRIMARY KEY,
		model text NOT NULL,
		pk    text NOT NULL,
		boost double precision NOT NULL DEFAULT 1.0,
		fields jsonb NOT NULL DEFAULT '{}'::jsonb,
		doc   tsvector
	)`,
	`CREATE INDEX IF NOT EXISTS ` + documentsTable + `_doc_idx ON ` + documentsTable + ` USING GIN (doc)`,
	`CREATE INDEX IF NOT EXISTS ` + documentsTable + `_model_idx ON ` + documentsTable + ` (model)`,
}

// sqlBuilder renders a filter tree into a WHERE clause with numbered
// placeholders, collecting the argument values as it goes.
type sqlBuilder struct {
	schema *schema.Schema
	args   []any
}

func newSQLBuilder(s *schema.Schema) *sqlBuilder {
	return &sqlBuilder{schema: s}
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) where(sq *query.SQ) (string, error) {
	if sq.IsMatchAll() {
		return "TRUE", nil
	}

	if sq.IsLeaf() {
		cond, err := b.leaf(sq)
		if err != nil {
			return "", err
		}
		if sq.Negated {
			return "NOT (" + cond + ")", nil
		}
		return cond, nil
	}

	parts := make([]string, 0, len(sq.Children))
	for _, child := range sq.Children {
		cond, err := b.where(child)
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}

	joiner := " AND "
	if sq.Op == query.OpOr {
		joiner = " OR "
	}
	cond := "(" + strings.Join(parts, joiner) + ")"
	if sq.Negated {
		cond = "NOT " + cond
	}
	return cond, nil
}

func (b *sqlBuilder) leaf(sq *query.SQ) (string, error) {
	field := sq.Field

	if field == query.ContentField || field == b.schema.DocumentField() {
		return b.textCondition(sq)
	}

	if field == schema.IDField {
		return b.idCondition(sq)
	}

	column, err := b.column(field)
	if err != nil {
		return "", err
	}

	switch sq.Lookup {
	case query.LookupContains, "", query.LookupExact:
		return column + " = " + b.arg(b.scalar(field, sq.Value)), nil
	case query.LookupLt:
		return column + " < " + b.arg(b.scalar(field, sq.Value)), nil
	case query.LookupLte:
		return column + " <= " + b.arg(b.scalar(field, sq.Value)), nil
	case query.LookupGt:
		return column + " > " + b.arg(b.scalar(field, sq.Value)), nil
	case query.LookupGte:
		return column + " >= " + b.arg(b.scalar(field, sq.Value)), nil
	case query.LookupIn:
		values, ok := sq.Value.([]any)
		if !ok {
			values = []any{sq.Value}
		}
		if len(values) == 0 {
			return "FALSE", nil
		}
		placeholders := make([]string, 0, len(values))
		for _, v := range values {
			placeholders = append(placeholders, b.arg(b.scalar(field, v)))
		}
		return column + " IN (" + strings.Join(placeholders, ", ") + ")", nil
	case query.LookupRange:
		rv, ok := sq.Value.(query.RangeValue)
		if !ok {
			return "", fmt.Errorf("field %q: range lookup needs a RangeValue, got %T", field, sq.Value)
		}
		// Nil bounds are open; BETWEEN over NULL matches nothing.
		switch {
		case rv.Lo == nil && rv.Hi == nil:
			return "TRUE", nil
		case rv.Lo == nil:
			return column + " <= " + b.arg(b.scalar(field, rv.Hi)), nil
		case rv.Hi == nil:
			return column + " >= " + b.arg(b.scalar(field, rv.Lo)), nil
		}
		lo := b.arg(b.scalar(field, rv.Lo))
		hi := b.arg(b.scalar(field, rv.Hi))
		return column + " BETWEEN " + lo + " AND " + hi, nil
	case query.LookupStartsWith:
		// \m anchors at a word start, so prefixes match inside multi-word
		// values too.
		return jsonText(field) + " ~* ('\\m' || " + b.arg(strings.ToLower(stringValue(sq.Value))) + ")", nil
	default:
		return "", fmt.Errorf("field %q: unsupported lookup %q", field, sq.Lookup)
	}
}

func (b *sqlBuilder) textCondition(sq *query.SQ) (string, error) {
	switch sq.Lookup {
	case query.LookupAuto:
		tokens, ok := sq.Value.([]query.AutoToken)
		if !ok {
			return "", fmt.Errorf("auto lookup needs tokens, got %T", sq.Value)
		}
		parts := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			var cond string
			if tok.Phrase {
				cond = "doc @@ phraseto_tsquery('" + searchConfig + "', " + b.arg(tok.Text) + ")"
			} else {
				cond = "doc @@ plainto_tsquery('" + searchConfig + "', " + b.arg(tok.Text) + ")"
			}
			if tok.Exclude {
				cond = "NOT " + cond
			}
			parts = append(parts, cond)
		}
		if len(parts) == 0 {
			return "FALSE", nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case query.LookupExact:
		return "doc @@ phraseto_tsquery('" + searchConfig + "', " + b.arg(stringValue(sq.Value)) + ")", nil
	case query.LookupStartsWith:
		return jsonText(b.schema.DocumentField()) + " ~* ('\\m' || " + b.arg(strings.ToLower(stringValue(sq.Value))) + ")", nil
	default:
		text := stringValue(sq.Value)
		if strings.TrimSpace(text) == "" {
			return "FALSE", nil
		}
		return "doc @@ plainto_tsquery('" + searchConfig + "', " + b.arg(text) + ")", nil
	}
}

func (b *sqlBuilder) idCondition(sq *query.SQ) (string, error) {
	switch v := sq.Value.(type) {
	case []any:
		if len(v) == 0 {
			return "FALSE", nil
		}
		placeholders := make([]string, 0, len(v))
		for _, id := range v {
			placeholders = append(placeholders, b.arg(stringValue(id)))
		}
		return "id IN (" + strings.Join(placeholders, ", ") + ")", nil
	default:
		return "id = " + b.arg(stringValue(sq.Value)), nil
	}
}

// column renders the typed expression for a field: system fields are real
// columns, everything else is a cast over the jsonb value.
func (b *sqlBuilder) column(field string) (string, error) {
	switch field {
	case schema.ModelField:
		return "model", nil
	case schema.PKField:
		return "pk", nil
	}

	f, ok := b.schema.Field(field)
	if !ok {
		return jsonText(field), nil
	}

	switch f.Kind {
	case schema.Integer, schema.Float:
		return "(" + jsonText(field) + ")::numeric", nil
	case schema.Boolean:
		return "(" + jsonText(field) + ")::boolean", nil
	case schema.Date, schema.DateTime:
		return "(" + jsonText(field) + ")::timestamptz", nil
	default:
		return jsonText(field), nil
	}
}

// scalar converts a filter value into its SQL argument form.
func (b *sqlBuilder) scalar(field string, v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC()
	}
	return v
}

// rankExpr ranks by full-text relevance of the collected query words scaled
// by the per-document boost, or a constant when the query has none.
func (b *sqlBuilder) rankExpr(words []string) string {
	if len(words) == 0 {
		return "0.0"
	}
	return "(ts_rank(doc, plainto_tsquery('" + searchConfig + "', " + b.arg(strings.Join(words, " ")) + ")) * boost)"
}

// headlineExpr renders the highlighted document text for the same words.
func (b *sqlBuilder) headlineExpr(words []string) string {
	if len(words) == 0 {
		return "''"
	}
	return "ts_headline('" + searchConfig + "', " + jsonText(b.schema.DocumentField()) +
		", plainto_tsquery('" + searchConfig + "', " + b.arg(strings.Join(words, " ")) + ")" +
		", 'StartSel=<em>, StopSel=</em>')"
}

func (b *sqlBuilder) orderBy(sortBy []string) (string, error) {
	if len(sortBy) == 0 {
		return "ORDER BY rank DESC, id ASC", nil
	}

	parts := make([]string, 0, len(sortBy))
	for _, key := range sortBy {
		field, descending := query.SortKey(key)

		var expr string
		if field == schema.IDField {
			expr = "id"
		} else {
			var err error
			expr, err = b.column(field)
			if err != nil {
				return "", err
			}
		}
		if descending {
			expr += " DESC"
		} else {
			expr += " ASC"
		}
		parts = append(parts, expr)
	}
	return "ORDER BY " + strings.Join(parts, ", "), nil
}

func jsonText(field string) string {
	return "fields->>'" + strings.ReplaceAll(field, "'", "''") + "'"
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
