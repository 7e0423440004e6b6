package bleve

import (
	"fmt"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/mow-search/mow/query"
	"github.com/mow-search/mow/schema"
)

// translator turns filter trees into bleve queries using the schema to pick
// the right query type per field kind.
type translator struct {
	schema *schema.Schema
}

func (t *translator) translate(sq *query.SQ) (bquery.Query, error) {
	if sq.IsMatchAll() {
		return bleve.NewMatchAllQuery(), nil
	}

	if sq.IsLeaf() {
		q, err := t.leaf(sq)
		if err != nil {
			return nil, err
		}
		return t.negate(q, sq.Negated), nil
	}

	children := make([]bquery.Query, 0, len(sq.Children))
	for _, child := range sq.Children {
		q, err := t.translate(child)
		if err != nil {
			return nil, err
		}
		children = append(children, q)
	}

	var q bquery.Query
	switch sq.Op {
	case query.OpOr:
		q = bleve.NewDisjunctionQuery(children...)
	default:
		q = bleve.NewConjunctionQuery(children...)
	}
	return t.negate(q, sq.Negated), nil
}

func (t *translator) negate(q bquery.Query, negated bool) bquery.Query {
	if !negated {
		return q
	}
	neg := bleve.NewBooleanQuery()
	neg.AddMust(bleve.NewMatchAllQuery())
	neg.AddMustNot(q)
	return neg
}

func (t *translator) leaf(sq *query.SQ) (bquery.Query, error) {
	field := sq.Field
	if field == query.ContentField {
		field = t.schema.DocumentField()
	}

	q, err := t.leafQuery(field, sq)
	if err != nil {
		return nil, err
	}
	return t.applyBoost(q, field), nil
}

// applyBoost carries the declared field weight onto the query so matches on
// boosted fields score higher.
func (t *translator) applyBoost(q bquery.Query, field string) bquery.Query {
	f, ok := t.schema.Field(field)
	if !ok || f.Boost == 0 || f.Boost == 1 {
		return q
	}
	if boosted, ok := q.(bquery.BoostableQuery); ok {
		boosted.SetBoost(f.Boost)
	}
	return q
}

func (t *translator) leafQuery(field string, sq *query.SQ) (bquery.Query, error) {
	if sq.Lookup == query.LookupAuto {
		return t.auto(field, sq)
	}

	if field == schema.IDField {
		return t.docIDs(sq)
	}

	switch sq.Lookup {
	case query.LookupContains, "":
		return t.contains(field, sq.Value)
	case query.LookupExact:
		return t.exact(field, sq.Value)
	case query.LookupLt:
		return t.rangeQuery(field, nil, sq.Value, false, false)
	case query.LookupLte:
		return t.rangeQuery(field, nil, sq.Value, false, true)
	case query.LookupGt:
		return t.rangeQuery(field, sq.Value, nil, false, false)
	case query.LookupGte:
		return t.rangeQuery(field, sq.Value, nil, true, false)
	case query.LookupIn:
		return t.in(field, sq.Value)
	case query.LookupRange:
		rv, ok := sq.Value.(query.RangeValue)
		if !ok {
			return nil, fmt.Errorf("field %q: range lookup needs a RangeValue, got %T", field, sq.Value)
		}
		return t.rangeQuery(field, rv.Lo, rv.Hi, true, true)
	case query.LookupStartsWith:
		return t.startsWith(field, sq.Value)
	case query.LookupFuzzy:
		q := bleve.NewFuzzyQuery(strings.ToLower(stringValue(sq.Value)))
		q.SetField(field)
		return q, nil
	default:
		return nil, fmt.Errorf("field %q: unsupported lookup %q", field, sq.Lookup)
	}
}

// auto translates a free-text query: plain words match analyzed, quoted
// phrases match as phrases, and excluded tokens become must-nots. A query
// with no positive tokens matches nothing.
func (t *translator) auto(field string, sq *query.SQ) (bquery.Query, error) {
	tokens, ok := sq.Value.([]query.AutoToken)
	if !ok {
		return nil, fmt.Errorf("field %q: auto lookup needs tokens, got %T", field, sq.Value)
	}

	bq := bleve.NewBooleanQuery()
	positives := 0
	for _, tok := range tokens {
		var q bquery.Query
		if tok.Phrase {
			q = t.phrase(field, tok.Text)
		} else {
			mq := bleve.NewMatchQuery(tok.Text)
			mq.SetField(field)
			q = mq
		}
		if tok.Exclude {
			bq.AddMustNot(q)
			continue
		}
		bq.AddMust(q)
		positives++
	}

	if positives == 0 {
		if len(tokens) == 0 {
			return bleve.NewMatchNoneQuery(), nil
		}
		bq.AddMust(bleve.NewMatchAllQuery())
	}
	return bq, nil
}

func (t *translator) docIDs(sq *query.SQ) (bquery.Query, error) {
	switch v := sq.Value.(type) {
	case []any:
		ids := make([]string, 0, len(v))
		for _, id := range v {
			ids = append(ids, stringValue(id))
		}
		if len(ids) == 0 {
			return bleve.NewMatchNoneQuery(), nil
		}
		return bleve.NewDocIDQuery(ids), nil
	default:
		return bleve.NewDocIDQuery([]string{stringValue(sq.Value)}), nil
	}
}

func (t *translator) contains(field string, value any) (bquery.Query, error) {
	f, declared := t.schema.Field(field)
	if declared {
		switch f.Kind {
		case schema.Integer, schema.Float:
			return t.numericEquals(field, value)
		case schema.Boolean:
			return t.boolEquals(field, value)
		case schema.Date, schema.DateTime:
			return t.dateEquals(field, value)
		case schema.Keyword, schema.MultiValue, schema.Decimal:
			return t.term(field, value), nil
		}
	}
	if field == schema.ModelField || field == schema.PKField {
		return t.term(field, value), nil
	}

	text := stringValue(value)
	if strings.TrimSpace(text) == "" {
		// A blank filter value cannot match any document.
		return bleve.NewMatchNoneQuery(), nil
	}
	q := bleve.NewMatchQuery(text)
	q.SetField(field)
	q.SetOperator(bquery.MatchQueryOperatorAnd)
	if declared && f.Kind == schema.EdgeNgram {
		// Query edge ngram fields with plain analysis so a search term does
		// not itself get exploded into prefixes.
		q.Analyzer = "standard"
	}
	return q, nil
}

func (t *translator) exact(field string, value any) (bquery.Query, error) {
	f, declared := t.schema.Field(field)
	if declared {
		switch f.Kind {
		case schema.Integer, schema.Float:
			return t.numericEquals(field, value)
		case schema.Boolean:
			return t.boolEquals(field, value)
		case schema.Date, schema.DateTime:
			return t.dateEquals(field, value)
		case schema.Text, schema.EdgeNgram:
			return t.phrase(field, stringValue(value)), nil
		}
	}
	return t.term(field, value), nil
}

func (t *translator) in(field string, value any) (bquery.Query, error) {
	values, ok := value.([]any)
	if !ok {
		return t.exact(field, value)
	}
	if len(values) == 0 {
		return bleve.NewMatchNoneQuery(), nil
	}
	parts := make([]bquery.Query, 0, len(values))
	for _, v := range values {
		q, err := t.exact(field, v)
		if err != nil {
			return nil, err
		}
		parts = append(parts, q)
	}
	return bleve.NewDisjunctionQuery(parts...), nil
}

func (t *translator) startsWith(field string, value any) (bquery.Query, error) {
	prefix := strings.ToLower(stringValue(value))
	if f, ok := t.schema.Field(field); ok && f.Kind == schema.EdgeNgram {
		// Edge ngram fields already index every prefix as a term.
		return t.term(field, prefix), nil
	}
	q := bleve.NewPrefixQuery(prefix)
	q.SetField(field)
	return q, nil
}

func (t *translator) rangeQuery(field string, lo, hi any, loInc, hiInc bool) (bquery.Query, error) {
	f, declared := t.schema.Field(field)
	if declared {
		switch f.Kind {
		case schema.Integer, schema.Float:
			var minPtr, maxPtr *float64
			if lo != nil {
				v, err := floatValue(lo)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", field, err)
				}
				minPtr = &v
			}
			if hi != nil {
				v, err := floatValue(hi)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", field, err)
				}
				maxPtr = &v
			}
			q := bleve.NewNumericRangeInclusiveQuery(minPtr, maxPtr, &loInc, &hiInc)
			q.SetField(field)
			return q, nil
		case schema.Date, schema.DateTime:
			var start, end time.Time
			if lo != nil {
				v, err := timeValue(lo)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", field, err)
				}
				start = v
			}
			if hi != nil {
				v, err := timeValue(hi)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", field, err)
				}
				end = v
			}
			q := bleve.NewDateRangeInclusiveQuery(start, end, &loInc, &hiInc)
			q.SetField(field)
			return q, nil
		}
	}

	var minTerm, maxTerm string
	if lo != nil {
		minTerm = stringValue(lo)
	}
	if hi != nil {
		maxTerm = stringValue(hi)
	}
	q := bleve.NewTermRangeInclusiveQuery(minTerm, maxTerm, &loInc, &hiInc)
	q.SetField(field)
	return q, nil
}

func (t *translator) numericEquals(field string, value any) (bquery.Query, error) {
	v, err := floatValue(value)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", field, err)
	}
	inclusive := true
	q := bleve.NewNumericRangeInclusiveQuery(&v, &v, &inclusive, &inclusive)
	q.SetField(field)
	return q, nil
}

func (t *translator) boolEquals(field string, value any) (bquery.Query, error) {
	b, ok := value.(bool)
	if !ok {
		b = stringValue(value) == "true"
	}
	q := bleve.NewBoolFieldQuery(b)
	q.SetField(field)
	return q, nil
}

func (t *translator) dateEquals(field string, value any) (bquery.Query, error) {
	v, err := timeValue(value)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", field, err)
	}
	inclusive := true
	q := bleve.NewDateRangeInclusiveQuery(v, v, &inclusive, &inclusive)
	q.SetField(field)
	return q, nil
}

func (t *translator) term(field string, value any) bquery.Query {
	q := bleve.NewTermQuery(stringValue(value))
	q.SetField(field)
	return q
}

func (t *translator) phrase(field, text string) bquery.Query {
	q := bleve.NewMatchPhraseQuery(text)
	q.SetField(field)
	return q
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

func floatValue(v any) (float64, error) {
	switch val := v.(type) {
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("expected a numeric value, got %T", v)
	}
}

func timeValue(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return time.Time{}, fmt.Errorf("expected an RFC3339 timestamp: %w", err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("expected a time value, got %T", v)
	}
}
