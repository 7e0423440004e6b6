package es

import (
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/operator"

	"github.com/mow-search/mow/query"
	"github.com/mow-search/mow/schema"
)

// translator turns filter trees into native query DSL documents.
type translator struct {
	schema *schema.Schema
}

func (t *translator) translate(sq *query.SQ) (*types.Query, error) {
	if sq.IsMatchAll() {
		return &types.Query{MatchAll: &types.MatchAllQuery{}}, nil
	}

	if sq.IsLeaf() {
		q, err := t.leaf(sq)
		if err != nil {
			return nil, err
		}
		return t.negate(q, sq.Negated), nil
	}

	children := make([]types.Query, 0, len(sq.Children))
	for _, child := range sq.Children {
		q, err := t.translate(child)
		if err != nil {
			return nil, err
		}
		children = append(children, *q)
	}

	var q *types.Query
	if sq.Op == query.OpOr {
		minimum := 1
		q = &types.Query{Bool: &types.BoolQuery{
			Should:             children,
			MinimumShouldMatch: minimum,
		}}
	} else {
		q = &types.Query{Bool: &types.BoolQuery{Must: children}}
	}
	return t.negate(q, sq.Negated), nil
}

func (t *translator) negate(q *types.Query, negated bool) *types.Query {
	if !negated {
		return q
	}
	return &types.Query{Bool: &types.BoolQuery{MustNot: []types.Query{*q}}}
}

func (t *translator) leaf(sq *query.SQ) (*types.Query, error) {
	field := sq.Field
	if field == query.ContentField {
		field = t.schema.DocumentField()
	}

	if sq.Lookup == query.LookupAuto {
		return t.auto(field, sq)
	}

	if field == schema.IDField {
		return t.docIDs(sq), nil
	}

	switch sq.Lookup {
	case query.LookupContains, "":
		return t.contains(field, sq.Value), nil
	case query.LookupExact:
		return t.exact(field, sq.Value), nil
	case query.LookupLt:
		return t.rangeQuery(field, rangeBounds{lt: sq.Value})
	case query.LookupLte:
		return t.rangeQuery(field, rangeBounds{lte: sq.Value})
	case query.LookupGt:
		return t.rangeQuery(field, rangeBounds{gt: sq.Value})
	case query.LookupGte:
		return t.rangeQuery(field, rangeBounds{gte: sq.Value})
	case query.LookupIn:
		return t.in(field, sq.Value), nil
	case query.LookupRange:
		rv, ok := sq.Value.(query.RangeValue)
		if !ok {
			return nil, fmt.Errorf("field %q: range lookup needs a RangeValue, got %T", field, sq.Value)
		}
		return t.rangeQuery(field, rangeBounds{gte: rv.Lo, lte: rv.Hi})
	case query.LookupStartsWith:
		return t.startsWith(field, sq.Value), nil
	case query.LookupFuzzy:
		return &types.Query{Fuzzy: map[string]types.FuzzyQuery{
			field: {Value: strings.ToLower(stringValue(sq.Value)), Fuzziness: "AUTO"},
		}}, nil
	default:
		return nil, fmt.Errorf("field %q: unsupported lookup %q", field, sq.Lookup)
	}
}

func (t *translator) auto(field string, sq *query.SQ) (*types.Query, error) {
	tokens, ok := sq.Value.([]query.AutoToken)
	if !ok {
		return nil, fmt.Errorf("field %q: auto lookup needs tokens, got %T", field, sq.Value)
	}

	bq := &types.BoolQuery{}
	for _, tok := range tokens {
		var q types.Query
		if tok.Phrase {
			q = types.Query{MatchPhrase: map[string]types.MatchPhraseQuery{
				field: {Query: tok.Text},
			}}
		} else {
			q = types.Query{Match: map[string]types.MatchQuery{
				field: {Query: tok.Text},
			}}
		}
		if tok.Exclude {
			bq.MustNot = append(bq.MustNot, q)
		} else {
			bq.Must = append(bq.Must, q)
		}
	}

	if len(bq.Must) == 0 {
		if len(bq.MustNot) == 0 {
			return &types.Query{Bool: &types.BoolQuery{MustNot: []types.Query{{MatchAll: &types.MatchAllQuery{}}}}}, nil
		}
		bq.Must = append(bq.Must, types.Query{MatchAll: &types.MatchAllQuery{}})
	}
	return &types.Query{Bool: bq}, nil
}

func (t *translator) docIDs(sq *query.SQ) *types.Query {
	var ids []string
	switch v := sq.Value.(type) {
	case []any:
		for _, id := range v {
			ids = append(ids, stringValue(id))
		}
	default:
		ids = []string{stringValue(sq.Value)}
	}
	return &types.Query{Ids: &types.IdsQuery{Values: ids}}
}

func (t *translator) contains(field string, value any) *types.Query {
	f, declared := t.schema.Field(field)
	if declared {
		switch f.Kind {
		case schema.Text, schema.EdgeNgram:
			text := stringValue(value)
			if strings.TrimSpace(text) == "" {
				return matchNone()
			}
			and := operator.And
			return &types.Query{Match: map[string]types.MatchQuery{
				field: {Query: text, Operator: &and, Boost: t.fieldBoost(field)},
			}}
		}
	}
	return t.term(field, value)
}

func (t *translator) exact(field string, value any) *types.Query {
	if f, ok := t.schema.Field(field); ok {
		switch f.Kind {
		case schema.Text, schema.EdgeNgram:
			return &types.Query{MatchPhrase: map[string]types.MatchPhraseQuery{
				field: {Query: stringValue(value), Boost: t.fieldBoost(field)},
			}}
		}
	}
	return t.term(field, value)
}

// fieldBoost returns the declared field weight, or nil for the default.
func (t *translator) fieldBoost(field string) *float32 {
	f, ok := t.schema.Field(field)
	if !ok || f.Boost == 0 || f.Boost == 1 {
		return nil
	}
	boost := float32(f.Boost)
	return &boost
}

func (t *translator) in(field string, value any) *types.Query {
	values, ok := value.([]any)
	if !ok {
		return t.exact(field, value)
	}
	if len(values) == 0 {
		return matchNone()
	}
	fieldValues := make([]types.FieldValue, 0, len(values))
	for _, v := range values {
		fieldValues = append(fieldValues, fieldValue(v))
	}
	return &types.Query{Terms: &types.TermsQuery{
		TermsQuery: map[string]types.TermsQueryField{field: fieldValues},
	}}
}

func (t *translator) startsWith(field string, value any) *types.Query {
	prefix := strings.ToLower(stringValue(value))
	if f, ok := t.schema.Field(field); ok && f.Kind == schema.EdgeNgram {
		// The field's search analyzer is plain, so a match query against the
		// indexed prefix grams is the prefix lookup.
		return &types.Query{Match: map[string]types.MatchQuery{
			field: {Query: prefix},
		}}
	}
	return &types.Query{Prefix: map[string]types.PrefixQuery{
		field: {Value: prefix},
	}}
}

type rangeBounds struct {
	gt, gte, lt, lte any
}

func (t *translator) rangeQuery(field string, bounds rangeBounds) (*types.Query, error) {
	var rq types.RangeQuery

	if f, ok := t.schema.Field(field); ok && (f.Kind == schema.Integer || f.Kind == schema.Float) {
		nq := types.NumberRangeQuery{}
		var err error
		if nq.Gt, err = numberBound(bounds.gt); err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		if nq.Gte, err = numberBound(bounds.gte); err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		if nq.Lt, err = numberBound(bounds.lt); err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		if nq.Lte, err = numberBound(bounds.lte); err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		rq = nq
	} else {
		dq := types.DateRangeQuery{}
		dq.Gt = dateBound(bounds.gt)
		dq.Gte = dateBound(bounds.gte)
		dq.Lt = dateBound(bounds.lt)
		dq.Lte = dateBound(bounds.lte)
		rq = dq
	}

	return &types.Query{Range: map[string]types.RangeQuery{field: rq}}, nil
}

func (t *translator) term(field string, value any) *types.Query {
	return &types.Query{Term: map[string]types.TermQuery{
		field: {Value: fieldValue(value)},
	}}
}

func matchNone() *types.Query {
	return &types.Query{Bool: &types.BoolQuery{
		MustNot: []types.Query{{MatchAll: &types.MatchAllQuery{}}},
	}}
}

func numberBound(v any) (*types.Float64, error) {
	if v == nil {
		return nil, nil
	}
	var f float64
	switch val := v.(type) {
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case float64:
		f = val
	case float32:
		f = float64(val)
	default:
		return nil, fmt.Errorf("expected a numeric bound, got %T", v)
	}
	out := types.Float64(f)
	return &out, nil
}

func dateBound(v any) *string {
	if v == nil {
		return nil
	}
	s := stringValue(v)
	return &s
}

func fieldValue(v any) types.FieldValue {
	switch val := v.(type) {
	case string, bool, int, int64, float64:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
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
