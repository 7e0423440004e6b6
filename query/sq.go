// Package query holds the backend-agnostic filter algebra and search
// options. Engines translate SQ trees into their native queries; the
// canonical rendering produced by String is what connection query logs
// record.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Op combines child filters.
type Op string

const (
	OpAnd Op = "AND"
	OpOr  Op = "OR"
)

// Lookup selects how a leaf filter matches a field value.
type Lookup string

const (
	// LookupContains is the default analyzed full-text match.
	LookupContains   Lookup = "contains"
	LookupExact      Lookup = "exact"
	LookupLt         Lookup = "lt"
	LookupLte        Lookup = "lte"
	LookupGt         Lookup = "gt"
	LookupGte        Lookup = "gte"
	LookupIn         Lookup = "in"
	LookupRange      Lookup = "range"
	LookupStartsWith Lookup = "startswith"
	LookupFuzzy      Lookup = "fuzzy"
	// LookupAuto carries parsed free-form query input.
	LookupAuto Lookup = "auto"
)

// ContentField addresses the document field without naming it; leaves using
// it render without a field prefix.
const ContentField = "content"

// RangeValue is the value of a LookupRange leaf. Nil bounds are open.
type RangeValue struct {
	Lo any
	Hi any
}

// SQ is one node of a filter tree: either a leaf (Field, Lookup, Value) or a
// branch (Op, Children). Negated wraps the node in NOT. SQ values are
// treated as immutable; combinators build new nodes.
type SQ struct {
	Field   string
	Lookup  Lookup
	Value   any
	Op      Op
	Children []*SQ
	Negated bool
}

// MatchAll matches every document; it renders as "*".
func MatchAll() *SQ {
	return &SQ{Lookup: LookupContains, Field: "", Value: nil}
}

// Content matches the document field.
func Content(value any) *SQ {
	return &SQ{Field: ContentField, Lookup: LookupContains, Value: value}
}

// Term is an analyzed match on one field.
func Term(field string, value any) *SQ {
	return &SQ{Field: field, Lookup: LookupContains, Value: value}
}

// Exact matches the unanalyzed field value.
func Exact(field string, value any) *SQ {
	return &SQ{Field: field, Lookup: LookupExact, Value: value}
}

func Lt(field string, value any) *SQ  { return &SQ{Field: field, Lookup: LookupLt, Value: value} }
func Lte(field string, value any) *SQ { return &SQ{Field: field, Lookup: LookupLte, Value: value} }
func Gt(field string, value any) *SQ  { return &SQ{Field: field, Lookup: LookupGt, Value: value} }
func Gte(field string, value any) *SQ { return &SQ{Field: field, Lookup: LookupGte, Value: value} }

// In matches any of the given values.
func In(field string, values ...any) *SQ {
	return &SQ{Field: field, Lookup: LookupIn, Value: values}
}

// Range matches values between lo and hi inclusive. Nil bounds are open.
func Range(field string, lo, hi any) *SQ {
	return &SQ{Field: field, Lookup: LookupRange, Value: RangeValue{Lo: lo, Hi: hi}}
}

// StartsWith is a prefix match; on edge-ngram fields it drives autocomplete.
func StartsWith(field string, value string) *SQ {
	return &SQ{Field: field, Lookup: LookupStartsWith, Value: value}
}

// Fuzzy matches within a small edit distance.
func Fuzzy(field string, value string) *SQ {
	return &SQ{Field: field, Lookup: LookupFuzzy, Value: value}
}

// And combines filters so every one must match.
func And(parts ...*SQ) *SQ {
	return combine(OpAnd, parts)
}

// Or combines filters so at least one must match.
func Or(parts ...*SQ) *SQ {
	return combine(OpOr, parts)
}

// Not negates a filter.
func Not(part *SQ) *SQ {
	if part == nil {
		return nil
	}
	clone := *part
	clone.Negated = !part.Negated
	return &clone
}

func combine(op Op, parts []*SQ) *SQ {
	kept := make([]*SQ, 0, len(parts))
	for _, p := range parts {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &SQ{Op: op, Children: kept}
}

// And returns a new tree requiring both receiver and other.
func (sq *SQ) And(other *SQ) *SQ {
	if sq == nil {
		return other
	}
	if other == nil {
		return sq
	}
	// Flatten same-op, non-negated branches so chained filters render flat.
	if sq.Op == OpAnd && !sq.Negated {
		children := make([]*SQ, 0, len(sq.Children)+1)
		children = append(children, sq.Children...)
		children = append(children, other)
		return &SQ{Op: OpAnd, Children: children}
	}
	return &SQ{Op: OpAnd, Children: []*SQ{sq, other}}
}

// Or returns a new tree requiring either receiver or other.
func (sq *SQ) Or(other *SQ) *SQ {
	if sq == nil {
		return other
	}
	if other == nil {
		return sq
	}
	if sq.Op == OpOr && !sq.Negated {
		children := make([]*SQ, 0, len(sq.Children)+1)
		children = append(children, sq.Children...)
		children = append(children, other)
		return &SQ{Op: OpOr, Children: children}
	}
	return &SQ{Op: OpOr, Children: []*SQ{sq, other}}
}

// IsLeaf reports whether the node is a single field filter.
func (sq *SQ) IsLeaf() bool {
	return len(sq.Children) == 0
}

// IsMatchAll reports whether the node matches every document.
func (sq *SQ) IsMatchAll() bool {
	return sq == nil || (sq.IsLeaf() && sq.Field == "" && sq.Value == nil && !sq.Negated)
}

// String renders the canonical query string, e.g.
// "(('Indexed!') AND pub_date:([* TO 2009-08-31T00:00:00Z]) AND NOT (name:(daniel1)))".
func (sq *SQ) String() string {
	if sq.IsMatchAll() {
		return "*"
	}
	if sq.Negated {
		clone := *sq
		clone.Negated = false
		return "NOT (" + clone.String() + ")"
	}
	if sq.IsLeaf() {
		return sq.renderLeaf()
	}

	parts := make([]string, 0, len(sq.Children))
	for _, child := range sq.Children {
		parts = append(parts, child.String())
	}
	return "(" + strings.Join(parts, " "+string(sq.Op)+" ") + ")"
}

func (sq *SQ) renderLeaf() string {
	prefix := ""
	if sq.Field != "" && sq.Field != ContentField {
		prefix = sq.Field + ":"
	}

	switch sq.Lookup {
	case LookupAuto:
		tokens, _ := sq.Value.([]AutoToken)
		rendered := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			rendered = append(rendered, tok.render())
		}
		return prefix + "(" + strings.Join(rendered, " ") + ")"
	case LookupIn:
		values, _ := sq.Value.([]any)
		rendered := make([]string, 0, len(values))
		for _, v := range values {
			rendered = append(rendered, renderValue(v))
		}
		return prefix + "(" + strings.Join(rendered, " OR ") + ")"
	case LookupLt:
		return prefix + "({* TO " + renderValue(sq.Value) + "})"
	case LookupLte:
		return prefix + "([* TO " + renderValue(sq.Value) + "])"
	case LookupGt:
		return prefix + "({" + renderValue(sq.Value) + " TO *})"
	case LookupGte:
		return prefix + "([" + renderValue(sq.Value) + " TO *])"
	case LookupRange:
		rv, _ := sq.Value.(RangeValue)
		lo, hi := "*", "*"
		if rv.Lo != nil {
			lo = renderValue(rv.Lo)
		}
		if rv.Hi != nil {
			hi = renderValue(rv.Hi)
		}
		return prefix + "([" + lo + " TO " + hi + "])"
	case LookupStartsWith:
		return prefix + "(" + renderValue(sq.Value) + "*)"
	case LookupFuzzy:
		return prefix + "(" + renderValue(sq.Value) + "~)"
	case LookupExact:
		return prefix + `("` + renderValue(sq.Value) + `")`
	default:
		return prefix + "(" + renderValue(sq.Value) + ")"
	}
}

func renderValue(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// UsesLookup reports whether any leaf of the tree uses one of the given
// lookups.
func (sq *SQ) UsesLookup(lookups ...Lookup) bool {
	found := false
	sq.walk(func(leaf *SQ) {
		for _, l := range lookups {
			if leaf.Lookup == l {
				found = true
			}
		}
	})
	return found
}

// FieldNames returns the set of field names the tree touches, sorted.
func (sq *SQ) FieldNames() []string {
	seen := map[string]bool{}
	sq.walk(func(leaf *SQ) {
		if leaf.Field != "" {
			seen[leaf.Field] = true
		}
	})
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (sq *SQ) walk(fn func(leaf *SQ)) {
	if sq == nil {
		return
	}
	if sq.IsLeaf() {
		fn(sq)
		return
	}
	for _, child := range sq.Children {
		child.walk(fn)
	}
}
