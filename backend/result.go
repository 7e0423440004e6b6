package backend

import (
	"time"
)

// Record is one materialized search hit.
type Record struct {
	ID    string
	Model string
	PK    string
	Score float64

	// Fields holds the stored values parsed back to their declared types.
	Fields map[string]any

	// Highlighted maps field names to highlighted fragments.
	Highlighted map[string][]string
}

// String returns the field value as a string.
func (r *Record) String(name string) string {
	if v, ok := r.Fields[name].(string); ok {
		return v
	}
	return ""
}

// Int returns the field value as an int64.
func (r *Record) Int(name string) int64 {
	switch v := r.Fields[name].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// Float returns the field value as a float64.
func (r *Record) Float(name string) float64 {
	switch v := r.Fields[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

// Bool returns the field value as a bool.
func (r *Record) Bool(name string) bool {
	v, _ := r.Fields[name].(bool)
	return v
}

// Time returns the field value as a time.Time.
func (r *Record) Time(name string) time.Time {
	switch v := r.Fields[name].(type) {
	case time.Time:
		return v
	case string:
		// Engines store timestamps as RFC3339 strings.
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Strings returns the field value as a string slice.
func (r *Record) Strings(name string) []string {
	switch v := r.Fields[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

// FacetCount is one facet bucket.
type FacetCount struct {
	Value string
	Count int64
}

// FacetCounts groups facet buckets by facet family.
type FacetCounts struct {
	// Fields maps field name to term buckets, most frequent first.
	Fields map[string][]FacetCount
	// Dates maps field name to calendar buckets keyed by bucket start.
	Dates map[string][]FacetCount
	// Queries maps the raw query-facet expression to its hit count.
	Queries map[string]int64
}

// Merge folds other into the receiver.
func (fc *FacetCounts) Merge(other *FacetCounts) {
	if other == nil {
		return
	}
	for field, buckets := range other.Fields {
		if fc.Fields == nil {
			fc.Fields = map[string][]FacetCount{}
		}
		fc.Fields[field] = buckets
	}
	for field, buckets := range other.Dates {
		if fc.Dates == nil {
			fc.Dates = map[string][]FacetCount{}
		}
		fc.Dates[field] = buckets
	}
	for q, count := range other.Queries {
		if fc.Queries == nil {
			fc.Queries = map[string]int64{}
		}
		fc.Queries[q] = count
	}
}

// Result is one search response window.
type Result struct {
	// Hits is the total number of matches, independent of the window.
	Hits int64
	// Records is the requested window of hits.
	Records []*Record
	// Facets is set when facet specs were requested.
	Facets *FacetCounts
	// SpellingSuggestion is set when spelling was requested and the engine
	// found a better term.
	SpellingSuggestion string
}

// EmptyResult is the zero-hit response used for blank queries and
// silenced failures.
func EmptyResult() *Result {
	return &Result{Hits: 0, Records: []*Record{}}
}
