package query

import (
	"fmt"
	"strings"
	"time"
)

// Gap is the calendar step of a date facet.
type Gap string

const (
	GapHour  Gap = "hour"
	GapDay   Gap = "day"
	GapMonth Gap = "month"
	GapYear  Gap = "year"
)

// DateFacet buckets a date field between Start and End in Gap steps.
type DateFacet struct {
	Start time.Time
	End   time.Time
	Gap   Gap
}

// Next returns the bucket start following t.
func (df DateFacet) Next(t time.Time) (time.Time, error) {
	switch df.Gap {
	case GapHour:
		return t.Add(time.Hour), nil
	case GapDay:
		return t.AddDate(0, 0, 1), nil
	case GapMonth:
		return t.AddDate(0, 1, 0), nil
	case GapYear:
		return t.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported date facet gap %q", df.Gap)
	}
}

// Options carries everything about a search besides the filter tree.
// StartOffset/EndOffset select the half-open result window [start, end);
// EndOffset < 0 means unbounded.
type Options struct {
	SortBy      []string
	StartOffset int
	EndOffset   int

	Highlight bool

	Facets      []string
	DateFacets  map[string]DateFacet
	QueryFacets map[string]string

	// Narrow entries are "field:value" drill-down restrictions applied as
	// post-filters.
	Narrow []string

	// Models restricts results to the named model types; nil means all
	// registered models when LimitToRegistered is set.
	Models            []string
	LimitToRegistered bool

	IncludeSpelling bool
}

// DefaultOptions returns options selecting the unbounded window over all
// registered models.
func DefaultOptions() *Options {
	return &Options{
		EndOffset:         -1,
		LimitToRegistered: true,
	}
}

// Window reports the window size, or fallback when unbounded.
func (o *Options) Window(fallback int) int {
	if o.EndOffset < 0 {
		return fallback
	}
	size := o.EndOffset - o.StartOffset
	if size < 0 {
		return 0
	}
	if size == 0 {
		// A zero-width window still returns the row at StartOffset,
		// matching half-open slicing with equal bounds treated as [s, s+1).
		return 1
	}
	return size
}

// Validate checks offsets, sort keys and facet specs.
func (o *Options) Validate() error {
	if o.StartOffset < 0 {
		return fmt.Errorf("start offset must not be negative, got %d", o.StartOffset)
	}
	if o.EndOffset >= 0 && o.EndOffset < o.StartOffset {
		return fmt.Errorf("end offset %d precedes start offset %d", o.EndOffset, o.StartOffset)
	}
	for _, key := range o.SortBy {
		if strings.TrimPrefix(key, "-") == "" {
			return fmt.Errorf("empty sort key")
		}
	}
	for field, df := range o.DateFacets {
		if _, err := df.Next(df.Start); err != nil {
			return fmt.Errorf("date facet %q: %w", field, err)
		}
		if df.End.Before(df.Start) {
			return fmt.Errorf("date facet %q: end precedes start", field)
		}
	}
	for _, n := range o.Narrow {
		if !strings.Contains(n, ":") {
			return fmt.Errorf("narrow query %q is not of the form field:value", n)
		}
	}
	return nil
}

// SortKey splits a sort entry into field and direction.
func SortKey(key string) (field string, descending bool) {
	if strings.HasPrefix(key, "-") {
		return key[1:], true
	}
	return key, false
}
