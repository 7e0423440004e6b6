package bleve

import (
	"fmt"
	"strings"

	"github.com/mow-search/mow/backend"
	"github.com/mow-search/mow/internal/typoutil"
	"github.com/mow-search/mow/query"
)

const maxSuggestionDistance = 2

// suggest proposes a corrected spelling for the free-text words of the query
// by matching each word against the document field's term dictionary. Words
// already present in the dictionary are kept as-is. Returns an empty string
// when the query carries no free-text words.
func (b *Backend) suggest(sq *query.SQ) (string, error) {
	words := backend.QueryWords(b.schema, sq)
	if len(words) == 0 {
		return "", nil
	}

	terms, err := b.fieldTerms(b.schema.DocumentField())
	if err != nil {
		return "", err
	}

	corrected := make([]string, 0, len(words))
	for _, word := range words {
		corrected = append(corrected, suggestWord(word, terms))
	}
	return strings.Join(corrected, " "), nil
}

func suggestWord(word string, terms map[string]uint64) string {
	lower := strings.ToLower(word)
	if _, ok := terms[lower]; ok {
		return lower
	}

	best := ""
	bestDist := maxSuggestionDistance + 1
	var bestCount uint64
	for term, count := range terms {
		dist := typoutil.DistanceWithLimit(lower, term, maxSuggestionDistance)
		if dist > maxSuggestionDistance {
			continue
		}
		if dist < bestDist || (dist == bestDist && count > bestCount) {
			best = term
			bestDist = dist
			bestCount = count
		}
	}

	if best == "" {
		return lower
	}
	return best
}

// fieldTerms reads the full term dictionary for a field. Must be called with
// the index lock held.
func (b *Backend) fieldTerms(field string) (map[string]uint64, error) {
	dict, err := b.idx.FieldDict(field)
	if err != nil {
		return nil, fmt.Errorf("read term dictionary for %q: %w", field, err)
	}
	defer dict.Close()

	terms := make(map[string]uint64)
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("iterate term dictionary for %q: %w", field, err)
		}
		if entry == nil {
			return terms, nil
		}
		terms[entry.Term] = entry.Count
	}
}
