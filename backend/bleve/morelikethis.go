package bleve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/mow-search/mow/backend"
	"github.com/mow-search/mow/query"
)

const (
	mltMaxTerms   = 10
	mltMinWordLen = 3
)

// mltStopWords are too common to characterize a document.
var mltStopWords = map[string]struct{}{
	"and": {}, "are": {}, "but": {}, "for": {}, "its": {}, "not": {},
	"that": {}, "the": {}, "this": {}, "was": {}, "with": {}, "you": {},
}

// MoreLikeThis finds documents similar to the stored document with the given
// id by querying on its most frequent document-field terms. The source
// document itself is excluded from the results.
func (b *Backend) MoreLikeThis(ctx context.Context, id string, extra *query.SQ, opts *query.Options) (*backend.Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.idx == nil {
		return nil, fmt.Errorf("backend is not set up")
	}
	if opts == nil {
		opts = query.DefaultOptions()
	}

	text, err := b.storedDocumentText(ctx, id)
	if err != nil {
		return nil, err
	}
	terms := significantTerms(text)
	if len(terms) == 0 {
		return backend.EmptyResult(), nil
	}

	docField := b.schema.DocumentField()
	parts := make([]bquery.Query, 0, len(terms))
	for _, term := range terms {
		tq := bleve.NewTermQuery(term)
		tq.SetField(docField)
		parts = append(parts, tq)
	}

	bq := bleve.NewBooleanQuery()
	bq.AddShould(parts...)
	bq.AddMustNot(bleve.NewDocIDQuery([]string{id}))

	var q bquery.Query = bq
	if extra != nil && !extra.IsMatchAll() {
		eq, err := b.tr.translate(extra)
		if err != nil {
			return nil, err
		}
		q = bleve.NewConjunctionQuery(q, eq)
	}
	q = b.constrain(q, opts)

	req, err := b.buildRequest(q, opts)
	if err != nil {
		return nil, err
	}

	res, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute similarity search: %w", err)
	}
	return b.convert(res, opts), nil
}

func (b *Backend) storedDocumentText(ctx context.Context, id string) (string, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{id}), 1, 0, false)
	req.Fields = []string{b.schema.DocumentField()}

	res, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("load document %q: %w", id, err)
	}
	if len(res.Hits) == 0 {
		return "", fmt.Errorf("document %q is not indexed", id)
	}

	text, _ := res.Hits[0].Fields[b.schema.DocumentField()].(string)
	return text, nil
}

// significantTerms picks the most frequent meaningful words of a text,
// most frequent first, ties broken alphabetically.
func significantTerms(text string) []string {
	freq := make(map[string]int)
	for _, word := range backend.SplitWords(text) {
		word = strings.ToLower(word)
		if len([]rune(word)) < mltMinWordLen {
			continue
		}
		if _, stop := mltStopWords[word]; stop {
			continue
		}
		freq[word]++
	}

	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > mltMaxTerms {
		terms = terms[:mltMaxTerms]
	}
	return terms
}
