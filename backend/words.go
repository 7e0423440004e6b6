package backend

import (
	"strings"
	"unicode"

	"github.com/mow-search/mow/query"
	"github.com/mow-search/mow/schema"
)

// QueryWords collects the free-text words of a filter tree: content and
// full-text leaves, including the positive tokens of parsed user queries.
// Engines feed the same words to their rankers, highlighters and spelling
// suggesters so all of them tokenize alike.
func QueryWords(s *schema.Schema, sq *query.SQ) []string {
	var words []string
	collectWords(s, sq, &words)
	return words
}

func collectWords(s *schema.Schema, sq *query.SQ, words *[]string) {
	if sq == nil || sq.Negated {
		return
	}

	if !sq.IsLeaf() {
		for _, child := range sq.Children {
			collectWords(s, child, words)
		}
		return
	}

	textual := sq.Field == query.ContentField
	if f, ok := s.Field(sq.Field); ok && f.Kind == schema.Text {
		textual = true
	}
	if !textual {
		return
	}

	switch sq.Lookup {
	case query.LookupAuto:
		tokens, ok := sq.Value.([]query.AutoToken)
		if !ok {
			return
		}
		for _, tok := range tokens {
			if tok.Exclude {
				continue
			}
			*words = append(*words, SplitWords(tok.Text)...)
		}
	case query.LookupContains, "", query.LookupExact:
		if text, ok := sq.Value.(string); ok {
			*words = append(*words, SplitWords(text)...)
		}
	}
}

// SplitWords breaks text into words on anything that is not a letter or a
// digit.
func SplitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
