package query

import (
	"strings"
	"unicode"
)

// AutoToken is one unit of parsed free-form query input.
type AutoToken struct {
	Text    string
	Phrase  bool
	Exclude bool
}

func (t AutoToken) render() string {
	text := t.Text
	if t.Phrase || needsQuoting(text) {
		text = "'" + text + "'"
	}
	if t.Exclude {
		return "-" + text
	}
	return text
}

// Auto parses user-typed query input into a filter on the document field:
// quoted runs become phrases, a leading "-" excludes a token, and tokens
// containing punctuation are kept intact rather than handed to the engine
// syntax as-is. Blank input matches everything.
func Auto(input string) *SQ {
	tokens := TokenizeAuto(input)
	if len(tokens) == 0 {
		return MatchAll()
	}
	return &SQ{Field: ContentField, Lookup: LookupAuto, Value: tokens}
}

// TokenizeAuto splits free-form input into AutoTokens. Both single and
// double quotes delimit phrases.
func TokenizeAuto(input string) []AutoToken {
	var tokens []AutoToken
	runes := []rune(strings.TrimSpace(input))

	for i := 0; i < len(runes); {
		switch {
		case unicode.IsSpace(runes[i]):
			i++
		case runes[i] == '\'' || runes[i] == '"':
			quote := runes[i]
			i++
			start := i
			for i < len(runes) && runes[i] != quote {
				i++
			}
			text := string(runes[start:i])
			if i < len(runes) {
				i++
			}
			if text != "" {
				tokens = append(tokens, AutoToken{Text: text, Phrase: true})
			}
		default:
			exclude := false
			if runes[i] == '-' && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
				// A bare leading dash is exclusion; a dash inside a word
				// ("daler-rowney") is not.
				exclude = true
				i++
			}
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) {
				i++
			}
			text := string(runes[start:i])
			if text != "" {
				tokens = append(tokens, AutoToken{Text: text, Exclude: exclude})
			}
		}
	}
	return tokens
}

func needsQuoting(text string) bool {
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
