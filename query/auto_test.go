package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mow-search/mow/query"
)

func TestAutoRendering(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Indexed!", "('Indexed!')"},
		{"re-inker", "('re-inker')"},
		{"0.7 wire", "('0.7' wire)"},
		{"daler-rowney pearlescent 'bell bronze'", "('daler-rowney' pearlescent 'bell bronze')"},
		{`hello "big world"`, "(hello 'big world')"},
		{"plain words only", "(plain words only)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, query.Auto(tt.input).String())
		})
	}
}

func TestAutoBlankMatchesAll(t *testing.T) {
	assert.Equal(t, "*", query.Auto("").String())
	assert.Equal(t, "*", query.Auto("   ").String())
	assert.True(t, query.Auto(" ").IsMatchAll())
}

func TestAutoTrailingWhitespace(t *testing.T) {
	tokens := query.TokenizeAuto("mod ")
	require.Len(t, tokens, 1)
	assert.Equal(t, "mod", tokens[0].Text)
}

func TestAutoExclusion(t *testing.T) {
	tokens := query.TokenizeAuto("climate -biden")
	require.Len(t, tokens, 2)
	assert.False(t, tokens[0].Exclude)
	assert.True(t, tokens[1].Exclude)
	assert.Equal(t, "biden", tokens[1].Text)

	assert.Equal(t, "(climate -biden)", query.Auto("climate -biden").String())
}

func TestAutoPhraseTokens(t *testing.T) {
	tokens := query.TokenizeAuto("'bell bronze' hammer")
	require.Len(t, tokens, 2)
	assert.True(t, tokens[0].Phrase)
	assert.Equal(t, "bell bronze", tokens[0].Text)
	assert.False(t, tokens[1].Phrase)
}
