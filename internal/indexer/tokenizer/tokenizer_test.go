package tokenizer

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerms(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace", " \t\n ", nil},
		{"punctuation only", "--- !!! ...", nil},
		{"lowercases", "FastMCP Server", []string{"fastmcp", "server"}},
		{"splits on punctuation", "docs/servers/context.mdx", []string{"docs", "servers", "context", "mdx"}},
		{"keeps digits and short words", "a b2 v1.0", []string{"a", "b2", "v1", "0"}},
		{"no stop words or stemming", "the testing of servers", []string{"the", "testing", "of", "servers"}},
		{"unicode letters", "Demostración Completa", []string{"demostración", "completa"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(Terms(tt.in))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerms_Restartable(t *testing.T) {
	seq := Terms("demo guide for testing")

	first := slices.Collect(seq)
	second := slices.Collect(seq)

	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

func TestTerms_EarlyStop(t *testing.T) {
	var got []string
	for term := range Terms("one two three four") {
		got = append(got, term)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestTokenize_Positions(t *testing.T) {
	tokens := Tokenize("Server, server; SERVER")

	assert.Equal(t, []Token{
		{Term: "server", Position: 0},
		{Term: "server", Position: 1},
		{Term: "server", Position: 2},
	}, tokens)
}

func TestCounts(t *testing.T) {
	assert.Equal(t, map[string]int{"demo": 2, "guide": 1}, Counts("Demo guide, demo."))
	assert.Empty(t, Counts("   "))
}
