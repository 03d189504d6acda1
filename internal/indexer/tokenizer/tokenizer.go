// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input and splits on non-alphanumeric boundaries. Terms are
// literal: there is no stemming and no stop-word removal.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Terms returns a lazy sequence of normalised terms in text. The sequence
// holds no state between iterations, so ranging over it again restarts it.
func Terms(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := -1
		for i, r := range text {
			if isTermRune(r) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if !yield(strings.ToLower(text[start:i])) {
					return
				}
				start = -1
			}
		}
		if start >= 0 {
			yield(strings.ToLower(text[start:]))
		}
	}
}

// Tokenize materialises Terms into a slice of positioned Tokens.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, utf8.RuneCountInString(text)/6)
	pos := 0
	for term := range Terms(text) {
		tokens = append(tokens, Token{Term: term, Position: pos})
		pos++
	}
	return tokens
}

// Counts returns the term frequencies of text.
func Counts(text string) map[string]int {
	counts := make(map[string]int)
	for term := range Terms(text) {
		counts[term]++
	}
	return counts
}

func isTermRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
