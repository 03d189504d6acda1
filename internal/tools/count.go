package tools

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// WordCount reports how often a word occurs in a page.
type WordCount struct {
	URL                 string `json:"url,omitempty"`
	Word                string `json:"word"`
	TotalCharacters     int    `json:"total_characters"`
	CountWordBoundaries int    `json:"count_word_boundaries"`
	CountSubstring      int    `json:"count_substring"`
	Recommendation      string `json:"recommendation"`
}

// CountWord counts word in content case-insensitively, once as a whole word
// and once as a plain substring. Word boundaries follow regexp \b, which only
// treats ASCII letters, digits and underscore as word characters.
func CountWord(content, word string) (WordCount, error) {
	if strings.TrimSpace(word) == "" {
		return WordCount{}, apperrors.E("tools.count", apperrors.ErrInvalidArgument, "word must not be empty")
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return WordCount{}, apperrors.E("tools.count", apperrors.ErrInvalidArgument, "invalid word %q: %v", word, err)
	}
	substring := strings.Count(strings.ToLower(content), strings.ToLower(word))
	return WordCount{
		Word:                word,
		TotalCharacters:     utf8.RuneCountInString(content),
		CountWordBoundaries: len(re.FindAllStringIndex(content, -1)),
		CountSubstring:      substring,
		Recommendation:      fmt.Sprintf("Use substring count (%d) for general searches", substring),
	}, nil
}
