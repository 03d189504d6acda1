// Package parser turns a raw query string into the distinct terms the
// ranker scores against.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

type QueryPlan struct {
	RawQuery string
	Terms    []string
}

// Parse tokenizes query with the indexing tokenizer and keeps the first
// occurrence of each term. A blank query is rejected; a query made only of
// punctuation parses to a plan with no terms.
func Parse(query string) (*QueryPlan, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.E("search", apperrors.ErrInvalidArgument, "query must not be empty")
	}
	plan := &QueryPlan{
		RawQuery: query,
		Terms:    make([]string, 0),
	}
	seen := make(map[string]struct{})
	for term := range tokenizer.Terms(query) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		plan.Terms = append(plan.Terms, term)
	}
	return plan, nil
}

// Normalized is a canonical form of the plan's terms, suitable for cache
// keys: queries differing only in case, punctuation, or repetition share it.
func (p *QueryPlan) Normalized() string {
	return strings.Join(p.Terms, " ")
}
