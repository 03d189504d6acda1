package executor

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// FieldMatch lists where the query terms occur in one text field.
type FieldMatch struct {
	Field     string           `json:"field"`
	Weight    float64          `json:"weight"`
	Score     float64          `json:"score"`
	Positions map[string][]int `json:"positions"`
}

// Explanation breaks one document's score down by field and term.
type Explanation struct {
	Query      string       `json:"query"`
	Terms      []string     `json:"terms"`
	DocID      string       `json:"doc_id"`
	Score      float64      `json:"score"`
	Matched    bool         `json:"matched"`
	Fields     []FieldMatch `json:"fields"`
	Generation string       `json:"generation"`
}

// Explain scores the document with the given ID against query using the
// published index and default boosts. Term positions count tokens from
// the start of each field.
func (e *Executor) Explain(ctx context.Context, query, docID string) (*Explanation, error) {
	idx := e.current.Load()
	if idx == nil {
		return nil, apperrors.E("explain", apperrors.ErrNotInitialized, "no index has been published")
	}
	plan, err := parser.Parse(query)
	if err != nil {
		return nil, err
	}
	doc, ok := findDoc(idx, docID)
	if !ok {
		return nil, apperrors.E("explain", apperrors.ErrNotFound, "document %q is not indexed", docID)
	}

	wanted := make(map[string]bool, len(plan.Terms))
	for _, term := range plan.Terms {
		wanted[term] = true
	}
	out := &Explanation{
		Query:      query,
		Terms:      plan.Terms,
		DocID:      docID,
		Score:      ranker.NewScorer(idx, e.boosts).Score(plan.Terms, doc),
		Generation: idx.Fingerprint(),
	}
	fields := idx.Doc(doc).Fields
	for _, field := range idx.Config().TextFields {
		fm := FieldMatch{Field: field, Weight: e.boosts.For(field), Positions: map[string][]int{}}
		for _, tok := range tokenizer.Tokenize(fields[field]) {
			if wanted[tok.Term] {
				fm.Positions[tok.Term] = append(fm.Positions[tok.Term], tok.Position)
				fm.Score += fm.Weight
			}
		}
		out.Fields = append(out.Fields, fm)
	}
	out.Matched = out.Score > 0

	logger.FromContext(ctx).Debug("query explained",
		"component", "query-executor",
		"doc_id", docID,
		"score", out.Score,
	)
	return out, nil
}

func findDoc(idx *index.Index, id string) (int, bool) {
	for i := range idx.Len() {
		if idx.DocID(i) == id {
			return i, true
		}
	}
	return 0, false
}
