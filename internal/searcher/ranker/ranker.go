// Package ranker scores documents against a tokenized query and selects the
// top results. Scores are additive term frequencies, optionally weighted per
// field; ties are broken by document insertion order.
package ranker

import (
	"container/heap"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

// ScoredDoc is a matched document and its relevance score.
type ScoredDoc struct {
	Doc   int     `json:"-"`
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Weights maps a text field to its score multiplier. Fields without an
// entry weigh 1.0.
type Weights map[string]float64

// For returns the weight of field.
func (w Weights) For(field string) float64 {
	if v, ok := w[field]; ok {
		return v
	}
	return 1.0
}

// Scorer computes relevance scores over a Ready index.
type Scorer struct {
	idx     *index.Index
	weights Weights
}

func NewScorer(idx *index.Index, weights Weights) *Scorer {
	return &Scorer{idx: idx, weights: weights}
}

// Score returns the relevance of the document at position doc for the
// given distinct query terms.
func (s *Scorer) Score(terms []string, doc int) float64 {
	var score float64
	for _, field := range s.idx.Config().TextFields {
		w := s.weights.For(field)
		if w == 0 {
			continue
		}
		for _, term := range terms {
			postings := s.idx.Postings(term, field)
			i := sort.Search(len(postings), func(i int) bool { return postings[i].Doc >= doc })
			if i < len(postings) && postings[i].Doc == doc {
				score += float64(postings[i].Frequency) * w
			}
		}
	}
	return score
}

// ScoreAll accumulates scores for every document reachable from the query
// terms' postings. When allowed is non-nil, documents it rejects are
// skipped. Documents with a zero score are not returned.
func (s *Scorer) ScoreAll(terms []string, allowed func(doc int) bool) map[int]float64 {
	scores := make(map[int]float64)
	for _, field := range s.idx.Config().TextFields {
		w := s.weights.For(field)
		if w == 0 {
			continue
		}
		for _, term := range terms {
			for _, p := range s.idx.Postings(term, field) {
				if allowed != nil && !allowed(p.Doc) {
					continue
				}
				scores[p.Doc] += float64(p.Frequency) * w
			}
		}
	}
	for doc, score := range scores {
		if score <= 0 {
			delete(scores, doc)
		}
	}
	return scores
}

// Rank orders scores by descending score then ascending document position
// and returns at most limit entries. A non-positive limit returns all.
func Rank(idx *index.Index, scores map[int]float64, limit int) []ScoredDoc {
	if limit <= 0 || limit > len(scores) {
		limit = len(scores)
	}
	h := make(scoredDocHeap, 0, limit+1)
	for doc, score := range scores {
		heap.Push(&h, ScoredDoc{Doc: doc, Score: score})
		if h.Len() > limit {
			heap.Pop(&h)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		sd := heap.Pop(&h).(ScoredDoc)
		sd.DocID = idx.DocID(sd.Doc)
		result[i] = sd
	}
	return result
}

// Less reports whether a ranks ahead of b.
func Less(a, b ScoredDoc) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Doc < b.Doc
}

// scoredDocHeap is a min-heap on rank: the root is the worst-ranked entry,
// so popping it keeps the best limit entries.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return Less(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x any) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
