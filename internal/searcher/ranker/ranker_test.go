package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
)

func buildIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.Build([]index.Document{
		{ID: "a", Fields: map[string]string{"content": "server server demo", "filename": "a.md"}},
		{ID: "b", Fields: map[string]string{"content": "server demo", "filename": "server.md"}},
		{ID: "c", Fields: map[string]string{"content": "unrelated", "filename": "c.md"}},
		{ID: "d", Fields: map[string]string{"content": "server server demo", "filename": "d.md"}},
	}, []string{"content", "filename"}, []string{"filename"})
	require.NoError(t, err)
	return idx
}

func TestScore_AdditiveAcrossFields(t *testing.T) {
	s := NewScorer(buildIndex(t), nil)

	assert.Equal(t, 2.0, s.Score([]string{"server"}, 0))
	assert.Equal(t, 2.0, s.Score([]string{"server"}, 1))
	assert.Equal(t, 3.0, s.Score([]string{"server", "demo"}, 0))
	assert.Equal(t, 0.0, s.Score([]string{"server"}, 2))
}

func TestScore_FieldWeights(t *testing.T) {
	s := NewScorer(buildIndex(t), Weights{"filename": 3})

	assert.Equal(t, 2.0, s.Score([]string{"server"}, 0))
	assert.Equal(t, 4.0, s.Score([]string{"server"}, 1))
}

func TestScoreAll_MatchesScore(t *testing.T) {
	idx := buildIndex(t)
	s := NewScorer(idx, Weights{"filename": 2})
	terms := []string{"server", "demo", "md"}

	all := s.ScoreAll(terms, nil)
	for doc := 0; doc < idx.Len(); doc++ {
		assert.Equal(t, s.Score(terms, doc), all[doc], "doc %d", doc)
	}
}

func TestScoreAll_ExcludesZeroAndDisallowed(t *testing.T) {
	s := NewScorer(buildIndex(t), Weights{"filename": 0})

	scores := s.ScoreAll([]string{"server"}, func(doc int) bool { return doc != 1 })

	assert.Equal(t, map[int]float64{0: 2, 3: 2}, scores)
	assert.Empty(t, s.ScoreAll([]string{"nomatch"}, nil))
}

func TestRank_TieBreakByInsertionOrder(t *testing.T) {
	idx := buildIndex(t)
	scores := map[int]float64{3: 2, 0: 2, 1: 5, 2: 1}

	ranked := Rank(idx, scores, 0)
	require.Len(t, ranked, 4)
	assert.Equal(t, []string{"b", "a", "d", "c"}, ids(ranked))

	top2 := Rank(idx, scores, 2)
	assert.Equal(t, []string{"b", "a"}, ids(top2))
	assert.Equal(t, 5.0, top2[0].Score)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(buildIndex(t), map[int]float64{}, 5))
}

func ids(docs []ScoredDoc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.DocID
	}
	return out
}
