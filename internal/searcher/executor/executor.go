package executor

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// DefaultTopK is the result count used when a caller does not choose one.
const DefaultTopK = 5

// Hit is one ranked document. Fields is a copy owned by the caller.
type Hit struct {
	ID     string            `json:"id"`
	Score  float64           `json:"score"`
	Fields map[string]string `json:"fields"`
}

type SearchResult struct {
	Query      string            `json:"query"`
	Terms      []string          `json:"terms"`
	Filters    map[string]string `json:"filters,omitempty"`
	TotalHits  int               `json:"total_hits"`
	Results    []Hit             `json:"results"`
	Generation string            `json:"generation"`
}

// Documents returns the field maps of the hits in rank order.
func (r *SearchResult) Documents() []map[string]string {
	docs := make([]map[string]string, len(r.Results))
	for i, h := range r.Results {
		docs[i] = h.Fields
	}
	return docs
}

// Clone returns a deep copy, including every hit's field map.
func (r *SearchResult) Clone() *SearchResult {
	out := *r
	out.Terms = slices.Clone(r.Terms)
	out.Filters = maps.Clone(r.Filters)
	out.Results = make([]Hit, len(r.Results))
	for i, h := range r.Results {
		h.Fields = maps.Clone(h.Fields)
		out.Results[i] = h
	}
	return &out
}

// IDs returns the document identifiers of the hits in rank order.
func (r *SearchResult) IDs() []string {
	ids := make([]string, len(r.Results))
	for i, h := range r.Results {
		ids[i] = h.ID
	}
	return ids
}

type options struct {
	filters map[string]string
	boosts  ranker.Weights
}

// Option adjusts a single search.
type Option func(*options)

// WithFilters restricts candidates to documents whose keyword fields equal
// every given value.
func WithFilters(filters map[string]string) Option {
	return func(o *options) {
		o.filters = filters
	}
}

// WithBoosts overrides field weights for a single search.
func WithBoosts(boosts ranker.Weights) Option {
	return func(o *options) {
		o.boosts = boosts
	}
}

// Search runs query against a Ready index and returns at most topK hits.
// It performs no I/O and touches no shared mutable state.
func Search(idx *index.Index, query string, topK int, opts ...Option) (*SearchResult, error) {
	if idx == nil || idx.State() != index.StateReady {
		return nil, apperrors.E("search", apperrors.ErrNotInitialized, "index has not been built")
	}
	if topK <= 0 {
		return nil, apperrors.E("search", apperrors.ErrInvalidArgument, "top_k must be positive, got %d", topK)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	plan, err := parser.Parse(query)
	if err != nil {
		return nil, err
	}
	allowed, err := filterFunc(idx, o.filters)
	if err != nil {
		return nil, err
	}

	scorer := ranker.NewScorer(idx, o.boosts)
	scores := scorer.ScoreAll(plan.Terms, allowed)
	ranked := ranker.Rank(idx, scores, topK)

	hits := make([]Hit, 0, len(ranked))
	for _, sd := range ranked {
		doc := idx.Doc(sd.Doc)
		hits = append(hits, Hit{ID: doc.ID, Score: sd.Score, Fields: doc.Fields})
	}
	return &SearchResult{
		Query:      query,
		Terms:      plan.Terms,
		Filters:    maps.Clone(o.filters),
		TotalHits:  len(scores),
		Results:    hits,
		Generation: idx.Fingerprint(),
	}, nil
}

func filterFunc(idx *index.Index, filters map[string]string) (func(int) bool, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	fields := slices.Sorted(maps.Keys(filters))
	for _, field := range fields {
		if !idx.IsKeywordField(field) {
			return nil, apperrors.E("search", apperrors.ErrInvalidArgument, "filter field %q is not a keyword field", field)
		}
	}
	return func(doc int) bool {
		for _, field := range fields {
			v, _ := idx.KeywordValue(field, doc)
			if v != filters[field] {
				return false
			}
		}
		return true
	}, nil
}

// Executor owns the published index that searches run against. Building
// happens off to the side; Publish swaps a Ready index in atomically, so
// searches never observe a partially built index.
type Executor struct {
	current atomic.Pointer[index.Index]
	boosts  ranker.Weights
	logger  *slog.Logger
}

// New creates an Executor with no published index. boosts are the default
// field weights applied when a search does not override them.
func New(boosts ranker.Weights) *Executor {
	return &Executor{
		boosts: maps.Clone(boosts),
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Publish makes idx the index served to subsequent searches.
func (e *Executor) Publish(idx *index.Index) error {
	if idx == nil || idx.State() != index.StateReady {
		return apperrors.E("publish", apperrors.ErrNotInitialized, "only a built index can be published")
	}
	prev := e.current.Swap(idx)
	attrs := []any{"docs", idx.Len(), "generation", idx.Fingerprint()}
	if prev != nil {
		attrs = append(attrs, "previous_generation", prev.Fingerprint())
	}
	e.logger.Info("index published", attrs...)
	return nil
}

// Index returns the currently published index, or nil.
func (e *Executor) Index() *index.Index {
	return e.current.Load()
}

// Ready reports whether an index has been published.
func (e *Executor) Ready() bool {
	return e.current.Load() != nil
}

// Generation returns the fingerprint of the published index, or "".
func (e *Executor) Generation() string {
	if idx := e.current.Load(); idx != nil {
		return idx.Fingerprint()
	}
	return ""
}

// Execute searches the published index.
func (e *Executor) Execute(ctx context.Context, query string, topK int, opts ...Option) (*SearchResult, error) {
	idx := e.current.Load()
	if idx == nil {
		return nil, apperrors.E("search", apperrors.ErrNotInitialized, "no index has been published")
	}
	all := make([]Option, 0, len(opts)+1)
	if len(e.boosts) > 0 {
		all = append(all, WithBoosts(e.boosts))
	}
	all = append(all, opts...)

	result, err := Search(idx, query, topK, all...)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("query executed",
		"component", "query-executor",
		"query", query,
		"terms", result.Terms,
		"candidates", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}
