// Package service is the single entry point for searches coming from HTTP,
// tools and the CLI. It layers the optional result cache, metrics and
// analytics over the query executor.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Request is one search. Limit is passed through to the executor, so zero
// or negative values are rejected there; values above the configured
// maximum are clamped.
type Request struct {
	Query   string
	Limit   int
	Filters map[string]string
	// Source labels the caller in analytics, e.g. "http" or "mcp".
	Source string
}

type Result struct {
	*executor.SearchResult
	CacheHit  bool  `json:"cache_hit"`
	LatencyMs int64 `json:"latency_ms"`
}

type Service struct {
	exec         *executor.Executor
	cache        *cache.QueryCache
	metrics      *metrics.Metrics
	tracker      analytics.Tracker
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

type Option func(*Service)

func WithCache(c *cache.QueryCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracker(t analytics.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithLimits sets the default and maximum result counts.
func WithLimits(defaultLimit, maxResults int) Option {
	return func(s *Service) {
		s.defaultLimit = defaultLimit
		s.maxResults = maxResults
	}
}

func New(exec *executor.Executor, opts ...Option) *Service {
	s := &Service{
		exec:         exec,
		tracker:      analytics.Nop{},
		defaultLimit: executor.DefaultTopK,
		logger:       slog.Default().With("component", "search-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) DefaultLimit() int { return s.defaultLimit }

func (s *Service) Ready() bool { return s.exec.Ready() }

func (s *Service) Generation() string { return s.exec.Generation() }

func (s *Service) Cache() *cache.QueryCache { return s.cache }

// Documents returns the size of the published index, or 0 before the first
// publish.
func (s *Service) Documents() int {
	if idx := s.exec.Index(); idx != nil {
		return idx.Len()
	}
	return 0
}

func (s *Service) Search(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	limit := req.Limit
	if s.maxResults > 0 && limit > s.maxResults {
		limit = s.maxResults
	}

	res, hit, err := s.execute(ctx, req.Query, limit, req.Filters)
	latency := time.Since(start)
	s.record(ctx, req, res, hit, latency, err)
	if err != nil {
		return nil, err
	}
	return &Result{SearchResult: res, CacheHit: hit, LatencyMs: latency.Milliseconds()}, nil
}

// Explain reports how the document docID scores against query. It bypasses
// the cache.
func (s *Service) Explain(ctx context.Context, query, docID string) (*executor.Explanation, error) {
	return s.exec.Explain(ctx, query, docID)
}

func (s *Service) execute(ctx context.Context, query string, limit int, filters map[string]string) (*executor.SearchResult, bool, error) {
	run := func() (*executor.SearchResult, error) {
		return s.exec.Execute(ctx, query, limit, executor.WithFilters(filters))
	}
	if s.cache == nil {
		res, err := run()
		return res, false, err
	}
	gen := s.exec.Generation()
	plan, err := parser.Parse(query)
	if gen == "" || err != nil || limit <= 0 {
		res, err := run()
		return res, false, err
	}

	key := cache.Key{Generation: gen, Terms: plan.Terms, Limit: limit, Filters: filters}
	res, hit, err := s.cache.GetOrCompute(ctx, key, run)
	if err != nil {
		return nil, false, err
	}
	// Cached and shared results may come from a differently spelled query
	// with the same terms.
	res.Query = query
	res.Terms = plan.Terms
	return res, hit, nil
}

func (s *Service) record(ctx context.Context, req Request, res *executor.SearchResult, hit bool, latency time.Duration, err error) {
	log := logger.FromContext(ctx)
	event := analytics.SearchEvent{
		Query:     req.Query,
		Filters:   req.Filters,
		LatencyMs: latency.Milliseconds(),
		CacheHit:  hit,
		Source:    req.Source,
		Failed:    err != nil,
	}
	if err != nil {
		log.Warn("search failed", "query", req.Query, "source", req.Source, "error", err)
	} else {
		event.Terms = res.Terms
		event.TotalHits = res.TotalHits
		event.Returned = len(res.Results)
		event.Generation = res.Generation
		log.Info("search completed",
			"query", req.Query,
			"source", req.Source,
			"total_hits", res.TotalHits,
			"returned", len(res.Results),
			"cache_hit", hit,
			"latency", latency,
		)
	}
	s.tracker.Track(analytics.NewSearchEvent(logger.RequestID(ctx), event))

	if s.metrics == nil {
		return
	}
	cacheStatus := "disabled"
	if s.cache != nil {
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
	}
	switch {
	case err != nil:
		s.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		return
	case res.TotalHits == 0:
		s.metrics.SearchQueriesTotal.WithLabelValues("zero_result").Inc()
	default:
		s.metrics.SearchQueriesTotal.WithLabelValues("hit").Inc()
	}
	if s.cache != nil {
		if hit {
			s.metrics.CacheHitsTotal.Inc()
		} else {
			s.metrics.CacheMissesTotal.Inc()
		}
	}
	s.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
	s.metrics.SearchResultsCount.Observe(float64(len(res.Results)))
}
