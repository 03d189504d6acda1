// Package indexer owns the index lifecycle: it loads the corpus, builds a new
// index off to the side and publishes it to the query executor.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// DocumentSource supplies the corpus in insertion order.
type DocumentSource func(ctx context.Context) ([]index.Document, error)

// DocumentSink receives the corpus after a successful build.
type DocumentSink func(ctx context.Context, docs []index.Document) error

type Engine struct {
	cfg      index.Config
	source   DocumentSource
	sink     DocumentSink
	executor *executor.Executor
	metrics  *metrics.Metrics
	tracker  analytics.Tracker
	logger   *slog.Logger

	// rebuildMu serialises rebuilds; searches never take it.
	rebuildMu sync.Mutex
}

type Option func(*Engine)

// WithSink saves every successfully indexed corpus.
func WithSink(sink DocumentSink) Option {
	return func(e *Engine) { e.sink = sink }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithTracker(t analytics.Tracker) Option {
	return func(e *Engine) { e.tracker = t }
}

func NewEngine(cfg index.Config, source DocumentSource, exec *executor.Executor, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		source:   source,
		executor: exec,
		tracker:  analytics.Nop{},
		logger:   slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rebuild loads the corpus, indexes it and publishes the result. On failure
// the previously published index keeps serving.
func (e *Engine) Rebuild(ctx context.Context) (*index.Index, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	start := time.Now()
	ctx, span := tracing.Start(ctx, "index.rebuild")
	idx, err := e.rebuild(ctx)
	span.End(err)
	span.Log(e.logger)
	if err != nil {
		e.observe("error", nil)
		e.logger.Error("index rebuild failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	e.observe("ok", idx)

	latency := time.Since(start)
	e.tracker.Track(analytics.NewIndexEvent(analytics.IndexEvent{
		Documents:  idx.Len(),
		Generation: idx.Fingerprint(),
		LatencyMs:  latency.Milliseconds(),
	}))
	e.logger.Info("index rebuilt",
		"docs", idx.Len(),
		"generation", idx.Fingerprint(),
		"duration", latency,
	)
	return idx, nil
}

// rebuild runs each phase under its own span. A failed sink is logged and
// does not fail the rebuild.
func (e *Engine) rebuild(ctx context.Context) (*index.Index, error) {
	_, load := tracing.Start(ctx, "corpus.load")
	docs, err := e.source(ctx)
	load.SetAttr("documents", len(docs))
	load.End(err)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}

	_, build := tracing.Start(ctx, "index.build")
	idx, err := e.build(ctx, docs)
	build.End(err)
	if err != nil {
		return nil, err
	}

	_, publish := tracing.Start(ctx, "index.publish")
	err = e.executor.Publish(idx)
	publish.End(err)
	if err != nil {
		return nil, err
	}

	if e.sink != nil {
		_, save := tracing.Start(ctx, "corpus.save")
		err := e.sink(ctx, docs)
		save.End(err)
		if err != nil {
			e.logger.Warn("saving corpus failed", "error", err)
		}
	}
	return idx, nil
}

func (e *Engine) build(ctx context.Context, docs []index.Document) (*index.Index, error) {
	b, err := index.NewBuilder(e.cfg)
	if err != nil {
		return nil, err
	}
	for i, doc := range docs {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("indexing interrupted: %w", err)
			}
		}
		if err := b.Add(doc); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

func (e *Engine) observe(status string, idx *index.Index) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	if idx != nil {
		e.metrics.DocsIndexedTotal.Add(float64(idx.Len()))
		e.metrics.IndexDocuments.Set(float64(idx.Len()))
	}
}

// StartReloadLoop rebuilds every interval until ctx is cancelled.
func (e *Engine) StartReloadLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("reload loop stopping")
				return
			case <-ticker.C:
				if _, err := e.Rebuild(ctx); err != nil && ctx.Err() == nil {
					e.logger.Error("periodic reload failed", "error", err)
				}
			}
		}
	}()
	e.logger.Info("reload loop started", "interval", interval)
}
