// Package bootstrap assembles the search stack from configuration. The HTTP
// service and the CLI share it so both serve the same index, tools and
// analytics wiring.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source/corpus"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source/fetcher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/tools"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

const (
	analyticsBatchSize     = 200
	analyticsFlushInterval = 2 * time.Second
	snapshotInterval       = time.Minute
)

// Options selects which optional backends are connected.
type Options struct {
	// Metrics may be nil to disable instrumentation.
	Metrics *metrics.Metrics
	// Standalone skips Redis and Kafka. PostgreSQL is still used when
	// enabled, since it may hold the corpus.
	Standalone bool
}

// App holds the assembled components. Optional backends are nil when
// disabled or unreachable.
type App struct {
	Config     *config.Config
	Metrics    *metrics.Metrics
	Executor   *executor.Executor
	Engine     *indexer.Engine
	Search     *service.Service
	Tools      *tools.Registry
	Fetcher    *fetcher.HTTPFetcher
	Aggregator *analytics.Aggregator
	Health     *health.Checker

	Redis     *pkgredis.Client
	Postgres  *postgres.Client
	Snapshots *snapshot.Store

	collector *analytics.Collector
	producer  *kafka.Producer
	consumer  *kafka.Consumer
	started   bool
	logger    *slog.Logger
}

// New connects the configured backends and wires every component. It does
// not build the index; call Engine.Rebuild or Start.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{
		Config:     cfg,
		Metrics:    opts.Metrics,
		Aggregator: analytics.NewAggregator(),
		Health:     health.NewChecker(),
		logger:     slog.Default().With("component", "bootstrap"),
	}

	if err := a.connectPostgres(ctx); err != nil {
		return nil, err
	}
	if !opts.Standalone {
		a.connectRedis(ctx)
		a.connectKafka()
	}

	var tracker analytics.Tracker = a.Aggregator
	if a.collector != nil {
		tracker = a.collector
	}

	f, err := fetcher.New(fetcher.Config{
		Mode:         cfg.Source.FetchMode,
		ProxyBaseURL: cfg.Source.ProxyBaseURL,
		Timeout:      cfg.Source.FetchTimeout,
		MaxBodyBytes: cfg.Source.MaxBodyBytes,
		Retry: resilience.RetryConfig{
			MaxAttempts:  cfg.Source.Retry.MaxAttempts,
			InitialDelay: cfg.Source.Retry.InitialDelay,
			MaxDelay:     cfg.Source.Retry.MaxDelay,
		},
	}, a.Metrics)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Fetcher = f

	a.Executor = executor.New(cfg.Search.Boosts)
	a.Engine = indexer.NewEngine(
		index.Config{TextFields: cfg.Search.TextFields, KeywordFields: cfg.Search.KeywordFields},
		a.documentSource(),
		a.Executor,
		a.engineOptions(tracker)...,
	)

	svcOpts := []service.Option{
		service.WithMetrics(a.Metrics),
		service.WithTracker(tracker),
		service.WithLimits(cfg.Search.DefaultLimit, cfg.Search.MaxResults),
	}
	if a.Redis != nil {
		svcOpts = append(svcOpts, service.WithCache(cache.New(a.Redis, cfg.Redis.CacheTTL)))
	}
	a.Search = service.New(a.Executor, svcOpts...)

	a.Tools = tools.NewRegistry(
		tools.WithMetrics(a.Metrics),
		tools.WithTracker(tracker),
		tools.WithTimeout(cfg.MCP.ToolTimeout),
	)
	if err := tools.RegisterBuiltins(a.Tools, a.Fetcher, a.Search); err != nil {
		a.Close()
		return nil, err
	}

	a.registerHealthChecks()
	return a, nil
}

func (a *App) connectPostgres(ctx context.Context) error {
	cfg := a.Config
	if !cfg.Postgres.Enabled {
		return nil
	}
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	a.Postgres = db

	snapshots := snapshot.NewStore(db)
	store := corpus.NewStore(db)
	if err := errors.Join(snapshots.EnsureSchema(ctx), store.EnsureSchema(ctx)); err != nil {
		db.Close()
		a.Postgres = nil
		return err
	}
	a.Snapshots = snapshots
	a.logger.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	return nil
}

func (a *App) connectRedis(ctx context.Context) {
	cfg := a.Config.Redis
	if !cfg.Enabled {
		return
	}
	client, err := pkgredis.NewClient(ctx, cfg)
	if err != nil {
		a.logger.Warn("redis unavailable, search caching disabled", "error", err)
		return
	}
	a.Redis = client
	a.logger.Info("search cache enabled", "addr", cfg.Addr, "ttl", cfg.CacheTTL)
}

// connectKafka routes analytics through Kafka: searches are batched by the
// collector and the aggregator consumes them back from the topic.
func (a *App) connectKafka() {
	cfg := a.Config.Kafka
	if !cfg.Enabled {
		return
	}
	topic := cfg.Topics.AnalyticsEvents
	a.producer = kafka.NewProducer(cfg, topic)
	a.collector = analytics.NewCollector(a.producer, analyticsBatchSize, analyticsFlushInterval)
	a.consumer = kafka.NewConsumer(cfg, topic, a.Aggregator.HandleMessage)
	a.logger.Info("analytics routed through kafka", "topic", topic, "brokers", cfg.Brokers)
}

func (a *App) documentSource() indexer.DocumentSource {
	src := a.Config.Source
	if src.FromStore && a.Postgres != nil {
		store := corpus.NewStore(a.Postgres)
		return store.LoadAll
	}
	client := &http.Client{Timeout: 5 * time.Minute}
	return func(ctx context.Context) ([]index.Document, error) {
		return corpus.Load(ctx, corpus.Source{
			ArchiveURL:  src.ArchiveURL,
			ArchivePath: src.ArchivePath,
			Extensions:  src.Extensions,
			Client:      client,
		})
	}
}

func (a *App) engineOptions(tracker analytics.Tracker) []indexer.Option {
	opts := []indexer.Option{indexer.WithMetrics(a.Metrics), indexer.WithTracker(tracker)}
	if a.Config.Source.SaveToStore && !a.Config.Source.FromStore && a.Postgres != nil {
		opts = append(opts, indexer.WithSink(corpus.NewStore(a.Postgres).Save))
	}
	return opts
}

func (a *App) registerHealthChecks() {
	a.Health.Register("index", func(ctx context.Context) health.ComponentHealth {
		if !a.Search.Ready() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "no index published"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, generation %.12s", a.Search.Documents(), a.Search.Generation()),
		}
	})
	if a.Redis != nil {
		a.Health.Register("redis", a.Redis.HealthCheck())
	}
	if a.Postgres != nil {
		a.Health.Register("postgres", a.Postgres.HealthCheck())
	}
}

// Start launches the background loops: analytics batching and consumption,
// periodic snapshots and periodic index reloads. All stop with ctx.
func (a *App) Start(ctx context.Context) {
	a.started = true
	if a.collector != nil {
		a.collector.Start(ctx)
	}
	if a.consumer != nil {
		go func() {
			if err := a.Aggregator.Consume(ctx, a.consumer); err != nil {
				a.logger.Error("analytics consumer stopped", "error", err)
			}
		}()
	}
	if a.Snapshots != nil {
		a.Snapshots.StartPeriodicSave(ctx, a.Aggregator, snapshotInterval)
	}
	a.Engine.StartReloadLoop(ctx, a.Config.Search.ReloadInterval)
}

// Close flushes analytics and releases backend connections. When Start was
// called, its context must be cancelled first.
func (a *App) Close() {
	if a.collector != nil && a.started {
		a.collector.Close()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("closing kafka producer", "error", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("closing redis", "error", err)
		}
	}
	if a.Postgres != nil {
		if err := a.Postgres.Close(); err != nil {
			a.logger.Warn("closing postgres", "error", err)
		}
	}
}
