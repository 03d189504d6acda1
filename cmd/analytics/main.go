// Command analytics runs the search analytics aggregator on its own.
//
// It consumes the events the search service publishes to Kafka, aggregates
// them in memory, snapshots them to PostgreSQL when enabled and serves
// GET /api/v1/analytics for dashboards.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.Kafka.Enabled {
		slog.Error("analytics service requires kafka.enabled")
		os.Exit(1)
	}
	slog.Info("starting analytics service", "port", cfg.Server.Port, "topic", cfg.Kafka.Topics.AnalyticsEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, aggregator.HandleMessage)
	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- aggregator.Consume(ctx, consumer)
	}()

	checker := health.NewChecker()
	checker.Register("kafka", func(context.Context) health.ComponentHealth {
		select {
		case err := <-consumerDone:
			consumerDone <- err
			msg := "consumer stopped"
			if err != nil {
				msg = err.Error()
			}
			return health.ComponentHealth{Status: health.StatusDown, Message: msg}
		default:
		}
		stats := consumer.Stats()
		msg := fmt.Sprintf("processed %d, skipped %d, lag %d", stats.Processed, stats.Skipped, stats.Lag)
		if stats.Skipped > 0 && stats.Skipped >= stats.Processed {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: msg}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: msg}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /api/v1/analytics/consumer", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(consumer.Stats())
	})

	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store := snapshot.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to apply snapshot schema", "error", err)
			os.Exit(1)
		}
		if prev, err := store.Latest(ctx); err != nil {
			slog.Warn("could not read previous snapshot", "error", err)
		} else if prev != nil {
			slog.Info("previous analytics snapshot",
				"total_searches", prev.TotalSearches,
				"generation", prev.Generation,
			)
		}
		store.StartPeriodicSave(ctx, aggregator, time.Minute)
		checker.Register("postgres", db.HealthCheck())
		mux.HandleFunc("GET /api/v1/analytics/history", store.HistoryHandler())
	}

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}
