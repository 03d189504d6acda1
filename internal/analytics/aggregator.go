package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	FailedSearches    int64        `json:"failed_searches"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	ToolCalls         []QueryCount `json:"tool_calls"`
	ToolFailures      int64        `json:"tool_failures"`
	IndexBuilds       int64        `json:"index_builds"`
	IndexedDocuments  int          `json:"indexed_documents"`
	Generation        string       `json:"generation,omitempty"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running totals. It is a Tracker, so it can be
// fed directly, or it can consume the Kafka topic a Collector writes to.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     int64
	failedSearches    int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	latencies         []int64
	nextLatency       int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	toolCalls         map[string]int64
	toolFailures      int64
	indexBuilds       int64
	indexedDocs       int
	generation        string
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		toolCalls:         make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Consume runs consumer until ctx is cancelled. The consumer must have been
// built with HandleMessage.
func (a *Aggregator) Consume(ctx context.Context, consumer *kafka.Consumer) error {
	a.logger.Info("analytics aggregator consuming")
	return consumer.Start(ctx)
}

// HandleMessage decodes Kafka payloads produced by a Collector. Malformed
// messages are logged and skipped so they do not block the partition.
func (a *Aggregator) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[Event](value)
	if err != nil {
		a.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
		return nil
	}
	if err := a.record(event); err != nil {
		a.logger.Warn("skipping analytics event", "key", string(key), "error", err)
	}
	return nil
}

func (a *Aggregator) Track(event Event) {
	if err := a.record(event); err != nil {
		a.logger.Warn("skipping analytics event", "error", err)
	}
}

func (a *Aggregator) record(event Event) error {
	switch {
	case event.Type == EventSearch && event.Search != nil:
		a.recordSearch(*event.Search)
	case event.Type == EventTool && event.Tool != nil:
		a.recordTool(*event.Tool)
	case event.Type == EventIndex && event.Index != nil:
		a.recordIndex(*event.Index)
	default:
		return fmt.Errorf("event type %q without matching payload", event.Type)
	}
	return nil
}

func (a *Aggregator) recordSearch(e SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalSearches++
	if e.Failed {
		a.failedSearches++
		return
	}
	if e.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.observeLatency(e.LatencyMs)
	a.queryCounts[e.Query]++
	if e.TotalHits == 0 {
		a.zeroResults++
		a.zeroResultQueries[e.Query]++
	}
}

// observeLatency keeps at most maxLatencySamples, overwriting the oldest.
func (a *Aggregator) observeLatency(ms int64) {
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, ms)
		return
	}
	a.latencies[a.nextLatency] = ms
	a.nextLatency = (a.nextLatency + 1) % maxLatencySamples
}

func (a *Aggregator) recordTool(e ToolEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.toolCalls[e.Name]++
	if e.Failed {
		a.toolFailures++
	}
}

func (a *Aggregator) recordIndex(e IndexEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.indexBuilds++
	a.indexedDocs = e.Documents
	a.generation = e.Generation
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:    a.totalSearches,
		FailedSearches:   a.failedSearches,
		CacheHits:        a.cacheHits,
		CacheMisses:      a.cacheMisses,
		ZeroResultCount:  a.zeroResults,
		ToolFailures:     a.toolFailures,
		IndexBuilds:      a.indexBuilds,
		IndexedDocuments: a.indexedDocs,
		Generation:       a.generation,
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	stats.ToolCalls = topN(a.toolCalls, len(a.toolCalls))
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then key ascending.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
