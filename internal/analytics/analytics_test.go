package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
)

func TestAggregator_Track(t *testing.T) {
	agg := NewAggregator()

	agg.Track(NewSearchEvent("r1", SearchEvent{Query: "demo", TotalHits: 2, LatencyMs: 4}))
	agg.Track(NewSearchEvent("r2", SearchEvent{Query: "demo", TotalHits: 2, LatencyMs: 2, CacheHit: true}))
	agg.Track(NewSearchEvent("r3", SearchEvent{Query: "nomatch", LatencyMs: 1}))
	agg.Track(NewSearchEvent("r4", SearchEvent{Query: "", Failed: true}))
	agg.Track(NewToolEvent("r5", ToolEvent{Name: "search_docs"}))
	agg.Track(NewToolEvent("r6", ToolEvent{Name: "read_url", Failed: true}))
	agg.Track(NewIndexEvent(IndexEvent{Documents: 42, Generation: "abc"}))
	agg.Track(Event{Type: EventSearch})

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.FailedSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, []QueryCount{{"demo", 2}, {"nomatch", 1}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{"nomatch", 1}}, stats.ZeroResultQueries)
	assert.Equal(t, []QueryCount{{"read_url", 1}, {"search_docs", 1}}, stats.ToolCalls)
	assert.Equal(t, int64(1), stats.ToolFailures)
	assert.Equal(t, 42, stats.IndexedDocuments)
	assert.Equal(t, "abc", stats.Generation)
	assert.InDelta(t, 7.0/3.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(2), stats.P50LatencyMs)
}

func TestAggregator_HandleMessage(t *testing.T) {
	agg := NewAggregator()
	payload, err := json.Marshal(NewSearchEvent("r1", SearchEvent{Query: "demo", TotalHits: 1}))
	require.NoError(t, err)

	require.NoError(t, agg.HandleMessage(context.Background(), []byte("search"), payload))
	require.NoError(t, agg.HandleMessage(context.Background(), []byte("search"), []byte("not json")))

	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

func TestAggregator_LatencySamplesBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		agg.Track(NewSearchEvent("", SearchEvent{Query: "q", TotalHits: 1, LatencyMs: int64(i)}))
	}
	agg.mu.RLock()
	defer agg.mu.RUnlock()
	assert.Len(t, agg.latencies, maxLatencySamples)
}

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	fail    bool
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker down")
	}
	f.batches = append(f.batches, events)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestCollector_FlushesOnBatchSize(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 2, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(NewToolEvent("", ToolEvent{Name: "a"}))
	c.Track(NewToolEvent("", ToolEvent{Name: "b"}))

	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)
	pub.mu.Lock()
	assert.Equal(t, "tool", pub.batches[0][0].Key)
	pub.mu.Unlock()

	cancel()
	c.Close()
}

func TestCollector_FinalFlushOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(NewIndexEvent(IndexEvent{Documents: 1}))
	cancel()
	c.Close()

	assert.Equal(t, 1, pub.count())
	assert.Equal(t, 0, c.BufferLen())
}

func TestCollector_RequeuesOnFailure(t *testing.T) {
	pub := &fakePublisher{fail: true}
	c := NewCollector(pub, 10, time.Hour)

	c.Track(NewToolEvent("", ToolEvent{Name: "a"}))
	c.flush(context.Background())
	assert.Equal(t, 1, c.BufferLen())

	for i := 0; i < 40; i++ {
		c.Track(NewToolEvent("", ToolEvent{Name: "b"}))
	}
	assert.Equal(t, 30, c.BufferLen())
}

func TestHandler_Stats(t *testing.T) {
	agg := NewAggregator()
	agg.Track(NewSearchEvent("", SearchEvent{Query: "demo", TotalHits: 1}))

	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.TotalSearches)

	agg.Track(NewSearchEvent("", SearchEvent{Query: "server", TotalHits: 0}))
	rec = httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	stats = AggregatedStats{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.TotalSearches)
	assert.Len(t, stats.TopQueries, 1)

	rec = httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
