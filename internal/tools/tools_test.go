package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source/fetcher"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

type stubFetcher map[string]string

func (s stubFetcher) Fetch(_ context.Context, rawURL string) (*fetcher.Page, error) {
	content, ok := s[rawURL]
	if !ok {
		return nil, apperrors.E("fetch", apperrors.ErrSourceUnavailable, "%s unreachable", rawURL)
	}
	return &fetcher.Page{URL: rawURL, Content: content}, nil
}

func newService(t *testing.T) *service.Service {
	t.Helper()
	idx, err := index.Build([]index.Document{
		{ID: "a.md", Fields: map[string]string{"filename": "a.md", "content": "demo server guide"}},
		{ID: "b.md", Fields: map[string]string{"filename": "b.md", "content": "client demo demo"}},
		{ID: "c.md", Fields: map[string]string{"filename": "c.md", "content": "unrelated text"}},
	}, []string{"content"}, []string{"filename"})
	require.NoError(t, err)
	exec := executor.New(nil)
	require.NoError(t, exec.Publish(idx))
	return service.New(exec, service.WithLimits(2, 10))
}

func TestCountWord(t *testing.T) {
	wc, err := CountWord("Data, data everywhere. Database and metadata!", "data")
	require.NoError(t, err)
	assert.Equal(t, 2, wc.CountWordBoundaries)
	assert.Equal(t, 4, wc.CountSubstring)
	assert.Equal(t, 45, wc.TotalCharacters)
	assert.Equal(t, "Use substring count (4) for general searches", wc.Recommendation)

	wc, err = CountWord("c++ and C++", "c++")
	require.NoError(t, err)
	assert.Equal(t, 2, wc.CountSubstring)

	_, err = CountWord("anything", " ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestRegister_Duplicate(t *testing.T) {
	r := NewRegistry()
	echo := func(_ context.Context, in ReadURLInput) (string, error) { return in.URL, nil }
	require.NoError(t, Register(r, Spec{Name: "echo"}, echo))
	assert.ErrorIs(t, Register(r, Spec{Name: "echo"}, echo), apperrors.ErrConfiguration)
	assert.ErrorIs(t, Register(r, Spec{Name: " "}, echo), apperrors.ErrConfiguration)
}

func TestDispatch(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	agg := analytics.NewAggregator()
	r := NewRegistry(WithMetrics(m), WithTracker(agg))
	require.NoError(t, RegisterBuiltins(r, stubFetcher{"https://example.com": "Data and data"}, nil))

	out, err := r.Dispatch(context.Background(), "count_word_in_url", json.RawMessage(`{"url":"https://example.com","word":"DATA"}`))
	require.NoError(t, err)
	wc := out.(WordCount)
	assert.Equal(t, "https://example.com", wc.URL)
	assert.Equal(t, 2, wc.CountWordBoundaries)

	out, err = r.Dispatch(context.Background(), "read_url", json.RawMessage(`{"url":"https://example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, "Data and data", out.(*fetcher.Page).Content)

	_, err = r.Dispatch(context.Background(), "read_url", json.RawMessage(`{"url":"https://offline.example"}`))
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)

	_, err = r.Dispatch(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	for _, args := range []string{``, `{"url":1}`, `{"word":"x"}`, `not json`} {
		_, err = r.Dispatch(context.Background(), "count_word_in_url", json.RawMessage(args))
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument, "args %q", args)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("count_word_in_url", "ok")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("count_word_in_url", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("read_url", "error")))
	assert.Equal(t, int64(5), agg.Stats().ToolFailures)
}

func TestSearchDocs(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r, nil, newService(t)))

	out, err := r.Dispatch(context.Background(), "search_docs", json.RawMessage(`{"query":"demo"}`))
	require.NoError(t, err)
	res := out.(*service.Result)
	assert.Equal(t, []string{"b.md", "a.md"}, res.IDs())

	out, err = r.Dispatch(context.Background(), "search_docs", json.RawMessage(`{"query":"demo","top_k":1,"filters":{"filename":"a.md"}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, out.(*service.Result).IDs())

	_, err = r.Dispatch(context.Background(), "search_docs", json.RawMessage(`{"query":"demo","top_k":0}`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r, stubFetcher{}, newService(t)))
	list := r.List()
	names := make([]string, len(list))
	for i, d := range list {
		names[i] = d.Name
		assert.NotEmpty(t, d.Description)
		require.NotNil(t, d.InputSchema)
	}
	assert.Equal(t, []string{"count_word_in_url", "read_url", "search_docs"}, names)
	assert.ElementsMatch(t, []string{"url", "word"}, list[0].InputSchema.Required)
}

func TestDispatch_Timeout(t *testing.T) {
	r := NewRegistry(WithTimeout(10 * time.Millisecond))
	type in struct{}
	require.NoError(t, Register(r, Spec{Name: "slow"}, func(ctx context.Context, _ in) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}))
	require.NoError(t, Register(r, Spec{Name: "fast"}, func(context.Context, in) (string, error) {
		return "done", nil
	}))

	_, err := r.Dispatch(context.Background(), "slow", nil)
	assert.ErrorIs(t, err, apperrors.ErrTimeout)

	out, err := r.Dispatch(context.Background(), "fast", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}
