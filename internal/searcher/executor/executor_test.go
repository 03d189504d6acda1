package executor

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func scenarioDocs() []index.Document {
	return []index.Document{
		{ID: "a", Fields: map[string]string{"content": "demo guide for testing"}},
		{ID: "b", Fields: map[string]string{"content": "server configuration"}},
	}
}

func markdownDocs() []index.Document {
	files := []struct{ name, content string }{
		{"README.md", "FastMCP is the fast way to build a server. See the demo."},
		{"docs/servers/context.mdx", "The context object gives a server access to logging."},
		{"examples/testing_demo/README.md", "A testing demo: run the demo server and call the demo tool."},
		{"docs/python-sdk/fastmcp-settings.mdx", "Settings for python clients."},
	}
	docs := make([]index.Document, len(files))
	for i, f := range files {
		docs[i] = index.Document{ID: f.name, Fields: map[string]string{"filename": f.name, "content": f.content}}
	}
	return docs
}

func mustBuild(t *testing.T, docs []index.Document, text, keyword []string) *index.Index {
	t.Helper()
	idx, err := index.Build(docs, text, keyword)
	require.NoError(t, err)
	return idx
}

func TestSearch_Scenario(t *testing.T) {
	idx := mustBuild(t, scenarioDocs(), []string{"content"}, nil)

	res, err := Search(idx, "demo", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.IDs())

	res, err = Search(idx, "server", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.IDs())

	res, err = Search(idx, "nomatch", 5)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Equal(t, 0, res.TotalHits)
}

func TestSearch_VerbatimWordFromOneDocumentRanksFirst(t *testing.T) {
	docs := markdownDocs()
	idx := mustBuild(t, docs, []string{"content", "filename"}, []string{"filename"})

	for word, want := range map[string]string{
		"logging":  "docs/servers/context.mdx",
		"clients":  "docs/python-sdk/fastmcp-settings.mdx",
		"way":      "README.md",
		"tool":     "examples/testing_demo/README.md",
		"Settings": "docs/python-sdk/fastmcp-settings.mdx",
	} {
		res, err := Search(idx, word, DefaultTopK)
		require.NoError(t, err, word)
		require.NotEmpty(t, res.Results, word)
		assert.Equal(t, want, res.Results[0].ID, word)
	}
}

func TestSearch_DemoPrefersHighestFrequency(t *testing.T) {
	idx := mustBuild(t, markdownDocs(), []string{"content", "filename"}, []string{"filename"})

	res, err := Search(idx, "demo", 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"examples/testing_demo/README.md", "README.md"}, res.IDs())
	assert.Equal(t, 4.0, res.Results[0].Score)
	assert.Equal(t, "README.md", res.Results[1].Fields["filename"])
}

func TestSearch_InvalidArguments(t *testing.T) {
	idx := mustBuild(t, scenarioDocs(), []string{"content"}, nil)

	_, err := Search(idx, "", 5)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = Search(idx, "demo", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = Search(idx, "demo", -3)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)

	_, err = Search(idx, "demo", 5, WithFilters(map[string]string{"content": "x"}))
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestSearch_EmptyIndexNotInitialized(t *testing.T) {
	empty, err := index.New(index.Config{TextFields: []string{"content"}})
	require.NoError(t, err)

	_, err = Search(empty, "demo", 5)
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)

	_, err = Search(nil, "demo", 5)
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)
}

func TestSearch_Idempotent(t *testing.T) {
	a := mustBuild(t, markdownDocs(), []string{"content", "filename"}, []string{"filename"})
	b := mustBuild(t, markdownDocs(), []string{"content", "filename"}, []string{"filename"})

	for _, q := range []string{"demo", "server", "python", "testing", "readme md", "the"} {
		ra, err := Search(a, q, 10)
		require.NoError(t, err)
		rb, err := Search(b, q, 10)
		require.NoError(t, err)
		assert.Equal(t, ra, rb, q)
	}
}

func TestSearch_TieBreakStable(t *testing.T) {
	docs := make([]index.Document, 0, 20)
	for i := 0; i < 20; i++ {
		docs = append(docs, index.Document{
			ID:     fmt.Sprintf("doc-%02d", i),
			Fields: map[string]string{"content": "shared term"},
		})
	}
	want := []string{"doc-00", "doc-01", "doc-02", "doc-03", "doc-04"}
	for round := 0; round < 5; round++ {
		idx := mustBuild(t, docs, []string{"content"}, nil)
		res, err := Search(idx, "shared", 5)
		require.NoError(t, err)
		assert.Equal(t, want, res.IDs())
		assert.Equal(t, 20, res.TotalHits)
	}
}

func TestSearch_FilterCorrectness(t *testing.T) {
	idx := mustBuild(t, markdownDocs(), []string{"content", "filename"}, []string{"filename"})

	res, err := Search(idx, "demo", 5, WithFilters(map[string]string{"filename": "README.md"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md"}, res.IDs())

	res, err = Search(idx, "logging", 5, WithFilters(map[string]string{"filename": "README.md"}))
	require.NoError(t, err)
	assert.Empty(t, res.Results)

	res, err = Search(idx, "demo", 5, WithFilters(map[string]string{"filename": "missing.md"}))
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestSearch_ResultsAreDefensiveCopies(t *testing.T) {
	idx := mustBuild(t, scenarioDocs(), []string{"content"}, nil)

	res, err := Search(idx, "demo", 1)
	require.NoError(t, err)
	res.Results[0].Fields["content"] = "tampered"

	res, err = Search(idx, "demo", 1)
	require.NoError(t, err)
	assert.Equal(t, "demo guide for testing", res.Results[0].Fields["content"])
}

func TestSearch_Boosts(t *testing.T) {
	docs := []index.Document{
		{ID: "body", Fields: map[string]string{"content": "server server", "filename": "a.md"}},
		{ID: "name", Fields: map[string]string{"content": "none", "filename": "server.md"}},
	}
	idx := mustBuild(t, docs, []string{"content", "filename"}, nil)

	res, err := Search(idx, "server", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"body", "name"}, res.IDs())

	res, err = Search(idx, "server", 2, WithBoosts(ranker.Weights{"filename": 5}))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "body"}, res.IDs())
}

func TestExecutor_PublishAndExecute(t *testing.T) {
	ctx := context.Background()
	exec := New(nil)

	_, err := exec.Execute(ctx, "demo", 5)
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)
	assert.False(t, exec.Ready())

	empty, err := index.New(index.Config{TextFields: []string{"content"}})
	require.NoError(t, err)
	assert.ErrorIs(t, exec.Publish(empty), apperrors.ErrNotInitialized)

	first := mustBuild(t, scenarioDocs(), []string{"content"}, nil)
	require.NoError(t, exec.Publish(first))
	assert.Equal(t, first.Fingerprint(), exec.Generation())

	res, err := exec.Execute(ctx, "server", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.IDs())

	second := mustBuild(t, []index.Document{{ID: "c", Fields: map[string]string{"content": "server"}}}, []string{"content"}, nil)
	require.NoError(t, exec.Publish(second))

	res, err = exec.Execute(ctx, "server", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, res.IDs())
	assert.Equal(t, second.Fingerprint(), res.Generation)
}

func TestExecutor_DefaultBoosts(t *testing.T) {
	docs := []index.Document{
		{ID: "body", Fields: map[string]string{"content": "server server", "filename": "a.md"}},
		{ID: "name", Fields: map[string]string{"content": "none", "filename": "server.md"}},
	}
	exec := New(ranker.Weights{"filename": 5})
	require.NoError(t, exec.Publish(mustBuild(t, docs, []string{"content", "filename"}, nil)))

	res, err := exec.Execute(context.Background(), "server", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "body"}, res.IDs())

	res, err = exec.Execute(context.Background(), "server", 2, WithBoosts(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"body", "name"}, res.IDs())
}

func TestExecutor_ConcurrentSearches(t *testing.T) {
	exec := New(nil)
	require.NoError(t, exec.Publish(mustBuild(t, markdownDocs(), []string{"content", "filename"}, []string{"filename"})))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := exec.Execute(context.Background(), "demo server", 3)
			if err != nil {
				errs <- err
				return
			}
			if len(res.Results) == 0 || res.Results[0].ID != "examples/testing_demo/README.md" {
				errs <- fmt.Errorf("unexpected results %v", res.IDs())
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSearchResult_Clone(t *testing.T) {
	orig := &SearchResult{
		Query:   "demo",
		Terms:   []string{"demo"},
		Filters: map[string]string{"filename": "a.md"},
		Results: []Hit{{ID: "a", Score: 2, Fields: map[string]string{"content": "demo"}}},
	}
	cp := orig.Clone()
	cp.Results[0].Fields["content"] = "changed"
	cp.Terms[0] = "other"
	cp.Filters["filename"] = "b.md"

	assert.Equal(t, "demo", orig.Results[0].Fields["content"])
	assert.Equal(t, []string{"demo"}, orig.Terms)
	assert.Equal(t, "a.md", orig.Filters["filename"])
	assert.Equal(t, orig.IDs(), cp.IDs())
}
