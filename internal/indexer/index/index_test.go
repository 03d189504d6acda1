package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func sampleDocs() []Document {
	return []Document{
		{ID: "README.md", Fields: map[string]string{"filename": "README.md", "content": "FastMCP server demo. Server docs."}},
		{ID: "docs/servers/context.mdx", Fields: map[string]string{"filename": "docs/servers/context.mdx", "content": "Context for tools"}},
		{ID: "examples/testing_demo/README.md", Fields: map[string]string{"filename": "examples/testing_demo/README.md"}},
	}
}

func TestNew_RequiresTextFields(t *testing.T) {
	_, err := New(Config{KeywordFields: []string{"filename"}})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestFit_TransitionsToReady(t *testing.T) {
	idx, err := New(Config{TextFields: []string{"content", "filename"}, KeywordFields: []string{"filename"}})
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, idx.State())

	require.NoError(t, idx.Fit(sampleDocs()))
	assert.Equal(t, StateReady, idx.State())
	assert.Equal(t, 3, idx.Len())

	err = idx.Fit(sampleDocs())
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
}

func TestLookup(t *testing.T) {
	idx, err := Build(sampleDocs(), []string{"content", "filename"}, []string{"filename"})
	require.NoError(t, err)

	assert.Equal(t, PostingList{{Doc: 0, Frequency: 2}}, idx.Lookup("server", "content"))
	assert.Equal(t, PostingList{{Doc: 0, Frequency: 1}, {Doc: 2, Frequency: 1}}, idx.Lookup("readme", "filename"))
	assert.Empty(t, idx.Lookup("absent", "content"))
	assert.Empty(t, idx.Lookup("server", "no-such-field"))
}

func TestLookup_ReturnsCopy(t *testing.T) {
	idx, err := Build(sampleDocs(), []string{"content"}, nil)
	require.NoError(t, err)

	got := idx.Lookup("server", "content")
	got[0].Frequency = 99

	assert.Equal(t, 2, idx.Lookup("server", "content")[0].Frequency)
}

func TestMissingFieldIndexedAsEmpty(t *testing.T) {
	idx, err := Build(sampleDocs(), []string{"content", "title"}, []string{"filename"})
	require.NoError(t, err)

	assert.Equal(t, 0, idx.DocLength("content", 2))
	assert.Equal(t, 0, idx.DocLength("title", 0))
	v, ok := idx.KeywordValue("filename", 1)
	assert.True(t, ok)
	assert.Equal(t, "docs/servers/context.mdx", v)
}

func TestDocumentsAreCopiedOnAdd(t *testing.T) {
	docs := sampleDocs()
	idx, err := Build(docs, []string{"content"}, nil)
	require.NoError(t, err)

	docs[0].Fields["content"] = "mutated"
	assert.Equal(t, "FastMCP server demo. Server docs.", idx.Doc(0).Fields["content"])

	doc := idx.Doc(0)
	doc.Fields["content"] = "mutated again"
	assert.Equal(t, "FastMCP server demo. Server docs.", idx.Doc(0).Fields["content"])
}

func TestBuilder_RejectsBadIDs(t *testing.T) {
	b, err := NewBuilder(Config{TextFields: []string{"content"}})
	require.NoError(t, err)

	assert.ErrorIs(t, b.Add(Document{Fields: map[string]string{"content": "x"}}), apperrors.ErrInvalidArgument)
	require.NoError(t, b.Add(Document{ID: "a"}))
	assert.ErrorIs(t, b.Add(Document{ID: "a"}), apperrors.ErrInvalidArgument)
}

func TestBuilder_SingleUse(t *testing.T) {
	b, err := NewBuilder(Config{TextFields: []string{"content"}})
	require.NoError(t, err)
	require.NoError(t, b.Add(Document{ID: "a", Fields: map[string]string{"content": "alpha"}}))
	require.NoError(t, b.Add(Document{ID: "b", Fields: map[string]string{"content": "beta alpha"}}))
	assert.Equal(t, 2, b.Len())

	idx, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, PostingList{{Doc: 0, Frequency: 1}, {Doc: 1, Frequency: 1}}, idx.Lookup("alpha", "content"))

	_, err = b.Build()
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.ErrorIs(t, b.Add(Document{ID: "c"}), apperrors.ErrConfiguration)
}

func TestFingerprint_Idempotent(t *testing.T) {
	a, err := Build(sampleDocs(), []string{"content", "filename"}, []string{"filename"})
	require.NoError(t, err)
	b, err := Build(sampleDocs(), []string{"content", "filename"}, []string{"filename"})
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, a.Stats(), b.Stats())

	docs := sampleDocs()
	docs[1].Fields["content"] = "different"
	c, err := Build(docs, []string{"content", "filename"}, []string{"filename"})
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestStats(t *testing.T) {
	idx, err := Build(sampleDocs(), []string{"content"}, nil)
	require.NoError(t, err)

	stats := idx.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, "content", stats[0].Field)
	assert.Equal(t, 8, stats[0].TotalTokens)
	assert.InDelta(t, 8.0/3.0, stats[0].AvgDocLength, 1e-9)
}

func TestDuplicateFieldNamesCollapsed(t *testing.T) {
	idx, err := Build(sampleDocs(), []string{"content", "content"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"content"}, idx.Config().TextFields)
	assert.Equal(t, PostingList{{Doc: 0, Frequency: 2}}, idx.Lookup("server", "content"))
}
