package corpus

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source/archive"
)

func TestFromFiles(t *testing.T) {
	docs := FromFiles([]archive.File{
		{Path: "README.md", Content: "hello"},
		{Path: "docs/a.mdx", Content: "world"},
	})
	require.Len(t, docs, 2)
	assert.Equal(t, "README.md", docs[0].ID)
	assert.Equal(t, "README.md", docs[0].Fields[FieldFilename])
	assert.Equal(t, "hello", docs[0].Fields[FieldContent])
	assert.Equal(t, "docs/a.mdx", docs[1].ID)
}

func TestLoad(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{"repo-main/README.md": "demo", "repo-main/main.go": "package main"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	docs, err := Load(context.Background(), Source{
		ArchiveURL:  srv.URL,
		ArchivePath: filepath.Join(t.TempDir(), "repo.zip"),
		Client:      srv.Client(),
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "README.md", docs[0].ID)
	assert.Equal(t, "demo", docs[0].Fields[FieldContent])
}
