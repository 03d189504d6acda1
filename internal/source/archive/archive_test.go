package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

func buildZip(t *testing.T, entries map[string]string, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		if content, ok := entries[name]; ok {
			_, err = w.Write([]byte(content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func sampleZip(t *testing.T) []byte {
	return buildZip(t, map[string]string{
		"fastmcp-main/README.md":                  "# FastMCP",
		"fastmcp-main/docs/servers/context.mdx":   "context docs",
		"fastmcp-main/src/server.py":              "print()",
		"fastmcp-main/examples/testing_demo/x.md": "demo",
	}, []string{
		"fastmcp-main/",
		"fastmcp-main/README.md",
		"fastmcp-main/docs/",
		"fastmcp-main/docs/servers/context.mdx",
		"fastmcp-main/src/server.py",
		"fastmcp-main/examples/testing_demo/x.md",
	})
}

func TestExtract(t *testing.T) {
	files, err := Extract(sampleZip(t), nil)
	require.NoError(t, err)

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	assert.Equal(t, []string{"README.md", "docs/servers/context.mdx", "examples/testing_demo/x.md"}, paths)
	assert.Equal(t, "# FastMCP", files[0].Content)
}

func TestExtract_CustomExtensions(t *testing.T) {
	files, err := Extract(sampleZip(t), []string{".py"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "src/server.py", files[0].Path)
}

func TestExtract_NoSharedBase(t *testing.T) {
	data := buildZip(t, map[string]string{"a.md": "a", "docs/b.md": "b"}, []string{"a.md", "docs/b.md"})
	files, err := Extract(data, nil)
	require.NoError(t, err)
	assert.Equal(t, "a.md", files[0].Path)
	assert.Equal(t, "docs/b.md", files[1].Path)
}

func TestExtract_NotAZip(t *testing.T) {
	_, err := Extract([]byte("definitely not a zip"), nil)
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
}

func TestDownload(t *testing.T) {
	payload := sampleZip(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "cache", "fastmcp-main.zip")
	got, err := Download(context.Background(), srv.Client(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, got)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	_, err = Download(context.Background(), srv.Client(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	files, err := ReadFile(dest, nil)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownload_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "missing.zip")
	_, err := Download(context.Background(), srv.Client(), srv.URL, dest)
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}
