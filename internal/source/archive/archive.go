// Package archive downloads a repository zip archive once and extracts the
// documentation files inside it.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// DefaultExtensions selects markdown sources.
var DefaultExtensions = []string{".md", ".mdx"}

// File is one extracted archive entry. Path is relative to the archive's
// top-level directory and always uses forward slashes.
type File struct {
	Path    string
	Content string
}

// Download stores the archive at url in dest unless dest already exists, and
// returns dest. The body is written to a temporary file in the same
// directory and renamed into place, so an interrupted download never leaves
// a partial archive behind.
func Download(ctx context.Context, client *http.Client, url, dest string) (string, error) {
	logger := slog.Default().With("component", "archive")
	if _, err := os.Stat(dest); err == nil {
		logger.Info("archive already present", "path", dest)
		return dest, nil
	} else if !os.IsNotExist(err) {
		return "", apperrors.E("archive.download", apperrors.ErrSourceUnavailable, "stat %s: %v", dest, err)
	}
	if client == nil {
		client = http.DefaultClient
	}

	logger.Info("downloading archive", "url", url, "path", dest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", apperrors.E("archive.download", apperrors.ErrInvalidArgument, "building request for %s: %v", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", apperrors.E("archive.download", apperrors.ErrSourceUnavailable, "GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.E("archive.download", apperrors.ErrSourceUnavailable, "GET %s: status %d", url, resp.StatusCode)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.E("archive.download", apperrors.ErrSourceUnavailable, "creating %s: %v", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(dest)+".*.part")
	if err != nil {
		return "", apperrors.E("archive.download", apperrors.ErrSourceUnavailable, "creating temp file: %v", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", apperrors.E("archive.download", apperrors.ErrSourceUnavailable, "writing %s: %v", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", apperrors.E("archive.download", apperrors.ErrSourceUnavailable, "renaming into %s: %v", dest, err)
	}
	logger.Info("archive downloaded", "path", dest, "bytes", n)
	return dest, nil
}

// ReadFile loads and extracts the archive at path.
func ReadFile(path string, exts []string) ([]File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.E("archive.extract", apperrors.ErrSourceUnavailable, "reading %s: %v", path, err)
	}
	return Extract(data, exts)
}

// Extract returns the files in a zip archive whose names end in one of exts
// (DefaultExtensions when empty), in archive order. Directory entries are
// skipped and the first path segment shared by the archive is removed.
func Extract(data []byte, exts []string) ([]File, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.E("archive.extract", apperrors.ErrSourceUnavailable, "opening zip: %v", err)
	}

	base := baseDir(zr.File)
	files := make([]File, 0, len(zr.File)/4)
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || strings.HasSuffix(zf.Name, "/") {
			continue
		}
		if !slices.Contains(exts, path.Ext(zf.Name)) {
			continue
		}
		content, err := readEntry(zf)
		if err != nil {
			return nil, apperrors.E("archive.extract", apperrors.ErrSourceUnavailable, "reading %s: %v", zf.Name, err)
		}
		name := zf.Name
		if base != "" {
			name = strings.TrimPrefix(name, base+"/")
		}
		files = append(files, File{Path: name, Content: content})
	}
	return files, nil
}

// baseDir returns the top-level directory every entry lives under, or "" if
// the entries do not share one.
func baseDir(files []*zip.File) string {
	var base string
	for _, f := range files {
		first, _, found := strings.Cut(f.Name, "/")
		if !found {
			return ""
		}
		if base == "" {
			base = first
		} else if base != first {
			return ""
		}
	}
	return base
}

func readEntry(zf *zip.File) (string, error) {
	rc, err := zf.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("decompressing: %w", err)
	}
	return string(b), nil
}
