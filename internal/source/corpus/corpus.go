// Package corpus turns extracted archive files into indexable documents and
// persists document snapshots.
package corpus

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/source/archive"
)

const (
	FieldFilename = "filename"
	FieldContent  = "content"
)

// FromFiles maps each file to a document whose ID is its path. Order is
// preserved.
func FromFiles(files []archive.File) []index.Document {
	docs := make([]index.Document, len(files))
	for i, f := range files {
		docs[i] = index.Document{
			ID: f.Path,
			Fields: map[string]string{
				FieldFilename: f.Path,
				FieldContent:  f.Content,
			},
		}
	}
	return docs
}

// Source says where the archive lives and which files to keep.
type Source struct {
	ArchiveURL  string
	ArchivePath string
	Extensions  []string
	Client      *http.Client
}

// Load downloads the archive if needed and returns its documents.
func Load(ctx context.Context, src Source) ([]index.Document, error) {
	logger := slog.Default().With("component", "corpus")
	start := time.Now()

	path, err := archive.Download(ctx, src.Client, src.ArchiveURL, src.ArchivePath)
	if err != nil {
		return nil, err
	}
	files, err := archive.ReadFile(path, src.Extensions)
	if err != nil {
		return nil, err
	}
	docs := FromFiles(files)
	logger.Info("corpus loaded",
		"archive", path,
		"documents", len(docs),
		"duration", time.Since(start),
	)
	return docs, nil
}
