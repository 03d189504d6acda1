package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

// Schema creates the document snapshot table. seq preserves insertion order,
// which rebuilt indexes rely on for tie-breaking.
const Schema = `CREATE TABLE IF NOT EXISTS documents (
    seq        BIGINT PRIMARY KEY,
    id         TEXT NOT NULL UNIQUE,
    fields     JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Store persists a document snapshot in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "corpus-store"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.Exec(ctx, Schema)
}

// Save replaces the stored snapshot with docs in a single transaction.
func (s *Store) Save(ctx context.Context, docs []index.Document) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
			return fmt.Errorf("clearing documents: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("documents", "seq", "id", "fields"))
		if err != nil {
			return fmt.Errorf("preparing copy: %w", err)
		}
		for i, doc := range docs {
			fields, err := json.Marshal(doc.Fields)
			if err != nil {
				stmt.Close()
				return fmt.Errorf("marshaling fields of %s: %w", doc.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, i, doc.ID, string(fields)); err != nil {
				stmt.Close()
				return fmt.Errorf("copying %s: %w", doc.ID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing copy: %w", err)
		}
		return stmt.Close()
	})
	if err != nil {
		return fmt.Errorf("saving corpus: %w", err)
	}
	s.logger.Info("corpus saved", "documents", len(docs))
	return nil
}

// LoadAll returns the stored documents in their original order.
func (s *Store) LoadAll(ctx context.Context) ([]index.Document, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT id, fields FROM documents ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []index.Document
	for rows.Next() {
		var (
			id     string
			fields []byte
		)
		if err := rows.Scan(&id, &fields); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		doc := index.Document{ID: id}
		if err := json.Unmarshal(fields, &doc.Fields); err != nil {
			return nil, fmt.Errorf("decoding fields of %s: %w", id, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	s.logger.Info("corpus loaded from store", "documents", len(docs))
	return docs, nil
}
