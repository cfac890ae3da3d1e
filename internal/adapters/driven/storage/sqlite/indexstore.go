package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/convorag/internal/adapters/driven/storage/artifact"
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// indexStore implements driven.IndexStore.
type indexStore struct {
	store   *Store
	factory driven.VectorIndexFactory
}

var _ driven.IndexStore = (*indexStore)(nil)

const manifestColumns = "conversation_id, version, dimension, row_count, model, documents, built_at"

// Save replaces the conversation's index in one transaction.
func (s *indexStore) Save(ctx context.Context, a *driven.IndexArtifact) error {
	parts, err := artifact.Encode(a)
	if err != nil {
		return err
	}
	m := a.Index.Manifest

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM index_chunks WHERE conversation_id = ?", m.ConversationID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO indexes (`+manifestColumns+`, vectors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			version = excluded.version,
			dimension = excluded.dimension,
			row_count = excluded.row_count,
			model = excluded.model,
			documents = excluded.documents,
			built_at = excluded.built_at,
			vectors = excluded.vectors
	`, m.ConversationID, m.Version, m.Dimension, m.Rows, m.Model, m.Documents,
		formatTime(m.BuiltAt), parts.Vectors)
	if err != nil {
		return fmt.Errorf("saving index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_chunks (conversation_id, position, document_id, text)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range a.Index.Records {
		if _, err := stmt.ExecContext(ctx, m.ConversationID, rec.Position, rec.DocumentID, rec.Text); err != nil {
			return fmt.Errorf("saving chunk %d: %w", rec.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Load reads the manifest, chunks and vectors from one snapshot.
func (s *indexStore) Load(ctx context.Context, conversationID string) (*driven.IndexArtifact, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var blob []byte
	row := tx.QueryRowContext(ctx, "SELECT "+manifestColumns+", vectors FROM indexes WHERE conversation_id = ?",
		conversationID)
	m, err := scanManifest(row, &blob)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT position, document_id, text
		FROM index_chunks
		WHERE conversation_id = ?
		ORDER BY position
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	idx := domain.ConversationIndex{Manifest: *m, Records: make([]domain.ChunkRecord, 0, m.Rows)}
	for rows.Next() {
		var rec domain.ChunkRecord
		if err := rows.Scan(&rec.Position, &rec.DocumentID, &rec.Text); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		idx.Records = append(idx.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	vectors, err := s.factory.ReadFrom(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: decode vectors: %w", domain.ErrIndexCorrupt, err)
	}
	if vectors.Len() != len(idx.Records) {
		return nil, fmt.Errorf("%w: %d vectors for %d records", domain.ErrIndexCorrupt, vectors.Len(), len(idx.Records))
	}

	return &driven.IndexArtifact{Index: idx, Vectors: vectors}, nil
}

// Stat returns the manifest without reading chunks or vectors.
func (s *indexStore) Stat(ctx context.Context, conversationID string) (*domain.IndexManifest, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+manifestColumns+" FROM indexes WHERE conversation_id = ?",
		conversationID)
	return scanManifest(row)
}

// Delete removes the conversation's index.
func (s *indexStore) Delete(ctx context.Context, conversationID string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM index_chunks WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM indexes WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// List returns all manifests ordered by conversation ID.
func (s *indexStore) List(ctx context.Context) ([]domain.IndexManifest, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT "+manifestColumns+" FROM indexes ORDER BY conversation_id")
	if err != nil {
		return nil, fmt.Errorf("querying indexes: %w", err)
	}
	defer rows.Close()

	var manifests []domain.IndexManifest //nolint:prealloc // size unknown from query
	for rows.Next() {
		m, err := scanManifest(rows)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating indexes: %w", err)
	}
	return manifests, nil
}

// scanManifest scans manifestColumns followed by any extra destinations.
func scanManifest(row rowScanner, extra ...any) (*domain.IndexManifest, error) {
	var m domain.IndexManifest
	var builtAt string
	dest := append([]any{&m.ConversationID, &m.Version, &m.Dimension, &m.Rows, &m.Model, &m.Documents, &builtAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning index manifest: %w", err)
	}
	m.BuiltAt = parseTime(builtAt)
	return &m, nil
}
