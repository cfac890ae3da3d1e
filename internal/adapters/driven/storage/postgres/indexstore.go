package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/convorag/internal/adapters/driven/storage/artifact"
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

const (
	indexesTable = "convorag_indexes"
	chunksTable  = "convorag_index_chunks"
	// insertBatch keeps multi-row inserts below the parameter limit.
	insertBatch = 1000
)

var manifestFields = []string{"conversation_id", "version", "dimension", "row_count", "model", "documents", "built_at"}

type manifestRow struct {
	ConversationID string    `db:"conversation_id"`
	Version        string    `db:"version"`
	Dimension      int       `db:"dimension"`
	RowCount       int       `db:"row_count"`
	Model          string    `db:"model"`
	Documents      int       `db:"documents"`
	BuiltAt        time.Time `db:"built_at"`
}

func (r manifestRow) toDomain() domain.IndexManifest {
	return domain.IndexManifest{
		ConversationID: r.ConversationID,
		Version:        r.Version,
		Dimension:      r.Dimension,
		Rows:           r.RowCount,
		Model:          r.Model,
		Documents:      r.Documents,
		BuiltAt:        r.BuiltAt.UTC(),
	}
}

type chunkRow struct {
	Position   int             `db:"position"`
	DocumentID string          `db:"document_id"`
	Text       string          `db:"text"`
	Embedding  pgvector.Vector `db:"embedding"`
}

// indexStore implements driven.IndexStore. Each chunk row carries its
// vector, and Load rebuilds the in-memory index from them.
type indexStore struct {
	db      *sqlx.DB
	factory driven.VectorIndexFactory
}

var _ driven.IndexStore = (*indexStore)(nil)

// vectorRows exposes the rows of an index that can hand them out.
type vectorRows interface {
	Row(i int) []float32
}

// Save replaces the conversation's index in one transaction.
func (s *indexStore) Save(ctx context.Context, a *driven.IndexArtifact) error {
	if err := artifact.Check(a); err != nil {
		return err
	}
	rows, ok := a.Vectors.(vectorRows)
	if !ok {
		return fmt.Errorf("%w: vector index does not expose rows", domain.ErrInvalidInput)
	}
	m := a.Index.Manifest

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO `+indexesTable+` (conversation_id, version, dimension, row_count, model, documents, built_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (conversation_id) DO UPDATE SET
			version = EXCLUDED.version,
			dimension = EXCLUDED.dimension,
			row_count = EXCLUDED.row_count,
			model = EXCLUDED.model,
			documents = EXCLUDED.documents,
			built_at = EXCLUDED.built_at
	`, m.ConversationID, m.Version, m.Dimension, m.Rows, m.Model, m.Documents, m.BuiltAt.UTC())
	if err != nil {
		return fmt.Errorf("saving index: %w", err)
	}

	query, args, err := builder.BuildDelete(chunksTable, map[string]any{"conversation_id": m.ConversationID})
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	query, args = rebind(query, args)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	for start := 0; start < len(a.Index.Records); start += insertBatch {
		end := min(start+insertBatch, len(a.Index.Records))
		data := make([]map[string]any, 0, end-start)
		for _, rec := range a.Index.Records[start:end] {
			data = append(data, map[string]any{
				"conversation_id": m.ConversationID,
				"position":        rec.Position,
				"document_id":     rec.DocumentID,
				"text":            rec.Text,
				"embedding":       pgvector.NewVector(rows.Row(rec.Position)),
			})
		}
		query, args, err := builder.BuildInsert(chunksTable, data)
		if err != nil {
			return fmt.Errorf("building insert: %w", err)
		}
		query, args = rebind(query, args)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("saving chunks: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Load reads the manifest and chunks from one snapshot.
func (s *indexStore) Load(ctx context.Context, conversationID string) (*driven.IndexArtifact, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	m, err := s.stat(ctx, tx, conversationID)
	if err != nil {
		return nil, err
	}

	query, args, err := builder.BuildSelect(chunksTable, map[string]any{
		"conversation_id": conversationID,
		"_orderby":        "position asc",
	}, []string{"position", "document_id", "text", "embedding"})
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	query, args = rebind(query, args)

	var rows []chunkRow
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}

	idx := domain.ConversationIndex{Manifest: *m, Records: make([]domain.ChunkRecord, len(rows))}
	vectors := make([][]float32, len(rows))
	for i, row := range rows {
		idx.Records[i] = domain.ChunkRecord{Position: row.Position, DocumentID: row.DocumentID, Text: row.Text}
		vectors[i] = row.Embedding.Slice()
	}
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	vi, err := s.factory.Build(vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: rebuilding vectors: %w", domain.ErrIndexCorrupt, err)
	}
	return &driven.IndexArtifact{Index: idx, Vectors: vi}, nil
}

// Stat returns the manifest without reading chunks.
func (s *indexStore) Stat(ctx context.Context, conversationID string) (*domain.IndexManifest, error) {
	return s.stat(ctx, s.db, conversationID)
}

func (s *indexStore) stat(ctx context.Context, q sqlx.QueryerContext, conversationID string) (*domain.IndexManifest, error) {
	query, args, err := builder.BuildSelect(indexesTable, map[string]any{"conversation_id": conversationID}, manifestFields)
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	query, args = rebind(query, args)

	var row manifestRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying index: %w", err)
	}
	m := row.toDomain()
	return &m, nil
}

// Delete removes the index; chunks cascade.
func (s *indexStore) Delete(ctx context.Context, conversationID string) error {
	query, args, err := builder.BuildDelete(indexesTable, map[string]any{"conversation_id": conversationID})
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	query, args = rebind(query, args)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting index: %w", err)
	}
	return nil
}

// List returns all manifests ordered by conversation ID.
func (s *indexStore) List(ctx context.Context) ([]domain.IndexManifest, error) {
	query, args, err := builder.BuildSelect(indexesTable, map[string]any{"_orderby": "conversation_id asc"}, manifestFields)
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	query, args = rebind(query, args)

	var rows []manifestRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying indexes: %w", err)
	}
	manifests := make([]domain.IndexManifest, len(rows))
	for i, row := range rows {
		manifests[i] = row.toDomain()
	}
	return manifests, nil
}
