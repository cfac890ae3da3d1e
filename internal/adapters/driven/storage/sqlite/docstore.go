package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
	now   func() time.Time
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = "id, conversation_id, title, content, created_at, updated_at"

// FetchDocuments returns a conversation's documents with content, oldest first.
func (s *documentStore) FetchDocuments(ctx context.Context, conversationID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE conversation_id = ?
		ORDER BY created_at, id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		if doc.HasContent() {
			docs = append(docs, *doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// SaveDocument stores or updates a document and touches its conversation.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" || doc.ConversationID == "" {
		return domain.ErrInvalidInput
	}
	touched := doc.UpdatedAt
	if touched.IsZero() {
		touched = s.now()
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var previous string
	err = tx.QueryRowContext(ctx, "SELECT conversation_id FROM documents WHERE id = ?", doc.ID).Scan(&previous)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			title = excluded.title,
			content = excluded.content,
			updated_at = excluded.updated_at
	`, doc.ID, doc.ConversationID, doc.Title, doc.Content,
		formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	if previous != "" && previous != doc.ConversationID {
		if err := touchConversation(ctx, tx, previous, touched); err != nil {
			return err
		}
	}
	if err := touchConversation(ctx, tx, doc.ConversationID, touched); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// DeleteDocument removes a document and touches its conversation.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var conversationID string
	err = tx.QueryRowContext(ctx, "SELECT conversation_id FROM documents WHERE id = ?", id).Scan(&conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if err := touchConversation(ctx, tx, conversationID, s.now()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListConversations summarises every conversation that has, or had, documents.
func (s *documentStore) ListConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.id, c.updated_at,
			(SELECT COUNT(*) FROM documents d
			 WHERE d.conversation_id = c.id
			   AND trim(d.content, ' ' || char(9, 10, 13)) <> '')
		FROM conversations c
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var summaries []domain.ConversationSummary //nolint:prealloc // size unknown from query
	for rows.Next() {
		var summary domain.ConversationSummary
		var updatedAt string
		if err := rows.Scan(&summary.ConversationID, &updatedAt, &summary.Documents); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		summary.UpdatedAt = parseTime(updatedAt)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return summaries, nil
}

// touchConversation moves a conversation's change time forward, never back.
func touchConversation(ctx context.Context, tx *sql.Tx, conversationID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, updated_at) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = MAX(updated_at, excluded.updated_at)
	`, conversationID, formatTime(at))
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var createdAt, updatedAt string
	if err := row.Scan(&doc.ID, &doc.ConversationID, &doc.Title, &doc.Content, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}
