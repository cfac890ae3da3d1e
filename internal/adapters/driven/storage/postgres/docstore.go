package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

const documentsTable = "convorag_documents"

var documentFields = []string{"id", "conversation_id", "title", "content", "created_at", "updated_at"}

type documentRow struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	Title          string    `db:"title"`
	Content        string    `db:"content"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r documentRow) toDomain() domain.Document {
	return domain.Document{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Title:          r.Title,
		Content:        r.Content,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

// documentStore implements driven.DocumentStore.
type documentStore struct {
	db *sqlx.DB
}

var _ driven.DocumentStore = (*documentStore)(nil)

// FetchDocuments returns a conversation's documents with content, oldest first.
func (s *documentStore) FetchDocuments(ctx context.Context, conversationID string) ([]domain.Document, error) {
	query, args, err := builder.BuildSelect(documentsTable, map[string]any{
		"conversation_id": conversationID,
		"_orderby":        "created_at asc, id asc",
	}, documentFields)
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	query, args = rebind(query, args)

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}

	docs := make([]domain.Document, 0, len(rows))
	for _, row := range rows {
		doc := row.toDomain()
		if doc.HasContent() {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	query, args, err := builder.BuildSelect(documentsTable, map[string]any{"id": id}, documentFields)
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	query, args = rebind(query, args)

	var row documentRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying document: %w", err)
	}
	doc := row.toDomain()
	return &doc, nil
}

// SaveDocument stores or updates a document and touches its conversation.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" || doc.ConversationID == "" {
		return domain.ErrInvalidInput
	}
	touched := doc.UpdatedAt
	if touched.IsZero() {
		touched = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var previous string
	err = tx.GetContext(ctx, &previous,
		"SELECT conversation_id FROM "+documentsTable+" WHERE id = $1 FOR UPDATE", doc.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO `+documentsTable+` (id, conversation_id, title, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			conversation_id = EXCLUDED.conversation_id,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at
	`, doc.ID, doc.ConversationID, doc.Title, doc.Content, doc.CreatedAt.UTC(), doc.UpdatedAt.UTC())
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
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := builder.BuildDelete(documentsTable, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("building query: %w", err)
	}
	query, args = rebind(query+" RETURNING conversation_id", args)

	var conversationID string
	if err := tx.GetContext(ctx, &conversationID, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("deleting document: %w", err)
	}
	if err := touchConversation(ctx, tx, conversationID, time.Now().UTC()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListConversations summarises every conversation that has, or had, documents.
func (s *documentStore) ListConversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	var rows []struct {
		ID        string    `db:"id"`
		UpdatedAt time.Time `db:"updated_at"`
		Documents int       `db:"documents"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.updated_at,
			(SELECT COUNT(*) FROM `+documentsTable+` d
			 WHERE d.conversation_id = c.id
			   AND btrim(d.content, E' \t\r\n') <> '') AS documents
		FROM convorag_conversations c
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}

	summaries := make([]domain.ConversationSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, domain.ConversationSummary{
			ConversationID: row.ID,
			Documents:      row.Documents,
			UpdatedAt:      row.UpdatedAt.UTC(),
		})
	}
	return summaries, nil
}

// touchConversation moves a conversation's change time forward, never back.
func touchConversation(ctx context.Context, tx *sqlx.Tx, conversationID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO convorag_conversations (id, updated_at) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET
			updated_at = GREATEST(convorag_conversations.updated_at, EXCLUDED.updated_at)
	`, conversationID, at.UTC())
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}
	return nil
}
