package driven

import (
	"context"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// DocumentStore provides access to conversation documents.
type DocumentStore interface {
	// FetchDocuments returns the documents of a conversation that have
	// content, in a stable store order (creation order, then ID).
	FetchDocuments(ctx context.Context, conversationID string) ([]domain.Document, error)

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// SaveDocument creates or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// DeleteDocument removes a document and records the change on its conversation.
	DeleteDocument(ctx context.Context, id string) error

	// ListConversations summarises every conversation that has, or had, documents.
	ListConversations(ctx context.Context) ([]domain.ConversationSummary, error)
}
