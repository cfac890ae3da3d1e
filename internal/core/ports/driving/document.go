package driving

import (
	"context"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// DocumentService manages the documents of conversations.
type DocumentService interface {
	// Add stores a new document in a conversation and returns it.
	Add(ctx context.Context, conversationID, title, content string) (*domain.Document, error)

	// Put creates or replaces a document with a caller-chosen ID.
	Put(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// List returns the documents of a conversation.
	List(ctx context.Context, conversationID string) ([]domain.Document, error)

	// Delete removes a document.
	Delete(ctx context.Context, id string) error

	// Conversations summarises all conversations.
	Conversations(ctx context.Context) ([]domain.ConversationSummary, error)
}
