package driven

import (
	"context"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// DocumentSource produces the documents of one conversation from an
// external location and reports later changes to them.
type DocumentSource interface {
	// ConversationID returns the conversation the documents belong to.
	ConversationID() string

	// Snapshot returns every document currently present.
	Snapshot(ctx context.Context) ([]domain.Document, error)

	// Watch streams changes until ctx is cancelled, then closes the channel.
	Watch(ctx context.Context) (<-chan domain.DocumentChange, error)

	// Close releases resources. Watch fails after Close.
	Close() error
}
