package driving

import (
	"context"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// RetrievalService answers semantic queries against one conversation.
type RetrievalService interface {
	// Search returns expanded hits best-first.
	// Returns domain.ErrNotFound when the conversation has no index and
	// domain.ErrEmpty when no row met the similarity threshold.
	Search(ctx context.Context, conversationID, query string, opts domain.SearchOptions) ([]domain.SearchHit, error)

	// ContextFor joins the hit texts with newlines for a generation prompt.
	// An empty result yields an empty string and no error.
	ContextFor(ctx context.Context, conversationID, query string, opts domain.SearchOptions) (string, error)
}
