package driving

import (
	"context"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// IndexBuilder rebuilds conversation indexes from their documents.
type IndexBuilder interface {
	// RunPreprocessing fetches, chunks and embeds every document of the
	// conversation and persists a new index that fully replaces the old one.
	// A conversation without documents is a no-op reported as Skipped.
	RunPreprocessing(ctx context.Context, conversationID string) (*domain.BuildResult, error)

	// RunAll rebuilds every conversation known to the document store.
	RunAll(ctx context.Context) ([]domain.BuildResult, error)

	// DropIndex deletes the conversation's index. Dropping a missing index
	// is not an error.
	DropIndex(ctx context.Context, conversationID string) error
}
