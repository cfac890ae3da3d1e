package driving

import (
	"context"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// Ingester mirrors an external document source into a conversation.
type Ingester interface {
	// Sync stores every document of the source. With prune, documents of
	// the conversation that the source no longer has are deleted.
	Sync(ctx context.Context, src driven.DocumentSource, prune bool) (*domain.SyncResult, error)

	// Watch applies source changes until ctx is cancelled and rebuilds the
	// conversation index once changes settle.
	Watch(ctx context.Context, src driven.DocumentSource) error
}
