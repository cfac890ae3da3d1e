package driven

import (
	"context"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// IndexArtifact is one complete, persisted conversation index:
// the chunk records and the vectors in the same row order.
type IndexArtifact struct {
	Index   domain.ConversationIndex
	Vectors VectorIndex
}

// IndexStore persists conversation indexes.
//
// Save replaces any previous artifact of the conversation as one atomic
// unit: a concurrent Load observes either the previous complete artifact
// or the new one, never a mix.
type IndexStore interface {
	// Save writes the artifact, replacing any previous one.
	Save(ctx context.Context, artifact *IndexArtifact) error

	// Load reads the current artifact.
	// Returns domain.ErrNotFound if the conversation has no index.
	Load(ctx context.Context, conversationID string) (*IndexArtifact, error)

	// Stat returns the manifest of the current artifact without loading vectors.
	// Returns domain.ErrNotFound if the conversation has no index.
	Stat(ctx context.Context, conversationID string) (*domain.IndexManifest, error)

	// Delete removes the conversation's artifact. Deleting a missing index is not an error.
	Delete(ctx context.Context, conversationID string) error

	// List returns the manifests of all stored indexes.
	List(ctx context.Context) ([]domain.IndexManifest, error)
}
