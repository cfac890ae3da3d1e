package driven

import (
	"context"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// PostProcessor turns a document into chunks or refines existing chunks.
// The first processor of a pipeline receives nil chunks and splits the
// document content; later ones receive and return chunks.
type PostProcessor interface {
	// Name returns the processor name used in configuration.
	Name() string

	// Process returns the chunks for doc. Output order is chunk order.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order.
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}
