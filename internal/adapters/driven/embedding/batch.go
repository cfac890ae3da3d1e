package embedding

import (
	"context"
	"fmt"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

type batched struct {
	driven.EmbeddingService
	size int
}

// Batch splits EmbedBatch calls into provider requests of at most size
// texts. Requests run sequentially and the output keeps input order.
// A size of zero or less returns s unchanged.
func Batch(s driven.EmbeddingService, size int) driven.EmbeddingService {
	if size <= 0 {
		return s
	}
	return &batched{EmbeddingService: s, size: size}
}

func (b *batched) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) <= b.size {
		return b.EmbeddingService.EmbedBatch(ctx, texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+b.size, len(texts))
		vectors, err := b.EmbeddingService.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("%w: batch %d-%d returned %d vectors",
				domain.ErrUpstream, start, end-1, len(vectors))
		}
		out = append(out, vectors...)
	}
	return out, nil
}
