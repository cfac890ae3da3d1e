package embedding

import (
	"context"
	"math"

	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

type normalized struct {
	driven.EmbeddingService
}

// Normalize scales every returned vector to unit length, so inner product
// equals cosine similarity. Zero vectors are returned unchanged.
func Normalize(s driven.EmbeddingService) driven.EmbeddingService {
	return &normalized{EmbeddingService: s}
}

func (n *normalized) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := n.EmbeddingService.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return Unit(v), nil
}

func (n *normalized) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := n.EmbeddingService.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		out[i] = Unit(v)
	}
	return out, nil
}

// Unit returns a unit-length copy of v. A zero vector is copied as is.
func Unit(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
