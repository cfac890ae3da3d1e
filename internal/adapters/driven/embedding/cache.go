package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/logger"
)

type cached struct {
	driven.EmbeddingService
	cache *expirable.LRU[string, []float32]
}

// Cache keeps recent single-text embeddings, keyed by model and text.
// Only Embed is cached; document batches always reach the provider.
// A non-positive size or ttl returns s unchanged.
func Cache(s driven.EmbeddingService, size int, ttl time.Duration) driven.EmbeddingService {
	if size <= 0 || ttl <= 0 {
		return s
	}
	return &cached{
		EmbeddingService: s,
		cache:            expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (c *cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.ModelName(), text)
	if v, ok := c.cache.Get(key); ok {
		logger.Debug("Query embedding cache hit")
		return slices.Clone(v), nil
	}
	v, err := c.EmbeddingService.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, slices.Clone(v))
	return v, nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(sum[:])
}
