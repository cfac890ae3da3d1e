// Package embedding provides decorators that compose around any
// driven.EmbeddingService: L2 normalisation, request batching, rate
// limiting and a query embedding cache.
//
// Provider adapters live in the ollama, openai and gemini subpackages.
package embedding

import (
	"time"

	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// Options configures Wrap.
type Options struct {
	// BatchSize is the maximum number of texts per provider request.
	// Zero sends every batch in one request.
	BatchSize int

	// RequestsPerSecond throttles provider requests. Zero disables throttling.
	RequestsPerSecond float64

	// Burst is the number of requests allowed at once. Defaults to 1.
	Burst int

	// CacheSize is the number of query embeddings kept. Zero disables caching.
	CacheSize int

	// CacheTTL bounds how long a cached query embedding is served.
	CacheTTL time.Duration
}

// Wrap composes the decorators around a provider, innermost first:
// rate limit, batch, normalize, cache. Each provider request is throttled
// and cached vectors are already unit length.
func Wrap(provider driven.EmbeddingService, opts Options) driven.EmbeddingService {
	s := RateLimit(provider, opts.RequestsPerSecond, opts.Burst)
	s = Batch(s, opts.BatchSize)
	s = Normalize(s)
	return Cache(s, opts.CacheSize, opts.CacheTTL)
}
