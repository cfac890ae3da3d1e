package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

type limited struct {
	driven.EmbeddingService
	limiter *rate.Limiter
}

// RateLimit makes every provider request wait for a token bucket slot.
// Waiting honours ctx cancellation. A non-positive rate returns s unchanged.
func RateLimit(s driven.EmbeddingService, requestsPerSecond float64, burst int) driven.EmbeddingService {
	if requestsPerSecond <= 0 {
		return s
	}
	if burst < 1 {
		burst = 1
	}
	return &limited{
		EmbeddingService: s,
		limiter:          rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (l *limited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.EmbeddingService.Embed(ctx, text)
}

func (l *limited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.EmbeddingService.EmbedBatch(ctx, texts)
}
