// Package ai provides factory functions for creating embedding services
// from settings.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/convorag/internal/adapters/driven/embedding"
	geminiembed "github.com/custodia-labs/convorag/internal/adapters/driven/embedding/gemini"
	ollamaembed "github.com/custodia-labs/convorag/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/convorag/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateEmbeddingService builds the configured provider and wraps it with
// rate limiting, batching, normalisation and the query cache.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, fmt.Errorf("%w: set embedding.provider (and embedding.api_key for cloud providers)",
			domain.ErrEmbeddingUnavailable)
	}

	provider, err := createProvider(ctx, settings)
	if err != nil {
		return nil, err
	}

	return embedding.Wrap(provider, embedding.Options{
		BatchSize:         settings.BatchSize,
		RequestsPerSecond: settings.RequestsPerSecond,
		CacheSize:         settings.CacheSize,
		CacheTTL:          settings.CacheTTL,
	}), nil
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(ctx, settings)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Check the embedding settings with 'convorag config'",
			domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// ValidateEmbeddingConfig creates a service from settings and pings it.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := CreateAndValidateEmbeddingService(ctx, settings)
	if err != nil {
		return err
	}
	return svc.Close()
}

func createProvider(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    settings.Timeout,
			Dimensions: settings.Dimensions,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    settings.Timeout,
			Dimensions: settings.Dimensions,
		})

	case domain.AIProviderGemini:
		return geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrConfiguration, settings.Provider)
	}
}
