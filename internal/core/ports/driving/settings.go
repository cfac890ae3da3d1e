package driving

import "github.com/custodia-labs/convorag/internal/core/domain"

// SettingsService reads and updates application settings.
type SettingsService interface {
	// Get returns the current settings with defaults applied.
	Get() (*domain.AppSettings, error)

	// SetEmbeddingProvider switches the embedding provider. An empty model
	// selects the provider's default model.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error
}
