package services

import (
	"fmt"
	"slices"
	"time"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize       = "chunking.size"
	keyChunkOverlap    = "chunking.overlap"
	keyChunkSeparators = "chunking.separators"

	keyTopK               = "retrieval.top_k"
	keySimilarity         = "retrieval.similarity_threshold"
	keyContextWindow      = "retrieval.context_window"
	keyDocLengthThreshold = "retrieval.doc_length_threshold"

	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyEmbedDims       = "embedding.dimensions"
	keyEmbedBatchSize  = "embedding.batch_size"
	keyEmbedRate       = "embedding.requests_per_second"
	keyEmbedCacheSize  = "embedding.cache_size"
	keyEmbedCacheTTL   = "embedding.cache_ttl"
	keyEmbedTimeout    = "embedding.timeout"
	keyStorageBackend  = "storage.backend"
	keyStoragePath     = "storage.path"
	keyS3Endpoint      = "storage.s3.endpoint"
	keyS3Region        = "storage.s3.region"
	keyS3Bucket        = "storage.s3.bucket"
	keyS3Prefix        = "storage.s3.prefix"
	keyS3AccessKey     = "storage.s3.access_key"
	keyS3SecretKey     = "storage.s3.secret_key"
	keyS3PathStyle     = "storage.s3.path_style"
	keyPostgresDSN     = "storage.postgres.dsn"
	keyDocumentsDriver = "documents.driver"
	keyDocumentsDSN    = "documents.dsn"
	keyCacheIndexes    = "cache.indexes"
	keyCacheTTL        = "cache.ttl"

	keySchedulerEnabled = "scheduler.enabled"
	keyRefreshSchedule  = "scheduler.refresh_schedule"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := LoadSettings(s.configStore)
	return &settings, nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	if model == "" {
		model = domain.DefaultEmbeddingModels()[provider]
	}

	baseURL := s.configStore.GetString(keyEmbedBaseURL)
	if provider.IsLocal() {
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
	} else {
		baseURL = ""
	}

	updates := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, provider.String()},
		{keyEmbedModel, model},
		{keyEmbedBaseURL, baseURL},
		{keyEmbedAPIKey, apiKey},
		{keyEmbedDims, domain.EmbeddingDimensions()[model]},
	}
	for _, u := range updates {
		if err := s.configStore.Set(u.key, u.value); err != nil {
			return fmt.Errorf("save %s: %w", u.key, err)
		}
	}
	return nil
}

// LoadSettings maps configuration keys to typed settings, falling back to
// defaults for missing or invalid values.
func LoadSettings(cfg driven.ConfigStore) domain.AppSettings {
	d := domain.DefaultAppSettings()
	r := settingsReader{cfg: cfg}

	s := domain.AppSettings{
		Chunking: domain.ChunkingSettings{
			Size:       r.getInt(keyChunkSize, d.Chunking.Size),
			Overlap:    r.getInt(keyChunkOverlap, d.Chunking.Overlap),
			Separators: r.getStrings(keyChunkSeparators, d.Chunking.Separators),
		},
		Retrieval: domain.SearchOptions{
			TopK:                r.getInt(keyTopK, d.Retrieval.TopK),
			SimilarityThreshold: r.getFloat(keySimilarity, d.Retrieval.SimilarityThreshold),
			ContextWindow:       r.getInt(keyContextWindow, d.Retrieval.ContextWindow),
			DocLengthThreshold:  r.getInt(keyDocLengthThreshold, d.Retrieval.DocLengthThreshold),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          domain.AIProvider(r.getString(keyEmbedProvider, string(d.Embedding.Provider))),
			BaseURL:           cfg.GetString(keyEmbedBaseURL),
			APIKey:            cfg.GetString(keyEmbedAPIKey),
			Dimensions:        r.getInt(keyEmbedDims, 0),
			BatchSize:         r.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
			RequestsPerSecond: r.getFloat(keyEmbedRate, d.Embedding.RequestsPerSecond),
			CacheSize:         r.getInt(keyEmbedCacheSize, d.Embedding.CacheSize),
			CacheTTL:          r.getDuration(keyEmbedCacheTTL, d.Embedding.CacheTTL),
			Timeout:           r.getDuration(keyEmbedTimeout, d.Embedding.Timeout),
		},
		Storage: domain.StorageSettings{
			Backend: domain.StorageBackend(r.getString(keyStorageBackend, string(d.Storage.Backend))),
			Path:    cfg.GetString(keyStoragePath),
			S3: domain.S3Settings{
				Endpoint:  cfg.GetString(keyS3Endpoint),
				Region:    r.getString(keyS3Region, "us-east-1"),
				Bucket:    cfg.GetString(keyS3Bucket),
				Prefix:    cfg.GetString(keyS3Prefix),
				AccessKey: cfg.GetString(keyS3AccessKey),
				SecretKey: cfg.GetString(keyS3SecretKey),
				PathStyle: r.getBool(keyS3PathStyle, false),
			},
			PostgresDSN: cfg.GetString(keyPostgresDSN),
		},
		Documents: domain.DocumentSettings{
			Driver: domain.StorageBackend(r.getString(keyDocumentsDriver, string(d.Documents.Driver))),
			DSN:    cfg.GetString(keyDocumentsDSN),
		},
		Cache: domain.CacheSettings{
			Indexes: r.getInt(keyCacheIndexes, d.Cache.Indexes),
			TTL:     r.getDuration(keyCacheTTL, d.Cache.TTL),
		},
		Scheduler: d.Scheduler,
	}

	// Model defaults follow the provider, not the default provider.
	s.Embedding.Model = r.getString(keyEmbedModel, domain.DefaultEmbeddingModels()[s.Embedding.Provider])

	s.Scheduler.Enabled = r.getBool(keySchedulerEnabled, d.Scheduler.Enabled)
	refresh := s.Scheduler.GetTaskConfig(domain.TaskIDIndexRefresh)
	refresh.Schedule = r.getString(keyRefreshSchedule, refresh.Schedule)
	s.Scheduler.TaskConfigs = map[string]domain.TaskConfig{domain.TaskIDIndexRefresh: refresh}

	return s
}

// settingsReader applies defaults for keys that are missing.
type settingsReader struct {
	cfg driven.ConfigStore
}

func (r settingsReader) has(key string) bool {
	_, ok := r.cfg.Get(key)
	return ok
}

func (r settingsReader) getString(key, def string) string {
	if v := r.cfg.GetString(key); v != "" {
		return v
	}
	return def
}

func (r settingsReader) getInt(key string, def int) int {
	if !r.has(key) {
		return def
	}
	return r.cfg.GetInt(key)
}

func (r settingsReader) getFloat(key string, def float64) float64 {
	if !r.has(key) {
		return def
	}
	return r.cfg.GetFloat(key)
}

func (r settingsReader) getBool(key string, def bool) bool {
	if !r.has(key) {
		return def
	}
	return r.cfg.GetBool(key)
}

func (r settingsReader) getStrings(key string, def []string) []string {
	if v := r.cfg.GetStringSlice(key); len(v) > 0 {
		return v
	}
	return def
}

func (r settingsReader) getDuration(key string, def time.Duration) time.Duration {
	v := r.cfg.GetString(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
