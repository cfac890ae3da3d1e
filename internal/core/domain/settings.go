package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or any compatible server.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGemini is the Google Gemini API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderGemini:
		return "Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// Dimensions requests a specific output size where the provider supports it.
	Dimensions int

	// BatchSize is the maximum number of texts per provider request.
	BatchSize int

	// RequestsPerSecond throttles provider requests. Zero disables throttling.
	RequestsPerSecond float64

	// CacheSize is the number of query embeddings kept in memory. Zero disables the cache.
	CacheSize int

	// CacheTTL is how long a cached query embedding stays valid.
	CacheTTL time.Duration

	// Timeout bounds a single provider request.
	Timeout time.Duration
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ChunkingSettings holds text splitter configuration.
type ChunkingSettings struct {
	// Size is the target maximum segment length in characters.
	Size int

	// Overlap is the minimum number of characters shared by consecutive segments.
	Overlap int

	// Separators are tried in priority order. The empty string splits per character.
	Separators []string
}

// DefaultSeparators is the paragraph > line > sentence > comma > space > character order.
func DefaultSeparators() []string {
	return []string{"\n\n", "\n", ".", ",", " ", ""}
}

// StorageBackend selects where conversation indexes are persisted.
type StorageBackend string

// Available storage backends.
const (
	StorageFile     StorageBackend = "file"
	StorageSQLite   StorageBackend = "sqlite"
	StorageS3       StorageBackend = "s3"
	StoragePostgres StorageBackend = "postgres"
	StorageMemory   StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageFile, StorageSQLite, StorageS3, StoragePostgres, StorageMemory:
		return true
	default:
		return false
	}
}

// S3Settings configures an S3 compatible object store such as MinIO.
type S3Settings struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// StorageSettings holds index persistence configuration.
type StorageSettings struct {
	// Backend selects the index store.
	Backend StorageBackend

	// Path is the root directory for the file backend and the database
	// file for the sqlite backend.
	Path string

	// S3 configures the s3 backend.
	S3 S3Settings

	// PostgresDSN configures the postgres backend.
	PostgresDSN string
}

// DocumentSettings selects the document store.
type DocumentSettings struct {
	// Driver is sqlite, postgres or memory.
	Driver StorageBackend

	// DSN is the database file (sqlite) or connection string (postgres).
	DSN string
}

// CacheSettings configures the in-memory cache of loaded indexes.
type CacheSettings struct {
	// Indexes is the number of conversations kept loaded. Zero disables the cache.
	Indexes int

	// TTL is how long a loaded index may be served without reloading.
	TTL time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	Chunking  ChunkingSettings
	Retrieval SearchOptions
	Embedding EmbeddingSettings
	Storage   StorageSettings
	Documents DocumentSettings
	Cache     CacheSettings
	Scheduler SchedulerConfig
}

// DefaultAppSettings returns settings with sensible defaults.
// Paths are left empty; the CLI fills them from the data directory.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunking: ChunkingSettings{
			Size:       500,
			Overlap:    100,
			Separators: DefaultSeparators(),
		},
		Retrieval: DefaultSearchOptions(),
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOllama,
			Model:     DefaultEmbeddingModels()[AIProviderOllama],
			BatchSize: 32,
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
			Timeout:   60 * time.Second,
		},
		Storage: StorageSettings{
			Backend: StorageFile,
		},
		Documents: DocumentSettings{
			Driver: StorageSQLite,
		},
		Cache: CacheSettings{
			Indexes: 32,
			TTL:     30 * time.Minute,
		},
		Scheduler: DefaultSchedulerConfig(),
	}
}

// Validate rejects settings that cannot be wired into a working pipeline.
func (s AppSettings) Validate() error {
	if s.Chunking.Size <= 0 {
		return fmt.Errorf("%w: chunking.size must be positive", ErrConfiguration)
	}
	if s.Chunking.Overlap < 0 || s.Chunking.Overlap >= s.Chunking.Size {
		return fmt.Errorf("%w: chunking.overlap must be in [0, chunking.size)", ErrConfiguration)
	}
	if err := s.Retrieval.Validate(); err != nil {
		return fmt.Errorf("%w: retrieval: %w", ErrConfiguration, err)
	}
	if !s.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrConfiguration, s.Embedding.Provider)
	}
	if s.Embedding.BatchSize < 0 || s.Embedding.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: embedding batch size and rate must not be negative", ErrConfiguration)
	}
	if !s.Storage.Backend.IsValid() {
		return fmt.Errorf("%w: unknown storage backend %q", ErrConfiguration, s.Storage.Backend)
	}
	switch s.Documents.Driver {
	case StorageSQLite, StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("%w: unknown document driver %q", ErrConfiguration, s.Documents.Driver)
	}
	return nil
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "text-embedding-004",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		"bge-m3":            1024,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"text-embedding-004": 768,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config so processors can be added without
// modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration keyed by processor name.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// PipelineConfigFor builds the pipeline configuration from chunking settings.
func PipelineConfigFor(c ChunkingSettings) PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": c.Size,
				"overlap":    c.Overlap,
				"separators": c.Separators,
			},
		},
	}
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfigFor(DefaultAppSettings().Chunking)
}
