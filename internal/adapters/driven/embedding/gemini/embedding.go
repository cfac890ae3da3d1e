// Package gemini provides an embedding service adapter using the Google
// Gemini API through the genai SDK.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-004"

// Task types tell the model whether it embeds stored text or a query.
const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the embedding model (default: text-embedding-004).
	Model string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Dimensions requests reduced output size. Zero keeps the model size.
	Dimensions int

	// HTTPClient overrides the SDK's HTTP client.
	HTTPClient *http.Client
}

// EmbeddingService generates embeddings with Models.EmbedContent.
type EmbeddingService struct {
	client     *genai.Client
	model      string
	dimensions int
	reduce     bool
}

// NewEmbeddingService creates a Gemini embedding service.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: gemini: API key is required", domain.ErrConfiguration)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: create client: %w", domain.ErrConfiguration, err)
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[cfg.Model]
	}

	return &EmbeddingService{
		client:     client,
		model:      cfg.Model,
		dimensions: dimensions,
		reduce:     cfg.Dimensions > 0,
	}, nil
}

// Embed generates a query embedding.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embed(ctx, []string{text}, taskQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates document embeddings in one request, preserving order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return s.embed(ctx, texts, taskDocument)
}

func (s *EmbeddingService) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: t}}}
	}

	config := &genai.EmbedContentConfig{TaskType: taskType}
	if s.reduce {
		dims := int32(s.dimensions) //nolint:gosec // G115: configured dimension is small
		config.OutputDimensionality = &dims
	}

	resp, err := s.client.Models.EmbedContent(ctx, s.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini: %w", domain.ErrUpstream, err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("%w: gemini: got %d embeddings for %d inputs", domain.ErrUpstream, got, len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: gemini: empty embedding for input %d", domain.ErrUpstream, i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// Dimensions returns the embedding vector size, or 0 for unknown models.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping embeds a short probe text.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	_, err := s.Embed(ctx, "ping")
	return err
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
