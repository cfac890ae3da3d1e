package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
	"github.com/custodia-labs/convorag/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexBuilder = (*IndexService)(nil)

// IndexService builds and persists conversation indexes.
type IndexService struct {
	docs     driven.DocumentStore
	pipeline driven.PostProcessorPipeline
	embedder driven.EmbeddingService
	vectors  driven.VectorIndexFactory
	store    driven.IndexStore

	locks *keyedMutex
	now   func() time.Time
}

// NewIndexService creates a new index service.
func NewIndexService(
	docs driven.DocumentStore,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	vectors driven.VectorIndexFactory,
	store driven.IndexStore,
) *IndexService {
	return &IndexService{
		docs:     docs,
		pipeline: pipeline,
		embedder: embedder,
		vectors:  vectors,
		store:    store,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// RunPreprocessing rebuilds the index of one conversation.
// Nothing is persisted unless every step succeeds, so a failed build leaves
// the previous index in place.
func (s *IndexService) RunPreprocessing(ctx context.Context, conversationID string) (*domain.BuildResult, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("%w: conversation id is required", domain.ErrInvalidInput)
	}

	release, err := s.locks.Acquire(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	started := s.now()
	logger.Section("Index Build")
	logger.Debug("Conversation: %s", conversationID)

	docs, err := s.docs.FetchDocuments(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}

	result := &domain.BuildResult{ConversationID: conversationID}
	docs = withContent(docs)
	result.Documents = len(docs)
	if len(docs) == 0 {
		logger.Info("No documents for %s; nothing to index", conversationID)
		result.Skipped = true
		result.Duration = s.now().Sub(started)
		return result, nil
	}

	records, contributing, err := s.chunk(ctx, docs)
	if err != nil {
		return nil, err
	}
	logger.Debug("Chunked %d documents into %d records", len(docs), len(records))
	if len(records) == 0 {
		// Nothing left to index replaces the previous index with none.
		if err := s.store.Delete(ctx, conversationID); err != nil {
			return nil, fmt.Errorf("delete index: %w", err)
		}
		logger.Info("No chunks for %s; dropped its index", conversationID)
		result.Skipped = true
		result.Duration = s.now().Sub(started)
		return result, nil
	}

	texts := make([]string, len(records))
	for i := range records {
		texts[i] = records[i].Text
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", asUpstream(err))
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embed chunks: %w: provider returned %d vectors for %d texts",
			domain.ErrUpstream, len(embeddings), len(texts))
	}

	vectors, err := s.vectors.Build(embeddings)
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return nil, fmt.Errorf("build vectors: %w", err)
		}
		return nil, fmt.Errorf("build vectors: %w", asUpstream(err))
	}

	artifact := &driven.IndexArtifact{
		Index: domain.ConversationIndex{
			Manifest: domain.IndexManifest{
				ConversationID: conversationID,
				Version:        newVersion(s.now()),
				Dimension:      vectors.Dimensions(),
				Rows:           vectors.Len(),
				Model:          s.embedder.ModelName(),
				Documents:      contributing,
				BuiltAt:        started.UTC(),
			},
			Records: records,
		},
		Vectors: vectors,
	}

	if err := s.store.Save(ctx, artifact); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}

	result.Chunks = len(records)
	result.Dimension = vectors.Dimensions()
	result.Version = artifact.Index.Manifest.Version
	result.Duration = s.now().Sub(started)
	logger.Info("Indexed %s: %d chunks, dim %d, version %s",
		conversationID, result.Chunks, result.Dimension, result.Version)

	return result, nil
}

// RunAll rebuilds every conversation known to the document store.
// A failing conversation does not stop the others; all failures are joined.
func (s *IndexService) RunAll(ctx context.Context) ([]domain.BuildResult, error) {
	convs, err := s.docs.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	results := make([]domain.BuildResult, 0, len(convs))
	var errs []error
	for _, conv := range convs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := s.RunPreprocessing(ctx, conv.ConversationID)
		if err != nil {
			logger.Warn("Index build failed for %s: %v", conv.ConversationID, err)
			errs = append(errs, fmt.Errorf("%s: %w", conv.ConversationID, err))
			continue
		}
		results = append(results, *res)
	}

	return results, errors.Join(errs...)
}

// DropIndex deletes the conversation's index.
func (s *IndexService) DropIndex(ctx context.Context, conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return fmt.Errorf("%w: conversation id is required", domain.ErrInvalidInput)
	}

	release, err := s.locks.Acquire(ctx, conversationID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.store.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	logger.Info("Dropped index for %s", conversationID)
	return nil
}

// chunk runs every document through the pipeline and flattens the chunks
// into records numbered from zero in document order.
func (s *IndexService) chunk(ctx context.Context, docs []domain.Document) ([]domain.ChunkRecord, int, error) {
	var records []domain.ChunkRecord
	contributing := 0
	for i := range docs {
		chunks, err := s.pipeline.Process(ctx, &docs[i])
		if err != nil {
			return nil, 0, fmt.Errorf("chunk document %s: %w", docs[i].ID, err)
		}
		if len(chunks) > 0 {
			contributing++
		}
		for _, c := range chunks {
			records = append(records, domain.ChunkRecord{
				Position:   len(records),
				DocumentID: docs[i].ID,
				Text:       c.Content,
			})
		}
	}
	return records, contributing, nil
}

func withContent(docs []domain.Document) []domain.Document {
	out := docs[:0:0]
	for _, d := range docs {
		if d.HasContent() {
			out = append(out, d)
		}
	}
	return out
}

// newVersion returns a version that sorts by build time.
func newVersion(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000") + "-" + uuid.NewString()[:8]
}

// asUpstream tags a provider or library failure with domain.ErrUpstream.
// Cancellation and errors that already carry a kind pass through unchanged.
func asUpstream(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, domain.ErrUpstream),
		errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrInvalidInput):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
}
