package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
	"github.com/custodia-labs/convorag/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.Ingester = (*IngestService)(nil)

// DefaultDebounce is how long Watch waits after the last change before
// rebuilding.
const DefaultDebounce = 2 * time.Second

// IngestService mirrors document sources into conversations.
type IngestService struct {
	docs     driving.DocumentService
	builder  driving.IndexBuilder
	debounce time.Duration
	log      *zap.Logger
}

// NewIngestService creates an ingest service. A non-positive debounce
// uses DefaultDebounce.
func NewIngestService(docs driving.DocumentService, builder driving.IndexBuilder, debounce time.Duration) *IngestService {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &IngestService{
		docs:     docs,
		builder:  builder,
		debounce: debounce,
		log:      logger.Named("ingest"),
	}
}

// Sync stores every document of the source, skipping unchanged ones.
func (s *IngestService) Sync(ctx context.Context, src driven.DocumentSource, prune bool) (*domain.SyncResult, error) {
	conversationID := src.ConversationID()
	result := &domain.SyncResult{ConversationID: conversationID}

	docs, err := src.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	seen := make(map[string]struct{}, len(docs))
	for i := range docs {
		seen[docs[i].ID] = struct{}{}
		changed, err := s.store(ctx, &docs[i])
		if err != nil {
			return result, err
		}
		if changed {
			result.Stored++
		} else {
			result.Unchanged++
		}
	}

	if prune {
		existing, err := s.docs.List(ctx, conversationID)
		if err != nil {
			return result, fmt.Errorf("list documents: %w", err)
		}
		for _, d := range existing {
			if _, ok := seen[d.ID]; ok {
				continue
			}
			if err := s.docs.Delete(ctx, d.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return result, fmt.Errorf("delete document %s: %w", d.ID, err)
			}
			result.Removed++
		}
	}

	s.log.Debug("sync complete",
		zap.String("conversation", conversationID),
		zap.Int("stored", result.Stored),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("removed", result.Removed))
	return result, nil
}

// Watch applies changes from the source and rebuilds the index once no
// change has arrived for the debounce interval. Build failures are logged
// and watching continues. It returns nil when ctx is cancelled.
func (s *IngestService) Watch(ctx context.Context, src driven.DocumentSource) error {
	conversationID := src.ConversationID()
	changes, err := src.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	log := s.log.With(zap.String("conversation", conversationID))

	// settle fires once no change has arrived for the debounce interval.
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				if settle != nil {
					s.rebuild(ctx, conversationID, log)
				}
				return nil
			}
			changed, err := s.apply(ctx, change)
			if err != nil {
				log.Warn("apply change", zap.String("uri", change.URI), zap.Error(err))
				continue
			}
			if !changed {
				continue
			}
			log.Info("document changed",
				zap.String("uri", change.URI),
				zap.Stringer("change", change.Type))
			settle = time.After(s.debounce)
		case <-settle:
			settle = nil
			s.rebuild(ctx, conversationID, log)
		}
	}
}

func (s *IngestService) rebuild(ctx context.Context, conversationID string, log *zap.Logger) {
	start := time.Now()
	result, err := s.builder.RunPreprocessing(ctx, conversationID)
	switch {
	case err != nil:
		log.Error("rebuild failed", zap.Error(err))
	case result.Skipped:
		// No documents left.
		if err := s.builder.DropIndex(ctx, conversationID); err != nil {
			log.Error("drop index", zap.Error(err))
			return
		}
		log.Info("index dropped", zap.Duration("took", time.Since(start)))
	default:
		log.Info("index rebuilt",
			zap.Int("documents", result.Documents),
			zap.Int("chunks", result.Chunks),
			zap.Duration("took", time.Since(start)))
	}
}

// apply stores or deletes the document of one change and reports whether
// the document store changed.
func (s *IngestService) apply(ctx context.Context, change domain.DocumentChange) (bool, error) {
	if change.Type == domain.ChangeDeleted {
		err := s.docs.Delete(ctx, change.Document.ID)
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
	doc := change.Document
	return s.store(ctx, &doc)
}

// store writes doc unless an identical copy exists. The creation time of
// an existing document is kept so store order stays stable.
func (s *IngestService) store(ctx context.Context, doc *domain.Document) (bool, error) {
	existing, err := s.docs.Get(ctx, doc.ID)
	switch {
	case err == nil:
		if existing.ConversationID == doc.ConversationID &&
			existing.Title == doc.Title && existing.Content == doc.Content {
			return false, nil
		}
		doc.CreatedAt = existing.CreatedAt
	case !errors.Is(err, domain.ErrNotFound):
		return false, fmt.Errorf("get document %s: %w", doc.ID, err)
	}

	if err := s.docs.Put(ctx, doc); err != nil {
		return false, err
	}
	return true, nil
}
