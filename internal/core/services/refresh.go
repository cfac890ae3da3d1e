package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
	"github.com/custodia-labs/convorag/internal/logger"
)

// IndexRefresher brings persisted indexes in line with the document store.
type IndexRefresher struct {
	docs    driven.DocumentStore
	store   driven.IndexStore
	builder driving.IndexBuilder
}

// NewIndexRefresher creates a refresher.
func NewIndexRefresher(docs driven.DocumentStore, store driven.IndexStore, builder driving.IndexBuilder) *IndexRefresher {
	return &IndexRefresher{docs: docs, store: store, builder: builder}
}

// Refresh rebuilds every conversation whose documents changed after its
// index was built, or which has documents but no index. Indexes of
// conversations without documents are dropped. It returns the number of
// conversations rebuilt or dropped.
func (r *IndexRefresher) Refresh(ctx context.Context) (int, error) {
	convs, err := r.docs.ListConversations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list conversations: %w", err)
	}
	manifests, err := r.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list indexes: %w", err)
	}

	indexed := make(map[string]domain.IndexManifest, len(manifests))
	for _, m := range manifests {
		indexed[m.ConversationID] = m
	}

	processed := 0
	var errs []error
	known := make(map[string]struct{}, len(convs))
	for _, conv := range convs {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		known[conv.ConversationID] = struct{}{}
		manifest, hasIndex := indexed[conv.ConversationID]

		switch {
		case conv.Documents == 0 && hasIndex:
			if err := r.builder.DropIndex(ctx, conv.ConversationID); err != nil {
				errs = append(errs, err)
				continue
			}
			processed++
		case conv.Documents == 0:
		case !hasIndex || conv.UpdatedAt.After(manifest.BuiltAt):
			logger.Debug("Refreshing stale index for %s", conv.ConversationID)
			if _, err := r.builder.RunPreprocessing(ctx, conv.ConversationID); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", conv.ConversationID, err))
				continue
			}
			processed++
		}
	}

	for id := range indexed {
		if _, ok := known[id]; ok {
			continue
		}
		if err := r.builder.DropIndex(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		processed++
	}

	return processed, errors.Join(errs...)
}
