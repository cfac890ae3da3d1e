// Package cache keeps recently loaded conversation indexes in memory.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/logger"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore wraps another IndexStore with an expiring LRU of loaded
// artifacts. A cached artifact is served only while the backing store still
// reports the same version, so writes from other processes are picked up.
// Cached artifacts are shared and must be treated as read-only.
type IndexStore struct {
	next  driven.IndexStore
	cache *expirable.LRU[string, *driven.IndexArtifact]
}

// NewIndexStore wraps next. A size of zero or less disables caching and
// returns next unchanged.
func NewIndexStore(next driven.IndexStore, size int, ttl time.Duration) driven.IndexStore {
	if size <= 0 {
		return next
	}
	return &IndexStore{
		next:  next,
		cache: expirable.NewLRU[string, *driven.IndexArtifact](size, nil, ttl),
	}
}

// Save writes through and drops the cached entry.
func (s *IndexStore) Save(ctx context.Context, a *driven.IndexArtifact) error {
	if a != nil {
		defer s.cache.Remove(a.Index.Manifest.ConversationID)
	}
	return s.next.Save(ctx, a)
}

// Load serves the cached artifact when its version is still current.
func (s *IndexStore) Load(ctx context.Context, conversationID string) (*driven.IndexArtifact, error) {
	if cached, ok := s.cache.Get(conversationID); ok {
		m, err := s.next.Stat(ctx, conversationID)
		switch {
		case err == nil && m.Version == cached.Index.Manifest.Version:
			return cached, nil
		case errors.Is(err, domain.ErrNotFound):
			s.cache.Remove(conversationID)
			return nil, err
		case err != nil:
			return nil, err
		}
		logger.Debug("Index of %s changed from %s to %s, reloading",
			conversationID, cached.Index.Manifest.Version, m.Version)
	}

	a, err := s.next.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(conversationID, a)
	return a, nil
}

// Stat delegates to the backing store.
func (s *IndexStore) Stat(ctx context.Context, conversationID string) (*domain.IndexManifest, error) {
	return s.next.Stat(ctx, conversationID)
}

// Delete drops the cached entry and deletes from the backing store.
func (s *IndexStore) Delete(ctx context.Context, conversationID string) error {
	defer s.cache.Remove(conversationID)
	return s.next.Delete(ctx, conversationID)
}

// List delegates to the backing store.
func (s *IndexStore) List(ctx context.Context) ([]domain.IndexManifest, error) {
	return s.next.List(ctx)
}

// Len returns the number of cached artifacts.
func (s *IndexStore) Len() int {
	return s.cache.Len()
}
