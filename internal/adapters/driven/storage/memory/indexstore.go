package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/convorag/internal/adapters/driven/storage/artifact"
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore keeps conversation indexes in memory. Vector indexes are
// immutable, so artifacts are shared; records are copied on the way in and out.
type IndexStore struct {
	mu        sync.RWMutex
	artifacts map[string]driven.IndexArtifact
}

// NewIndexStore creates a new in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{artifacts: make(map[string]driven.IndexArtifact)}
}

// Save replaces the conversation's artifact.
func (s *IndexStore) Save(_ context.Context, a *driven.IndexArtifact) error {
	if err := artifact.Check(a); err != nil {
		return err
	}
	stored := copyArtifact(a)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[a.Index.Manifest.ConversationID] = stored
	return nil
}

// Load returns the current artifact.
func (s *IndexStore) Load(_ context.Context, conversationID string) (*driven.IndexArtifact, error) {
	s.mu.RLock()
	a, ok := s.artifacts[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyArtifact(&a)
	return &out, nil
}

// Stat returns the manifest of the current artifact.
func (s *IndexStore) Stat(_ context.Context, conversationID string) (*domain.IndexManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[conversationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m := a.Index.Manifest
	return &m, nil
}

// Delete removes the conversation's artifact.
func (s *IndexStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, conversationID)
	return nil
}

// List returns all manifests ordered by conversation ID.
func (s *IndexStore) List(_ context.Context) ([]domain.IndexManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	manifests := make([]domain.IndexManifest, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		manifests = append(manifests, a.Index.Manifest)
	}
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].ConversationID < manifests[j].ConversationID
	})
	return manifests, nil
}

func copyArtifact(a *driven.IndexArtifact) driven.IndexArtifact {
	records := make([]domain.ChunkRecord, len(a.Index.Records))
	copy(records, a.Index.Records)
	return driven.IndexArtifact{
		Index:   domain.ConversationIndex{Manifest: a.Index.Manifest, Records: records},
		Vectors: a.Vectors,
	}
}
