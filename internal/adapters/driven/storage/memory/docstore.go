package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	touched   map[string]time.Time
	now       func() time.Time
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		touched:   make(map[string]time.Time),
		now:       time.Now,
	}
}

// FetchDocuments returns a conversation's documents with content, oldest first.
func (s *DocumentStore) FetchDocuments(_ context.Context, conversationID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []domain.Document
	for _, doc := range s.documents {
		if doc.ConversationID == conversationID && doc.HasContent() {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" || doc.ConversationID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// A document moved between conversations changes both.
	if prev, ok := s.documents[doc.ID]; ok && prev.ConversationID != doc.ConversationID {
		s.touch(prev.ConversationID, doc.UpdatedAt)
	}
	s.documents[doc.ID] = *doc
	s.touch(doc.ConversationID, doc.UpdatedAt)
	return nil
}

// DeleteDocument removes a document.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, id)
	s.touch(doc.ConversationID, s.now().UTC())
	return nil
}

// ListConversations summarises every conversation that has, or had, documents.
func (s *DocumentStore) ListConversations(_ context.Context) ([]domain.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, doc := range s.documents {
		if doc.HasContent() {
			counts[doc.ConversationID]++
		}
	}

	summaries := make([]domain.ConversationSummary, 0, len(s.touched))
	for id, ts := range s.touched {
		summaries = append(summaries, domain.ConversationSummary{
			ConversationID: id,
			Documents:      counts[id],
			UpdatedAt:      ts,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ConversationID < summaries[j].ConversationID
	})
	return summaries, nil
}

func (s *DocumentStore) touch(conversationID string, at time.Time) {
	if at.IsZero() {
		at = s.now().UTC()
	}
	if prev, ok := s.touched[conversationID]; !ok || at.After(prev) {
		s.touched[conversationID] = at
	}
}
