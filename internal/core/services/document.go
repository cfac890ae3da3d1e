package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// DocumentService manages the documents of conversations.
// It never rebuilds indexes; callers or the scheduler decide when to.
type DocumentService struct {
	docStore driven.DocumentStore
	now      func() time.Time
}

// NewDocumentService creates a new document service.
func NewDocumentService(docStore driven.DocumentStore) *DocumentService {
	return &DocumentService{
		docStore: docStore,
		now:      time.Now,
	}
}

// Add stores a new document with a generated ID.
func (s *DocumentService) Add(ctx context.Context, conversationID, title, content string) (*domain.Document, error) {
	now := s.now().UTC()
	doc := &domain.Document{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Title:          title,
		Content:        content,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Put(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Put creates or replaces a document, keeping the original creation time
// when the document already exists.
func (s *DocumentService) Put(ctx context.Context, doc *domain.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(doc.ConversationID) == "" {
		return fmt.Errorf("%w: conversation id is required", domain.ErrInvalidInput)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	now := s.now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.docStore.GetDocument(ctx, id)
}

// List returns the documents of a conversation that have content.
func (s *DocumentService) List(ctx context.Context, conversationID string) ([]domain.Document, error) {
	return s.docStore.FetchDocuments(ctx, conversationID)
}

// Delete removes a document.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	return s.docStore.DeleteDocument(ctx, id)
}

// Conversations summarises all conversations.
func (s *DocumentService) Conversations(ctx context.Context) ([]domain.ConversationSummary, error) {
	return s.docStore.ListConversations(ctx)
}
