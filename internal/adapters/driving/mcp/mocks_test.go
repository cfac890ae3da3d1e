package mcp

import (
	"context"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	hits    []domain.SearchHit
	err     error
	gotConv string
	gotOpts domain.SearchOptions
}

func (m *mockRetrievalService) Search(
	_ context.Context,
	conversationID string,
	_ string,
	opts domain.SearchOptions,
) ([]domain.SearchHit, error) {
	m.gotConv = conversationID
	m.gotOpts = opts
	return m.hits, m.err
}

func (m *mockRetrievalService) ContextFor(
	_ context.Context,
	_ string,
	_ string,
	_ domain.SearchOptions,
) (string, error) {
	return "", m.err
}

// mockIndexBuilder is a mock implementation of driving.IndexBuilder.
type mockIndexBuilder struct {
	result *domain.BuildResult
	err    error
	built  []string
}

func (m *mockIndexBuilder) RunPreprocessing(_ context.Context, id string) (*domain.BuildResult, error) {
	m.built = append(m.built, id)
	return m.result, m.err
}

func (m *mockIndexBuilder) RunAll(_ context.Context) ([]domain.BuildResult, error) {
	return nil, m.err
}

func (m *mockIndexBuilder) DropIndex(_ context.Context, _ string) error {
	return m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents     []domain.Document
	document      *domain.Document
	conversations []domain.ConversationSummary
	err           error
}

func (m *mockDocumentService) Add(_ context.Context, _, _, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) Put(_ context.Context, _ *domain.Document) error {
	return m.err
}

func (m *mockDocumentService) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) List(_ context.Context, _ string) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockDocumentService) Conversations(_ context.Context) ([]domain.ConversationSummary, error) {
	return m.conversations, m.err
}
