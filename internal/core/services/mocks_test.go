package services

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

// --- Mock implementations shared by service tests ---

// mockDocumentStore implements driven.DocumentStore for testing.
type mockDocumentStore struct {
	mu        sync.Mutex
	docs      map[string]domain.Document
	order     []string
	touched   map[string]time.Time
	fetchErr  error
	fetchHits int
}

func newMockDocumentStore(docs ...domain.Document) *mockDocumentStore {
	m := &mockDocumentStore{
		docs:    make(map[string]domain.Document),
		touched: make(map[string]time.Time),
	}
	for i := range docs {
		_ = m.SaveDocument(context.Background(), &docs[i])
	}
	return m
}

func (m *mockDocumentStore) FetchDocuments(_ context.Context, conversationID string) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchHits++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []domain.Document
	for _, id := range m.order {
		d := m.docs[id]
		if d.ConversationID == conversationID && d.HasContent() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (m *mockDocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; !ok {
		m.order = append(m.order, doc.ID)
	}
	m.docs[doc.ID] = *doc
	m.touched[doc.ConversationID] = doc.UpdatedAt
	return nil
}

func (m *mockDocumentStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.touched[d.ConversationID] = time.Now()
	return nil
}

func (m *mockDocumentStore) ListConversations(_ context.Context) ([]domain.ConversationSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, d := range m.docs {
		if d.HasContent() {
			counts[d.ConversationID]++
		}
	}
	out := make([]domain.ConversationSummary, 0, len(m.touched))
	for id, ts := range m.touched {
		out = append(out, domain.ConversationSummary{ConversationID: id, Documents: counts[id], UpdatedAt: ts})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out, nil
}

// linePipeline turns every non-blank line of a document into one chunk.
type linePipeline struct {
	err error
	// drop makes every document yield no chunks.
	drop bool
}

func (p *linePipeline) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.drop {
		return nil, nil
	}
	var chunks []domain.Chunk
	for _, line := range strings.Split(doc.Content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{DocumentID: doc.ID, Position: len(chunks), Content: line})
	}
	return chunks, nil
}

// mockEmbedder implements driven.EmbeddingService for testing.
// Texts listed in vectors get that vector; others get a unit vector along
// the first axis.
type mockEmbedder struct {
	mu        sync.Mutex
	vectors   map[string][]float32
	dim       int
	err       error
	dropLast  bool
	onBatch   func()
	batchHits int
	embedHits int
}

func newMockEmbedder(dim int) *mockEmbedder {
	return &mockEmbedder{vectors: make(map[string][]float32), dim: dim}
}

func (m *mockEmbedder) vector(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	v := make([]float32, m.dim)
	v[0] = 1
	return v
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedHits++
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchHits++
	if m.onBatch != nil {
		m.onBatch()
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, m.vector(t))
	}
	if m.dropLast && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dim }
func (m *mockEmbedder) ModelName() string { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return m.err }
func (m *mockEmbedder) Close() error { return nil }

// memoryIndexStore implements driven.IndexStore for testing.
type memoryIndexStore struct {
	mu        sync.Mutex
	artifacts map[string]*driven.IndexArtifact
	saveErr   error
	saves     int
	deletes   int
}

func newMemoryIndexStore() *memoryIndexStore {
	return &memoryIndexStore{artifacts: make(map[string]*driven.IndexArtifact)}
}

func (m *memoryIndexStore) Save(_ context.Context, a *driven.IndexArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.artifacts[a.Index.Manifest.ConversationID] = a
	return nil
}

func (m *memoryIndexStore) Load(_ context.Context, id string) (*driven.IndexArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.artifacts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}

func (m *memoryIndexStore) Stat(ctx context.Context, id string) (*domain.IndexManifest, error) {
	a, err := m.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	manifest := a.Index.Manifest
	return &manifest, nil
}

func (m *memoryIndexStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.artifacts, id)
	return nil
}

func (m *memoryIndexStore) List(_ context.Context) ([]domain.IndexManifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.IndexManifest, 0, len(m.artifacts))
	for _, a := range m.artifacts {
		out = append(out, a.Index.Manifest)
	}
	return out, nil
}

// stubVectors implements driven.VectorIndex with fixed neighbours.
type stubVectors struct {
	rows int
	dim  int
	hits []driven.VectorHit
	err  error
}

func (s *stubVectors) Search(_ context.Context, _ []float32, k int) ([]driven.VectorHit, error) {
	if s.err != nil {
		return nil, s.err
	}
	if k < len(s.hits) {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

func (s *stubVectors) Len() int { return s.rows }
func (s *stubVectors) Dimensions() int { return s.dim }
func (s *stubVectors) WriteTo(_ io.Writer) (int64, error) { return 0, nil }

// artifactOf builds an artifact whose rows are texts, all from one document.
func artifactOf(conversationID string, vectors driven.VectorIndex, texts ...string) *driven.IndexArtifact {
	records := make([]domain.ChunkRecord, len(texts))
	for i, t := range texts {
		records[i] = domain.ChunkRecord{Position: i, DocumentID: "doc-1", Text: t}
	}
	return &driven.IndexArtifact{
		Index: domain.ConversationIndex{
			Manifest: domain.IndexManifest{
				ConversationID: conversationID,
				Version:        "v1",
				Rows:           len(texts),
				BuiltAt:        time.Now(),
			},
			Records: records,
		},
		Vectors: vectors,
	}
}

// mockConfigStore implements driven.ConfigStore for testing.
type mockConfigStore struct {
	values map[string]any
}

func newMockConfigStore(values map[string]any) *mockConfigStore {
	if values == nil {
		values = make(map[string]any)
	}
	return &mockConfigStore{values: values}
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *mockConfigStore) GetString(key string) string {
	s, _ := m.values[key].(string)
	return s
}

func (m *mockConfigStore) GetInt(key string) int {
	switch v := m.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (m *mockConfigStore) GetFloat(key string) float64 {
	switch v := m.values[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func (m *mockConfigStore) GetBool(key string) bool {
	b, _ := m.values[key].(bool)
	return b
}

func (m *mockConfigStore) GetStringSlice(key string) []string {
	s, _ := m.values[key].([]string)
	return s
}

func (m *mockConfigStore) Set(key string, value any) error {
	m.values[key] = value
	return nil
}

func (m *mockConfigStore) Save() error { return nil }
func (m *mockConfigStore) Load() error { return nil }
func (m *mockConfigStore) Path() string { return "" }
