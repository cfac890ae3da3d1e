package documents

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convorag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/convorag/internal/core/domain"
)

type stubDocuments struct {
	docs []domain.Document
	err  error
	conv string
}

func (s *stubDocuments) Add(context.Context, string, string, string) (*domain.Document, error) {
	return nil, domain.ErrNotImplemented
}

func (s *stubDocuments) Put(context.Context, *domain.Document) error { return domain.ErrNotImplemented }

func (s *stubDocuments) Get(context.Context, string) (*domain.Document, error) {
	return nil, domain.ErrNotFound
}

func (s *stubDocuments) List(_ context.Context, conversationID string) ([]domain.Document, error) {
	s.conv = conversationID
	return s.docs, s.err
}

func (s *stubDocuments) Delete(context.Context, string) error { return domain.ErrNotImplemented }

func (s *stubDocuments) Conversations(context.Context) ([]domain.ConversationSummary, error) {
	return nil, nil
}

func sampleDocs(n int) []domain.Document {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.Document{
			ID:             fmt.Sprintf("doc-%d", i),
			ConversationID: "conv-1",
			Title:          fmt.Sprintf("file-%d.md", i),
			Content:        fmt.Sprintf("body of file %d", i),
			UpdatedAt:      at,
		}
	}
	return docs
}

func loaded(t *testing.T, svc *stubDocuments) *View {
	t.Helper()
	v := NewView(nil, svc, "conv-1")
	v, _ = v.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	cmd := v.Load()
	assert.True(t, v.Loading())
	v, _ = v.Update(cmd())
	return v
}

func TestView_Load(t *testing.T) {
	svc := &stubDocuments{docs: sampleDocs(2)}

	v := loaded(t, svc)

	assert.Equal(t, "conv-1", svc.conv)
	assert.False(t, v.Loading())
	assert.Len(t, v.Documents(), 2)
	out := v.View()
	assert.Contains(t, out, "Documents - conv-1 (2)")
	assert.Contains(t, out, "file-0.md")
	assert.Contains(t, out, "14 chars  2026-03-01 09:30")
}

func TestView_LoadingState(t *testing.T) {
	v := NewView(nil, &stubDocuments{}, "conv-1")
	v.Load()

	assert.Contains(t, v.View(), "Loading documents...")
}

func TestView_Empty(t *testing.T) {
	v := loaded(t, &stubDocuments{})

	assert.Contains(t, v.View(), "No documents in this conversation.")
	assert.Nil(t, v.SelectedDocument())
}

func TestView_LoadError(t *testing.T) {
	v := loaded(t, &stubDocuments{err: errors.New("db closed")})

	assert.EqualError(t, v.Err(), "db closed")
	assert.Contains(t, v.View(), "Error: db closed")
}

func TestView_NoService(t *testing.T) {
	v := NewView(nil, nil, "conv-1")

	msg := v.Load()()

	assert.Equal(t, messages.DocumentsLoaded{ConversationID: "conv-1", Err: ErrNoDocumentService}, msg)
}

func TestView_NavigateAndRead(t *testing.T) {
	v := loaded(t, &stubDocuments{docs: sampleDocs(3)})

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, "doc-2", v.SelectedDocument().ID)

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyUp})
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.True(t, v.Reading())
	out := v.View()
	assert.Contains(t, out, "file-1.md")
	assert.Contains(t, out, "body of file 1")

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, v.Reading())
}

func TestView_Reload(t *testing.T) {
	svc := &stubDocuments{docs: sampleDocs(3)}
	v := loaded(t, svc)
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})

	svc.docs = sampleDocs(1)
	v, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	v, _ = v.Update(cmd())

	assert.Len(t, v.Documents(), 1)
	assert.Equal(t, "doc-0", v.SelectedDocument().ID)
}

func TestView_Scrolls(t *testing.T) {
	v := NewView(nil, &stubDocuments{docs: sampleDocs(10)}, "conv-1")
	v, _ = v.Update(tea.WindowSizeMsg{Width: 100, Height: 11})
	v, _ = v.Update(v.Load()())

	for range 5 {
		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})
	}

	out := v.View()
	assert.Contains(t, out, "file-5.md")
	assert.NotContains(t, out, "file-2.md")
	assert.Contains(t, out, "[4-6 of 10]")
}

func TestView_UntitledUsesID(t *testing.T) {
	v := loaded(t, &stubDocuments{docs: []domain.Document{{ID: "doc-x", Content: "text"}}})

	assert.Contains(t, v.View(), "doc-x")
}
