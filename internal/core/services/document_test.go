package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

func TestDocumentService_Add(t *testing.T) {
	store := newMockDocumentStore()
	svc := NewDocumentService(store)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	doc, err := svc.Add(context.Background(), "conv-1", "notes.txt", "hello")

	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, fixed, doc.CreatedAt)
	assert.Equal(t, fixed, doc.UpdatedAt)

	got, err := svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
}

func TestDocumentService_Put_KeepsCreatedAt(t *testing.T) {
	store := newMockDocumentStore()
	svc := NewDocumentService(store)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	doc := &domain.Document{ID: "d1", ConversationID: "conv-1", Content: "v2", CreatedAt: created}
	require.NoError(t, svc.Put(context.Background(), doc))

	got, err := svc.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(created))
}

func TestDocumentService_Put_Invalid(t *testing.T) {
	svc := NewDocumentService(newMockDocumentStore())

	assert.ErrorIs(t, svc.Put(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.Put(context.Background(), &domain.Document{Content: "x"}), domain.ErrInvalidInput)
}

func TestDocumentService_ListAndDelete(t *testing.T) {
	store := newMockDocumentStore(
		testDoc("d1", "conv-1", "one"),
		testDoc("d2", "conv-1", ""),
		testDoc("d3", "conv-2", "three"),
	)
	svc := NewDocumentService(store)
	ctx := context.Background()

	docs, err := svc.List(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "d1", docs[0].ID)

	require.NoError(t, svc.Delete(ctx, "d1"))
	docs, err = svc.List(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, docs)

	convs, err := svc.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, 0, convs[0].Documents)
	assert.Equal(t, 1, convs[1].Documents)

	assert.ErrorIs(t, svc.Delete(ctx, "missing"), domain.ErrNotFound)
}
