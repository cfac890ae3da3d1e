package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convorag/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/convorag/internal/core/domain"
)

func testDoc(id, conversationID, content string) domain.Document {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Document{
		ID:             id,
		ConversationID: conversationID,
		Title:          id,
		Content:        content,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
}

type indexFixture struct {
	docs     *mockDocumentStore
	pipeline *linePipeline
	embedder *mockEmbedder
	store    *memoryIndexStore
	svc      *IndexService
}

func newIndexFixture(docs ...domain.Document) *indexFixture {
	f := &indexFixture{
		docs:     newMockDocumentStore(docs...),
		pipeline: &linePipeline{},
		embedder: newMockEmbedder(2),
		store:    newMemoryIndexStore(),
	}
	f.svc = NewIndexService(f.docs, f.pipeline, f.embedder, flat.NewFactory(), f.store)
	return f
}

func TestIndexService_RunPreprocessing(t *testing.T) {
	f := newIndexFixture(
		testDoc("d1", "conv-1", "one\ntwo"),
		testDoc("d2", "conv-1", "three"),
		testDoc("d3", "conv-1", "   "),
		testDoc("d4", "conv-2", "elsewhere"),
	)
	f.embedder.vectors["two"] = []float32{0, 1}

	result, err := f.svc.RunPreprocessing(context.Background(), "conv-1")

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, 2, result.Documents)
	assert.Equal(t, 3, result.Chunks)
	assert.Equal(t, 2, result.Dimension)
	assert.NotEmpty(t, result.Version)

	artifact, err := f.store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	require.NoError(t, artifact.Index.Validate())
	assert.Equal(t, []string{"one", "two", "three"}, artifact.Index.Texts())
	assert.Equal(t, "d1", artifact.Index.Records[1].DocumentID)
	assert.Equal(t, "d2", artifact.Index.Records[2].DocumentID)
	assert.Equal(t, "mock-embed", artifact.Index.Manifest.Model)
	assert.Equal(t, 2, artifact.Index.Manifest.Documents)
	assert.Equal(t, 3, artifact.Vectors.Len())

	hits, err := artifact.Vectors.Search(context.Background(), []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, hits[0].Row)
}

func TestIndexService_RunPreprocessing_NoDocumentsIsNoop(t *testing.T) {
	f := newIndexFixture(testDoc("d1", "conv-1", "  \n "))

	result, err := f.svc.RunPreprocessing(context.Background(), "conv-1")

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, f.store.saves)
	assert.Zero(t, f.embedder.batchHits)

	_, err = f.store.Load(context.Background(), "conv-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexService_RunPreprocessing_NoChunksDropsIndex(t *testing.T) {
	f := newIndexFixture(testDoc("d1", "conv-1", "alpha\nbeta"))
	_, err := f.svc.RunPreprocessing(context.Background(), "conv-1")
	require.NoError(t, err)

	f.pipeline.drop = true
	result, err := f.svc.RunPreprocessing(context.Background(), "conv-1")

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, 1, f.store.saves)
	assert.Equal(t, 1, f.store.deletes)
	_, err = f.store.Load(context.Background(), "conv-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexService_RunPreprocessing_BuiltAtIsFetchTime(t *testing.T) {
	f := newIndexFixture(testDoc("d1", "conv-1", "alpha"))
	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	f.svc.now = func() time.Time {
		calls++
		return t0.Add(time.Duration(calls-1) * time.Minute)
	}

	_, err := f.svc.RunPreprocessing(context.Background(), "conv-1")
	require.NoError(t, err)

	artifact, err := f.store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, t0, artifact.Index.Manifest.BuiltAt)
}

func TestIndexService_RunPreprocessing_FailureKeepsPreviousIndex(t *testing.T) {
	tests := []struct {
		name   string
		breaks func(f *indexFixture)
		kind   error
	}{
		{
			name:   "embedding failure",
			breaks: func(f *indexFixture) { f.embedder.err = errors.New("timeout") },
			kind:   domain.ErrUpstream,
		},
		{
			name:   "short batch",
			breaks: func(f *indexFixture) { f.embedder.dropLast = true },
			kind:   domain.ErrUpstream,
		},
		{
			name:   "dimension mismatch",
			breaks: func(f *indexFixture) { f.embedder.vectors["beta"] = []float32{1, 0, 0} },
			kind:   domain.ErrDimensionMismatch,
		},
		{
			name:   "chunking failure",
			breaks: func(f *indexFixture) { f.pipeline.err = domain.ErrInvalidInput },
			kind:   domain.ErrInvalidInput,
		},
		{
			name:   "fetch failure",
			breaks: func(f *indexFixture) { f.docs.fetchErr = errors.New("db down") },
			kind:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIndexFixture(testDoc("d1", "conv-1", "alpha\nbeta"))
			first, err := f.svc.RunPreprocessing(context.Background(), "conv-1")
			require.NoError(t, err)

			tt.breaks(f)
			_, err = f.svc.RunPreprocessing(context.Background(), "conv-1")
			require.Error(t, err)
			if tt.kind != nil {
				assert.ErrorIs(t, err, tt.kind)
			}

			assert.Equal(t, 1, f.store.saves)
			artifact, err := f.store.Load(context.Background(), "conv-1")
			require.NoError(t, err)
			assert.Equal(t, first.Version, artifact.Index.Manifest.Version)
		})
	}
}

func TestIndexService_RunPreprocessing_Idempotent(t *testing.T) {
	f := newIndexFixture(testDoc("d1", "conv-1", "a\nb\nc\nd"))
	f.embedder.vectors["a"] = []float32{0.6, 0.8}
	f.embedder.vectors["b"] = []float32{0.8, 0.6}
	f.embedder.vectors["c"] = []float32{0, 1}
	f.embedder.vectors["d"] = []float32{1, 0}
	query := []float32{0.5, 0.5}

	_, err := f.svc.RunPreprocessing(context.Background(), "conv-1")
	require.NoError(t, err)
	first, err := f.store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	firstHits, err := first.Vectors.Search(context.Background(), query, 4)
	require.NoError(t, err)

	_, err = f.svc.RunPreprocessing(context.Background(), "conv-1")
	require.NoError(t, err)
	second, err := f.store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	secondHits, err := second.Vectors.Search(context.Background(), query, 4)
	require.NoError(t, err)

	assert.Equal(t, first.Index.Records, second.Index.Records)
	assert.Equal(t, firstHits, secondHits)
	assert.NotEqual(t, first.Index.Manifest.Version, second.Index.Manifest.Version)
}

func TestIndexService_RunPreprocessing_InvalidConversation(t *testing.T) {
	f := newIndexFixture()
	_, err := f.svc.RunPreprocessing(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexService_RunPreprocessing_Concurrent(t *testing.T) {
	f := newIndexFixture(testDoc("d1", "conv-1", "x\ny"), testDoc("d2", "conv-2", "z"))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		conv := "conv-1"
		if i%2 == 0 {
			conv = "conv-2"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RunPreprocessing(context.Background(), conv)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 16, f.store.saves)
	assert.Zero(t, f.svc.locks.size())
}

func TestIndexService_RunAll(t *testing.T) {
	f := newIndexFixture(
		testDoc("d1", "conv-1", "x"),
		testDoc("d2", "conv-2", "y\nz"),
	)

	results, err := f.svc.RunAll(context.Background())

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "conv-1", results[0].ConversationID)
	assert.Equal(t, 2, results[1].Chunks)
}

func TestIndexService_DropIndex(t *testing.T) {
	f := newIndexFixture(testDoc("d1", "conv-1", "x"))
	_, err := f.svc.RunPreprocessing(context.Background(), "conv-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.DropIndex(context.Background(), "conv-1"))
	_, err = f.store.Load(context.Background(), "conv-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, f.svc.DropIndex(context.Background(), "conv-1"))
}

func TestKeyedMutex_CancelledWait(t *testing.T) {
	k := newKeyedMutex()
	release, err := k.Acquire(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = k.Acquire(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)

	release()
	release()
	assert.Zero(t, k.size())
}
