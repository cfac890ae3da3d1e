package objectstore

import (
	"context"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convorag/internal/adapters/driven/storage/artifact"
	"github.com/custodia-labs/convorag/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
)

func newArtifact(t *testing.T, conversationID, version string, texts ...string) *driven.IndexArtifact {
	t.Helper()
	vectors := make([][]float32, len(texts))
	records := make([]domain.ChunkRecord, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{1, float32(i)}
		records[i] = domain.ChunkRecord{Position: i, DocumentID: "doc", Text: text}
	}
	idx, err := flat.Build(vectors)
	require.NoError(t, err)
	return &driven.IndexArtifact{
		Index: domain.ConversationIndex{
			Manifest: domain.IndexManifest{
				ConversationID: conversationID,
				Version:        version,
				Dimension:      2,
				Rows:           len(texts),
				BuiltAt:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			},
			Records: records,
		},
		Vectors: idx,
	}
}

func newLocalStore(t *testing.T) (*IndexStore, *LocalBucket) {
	t.Helper()
	bucket, err := NewLocalBucket(t.TempDir())
	require.NoError(t, err)
	return NewIndexStore(bucket, flat.NewFactory()), bucket
}

func versions(t *testing.T, bucket Bucket, conversationID string) []string {
	t.Helper()
	keys, err := bucket.List(context.Background(), conversationDir(conversationID)+"/")
	require.NoError(t, err)
	seen := map[string]bool{}
	var out []string
	for _, key := range keys {
		if path.Base(key) != artifact.ManifestName {
			continue
		}
		v := path.Base(path.Dir(key))
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func TestIndexStore_SaveLoad(t *testing.T) {
	store, _ := newLocalStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "conv/1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	want := newArtifact(t, "conv/1", "v1", "alpha", "beta")
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx, "conv/1")
	require.NoError(t, err)
	assert.Equal(t, want.Index, got.Index)
	assert.Equal(t, 2, got.Vectors.Len())

	m, err := store.Stat(ctx, "conv/1")
	require.NoError(t, err)
	assert.Equal(t, "v1", m.Version)
}

func TestIndexStore_KeepsPreviousVersionOnly(t *testing.T) {
	store, bucket := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newArtifact(t, "c1", "v1", "a")))
	require.NoError(t, store.Save(ctx, newArtifact(t, "c1", "v2", "b")))
	assert.Equal(t, []string{"v1", "v2"}, versions(t, bucket, "c1"))

	require.NoError(t, store.Save(ctx, newArtifact(t, "c1", "v3", "c")))
	assert.Equal(t, []string{"v2", "v3"}, versions(t, bucket, "c1"))

	got, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, got.Index.Texts())
}

func TestIndexStore_ListAndDelete(t *testing.T) {
	store, bucket := newLocalStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newArtifact(t, "b", "v1", "x")))
	require.NoError(t, store.Save(ctx, newArtifact(t, "a", "v1", "y")))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ConversationID)
	assert.Equal(t, "b", list[1].ConversationID)

	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Stat(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	keys, err := bucket.List(ctx, conversationDir("a")+"/")
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.NoDirExists(t, bucket.Root()+"/"+conversationDir("a"))

	list, err = store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestIndexStore_MissingPartIsCorrupt(t *testing.T) {
	store, bucket := newLocalStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newArtifact(t, "c1", "v1", "a")))

	require.NoError(t, bucket.Delete(ctx, path.Join(conversationDir("c1"), "v1", artifact.VectorsName)))

	_, err := store.Load(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexStore_CorruptPointer(t *testing.T) {
	store, bucket := newLocalStore(t)
	ctx := context.Background()
	require.NoError(t, bucket.Put(ctx, path.Join(conversationDir("c1"), currentName), []byte(" ")))

	_, err := store.Load(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
}

func TestIndexStore_RejectsBadVersion(t *testing.T) {
	store, _ := newLocalStore(t)
	for _, v := range []string{"", "a/b", currentName} {
		err := store.Save(context.Background(), newArtifact(t, "c1", v, "a"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput, v)
	}
}

func TestLocalBucket_RejectsEscapingKeys(t *testing.T) {
	bucket, err := NewLocalBucket(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", "../x", "/abs"} {
		assert.ErrorIs(t, bucket.Put(context.Background(), key, nil), domain.ErrInvalidInput, key)
	}
	_, err = NewLocalBucket("")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
