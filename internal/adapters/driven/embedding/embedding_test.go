package embedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/convorag/internal/core/domain"
)

// fakeProvider returns [len(text), 1] for every text and records request sizes.
type fakeProvider struct {
	mu       sync.Mutex
	requests []int
	embeds   int
	err      error
	short    bool
}

func (f *fakeProvider) vector(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, len(texts))
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vector(t)
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeProvider) Dimensions() int { return 2 }
func (f *fakeProvider) ModelName() string { return "fake" }
func (f *fakeProvider) Ping(_ context.Context) error { return nil }
func (f *fakeProvider) Close() error { return nil }

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestUnit(t *testing.T) {
	assert.InDelta(t, 1.0, norm(Unit([]float32{3, 4})), 1e-6)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, Unit([]float32{3, 4}), 1e-6)
	assert.Equal(t, []float32{0, 0}, Unit([]float32{0, 0}))

	in := []float32{2, 0}
	_ = Unit(in)
	assert.Equal(t, []float32{2, 0}, in, "input must not be modified")
}

func TestNormalize(t *testing.T) {
	s := Normalize(&fakeProvider{})

	v, err := s.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm(v), 1e-6)

	vectors, err := s.EmbedBatch(context.Background(), []string{"a", "abcdef"})
	require.NoError(t, err)
	for _, v := range vectors {
		assert.InDelta(t, 1.0, norm(v), 1e-6)
	}
}

func TestBatch(t *testing.T) {
	provider := &fakeProvider{}
	s := Batch(provider, 2)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := s.EmbedBatch(context.Background(), texts)

	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, provider.requests)
	require.Len(t, vectors, 5)
	for i, v := range vectors {
		assert.Equal(t, float32(len(texts[i])), v[0])
	}
}

func TestBatch_ShortResponse(t *testing.T) {
	s := Batch(&fakeProvider{short: true}, 2)
	_, err := s.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestBatch_Disabled(t *testing.T) {
	provider := &fakeProvider{}
	assert.Same(t, provider, Batch(provider, 0))
}

func TestRateLimit_Cancelled(t *testing.T) {
	provider := &fakeProvider{}
	s := RateLimit(provider, 0.001, 1)

	_, err := s.Embed(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Embed(ctx, "second")
	assert.Error(t, err)
	assert.Equal(t, 1, provider.embeds)
}

func TestRateLimit_Disabled(t *testing.T) {
	provider := &fakeProvider{}
	assert.Same(t, provider, RateLimit(provider, 0, 0))
}

func TestCache(t *testing.T) {
	provider := &fakeProvider{}
	s := Cache(provider, 8, time.Minute)

	first, err := s.Embed(context.Background(), "query")
	require.NoError(t, err)
	first[0] = 99

	second, err := s.Embed(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, float32(5), second[0], "cached value must not alias caller slices")
	assert.Equal(t, 1, provider.embeds)

	_, err = s.EmbedBatch(context.Background(), []string{"query"})
	require.NoError(t, err)
	_, err = s.EmbedBatch(context.Background(), []string{"query"})
	require.NoError(t, err)
	assert.Len(t, provider.requests, 2, "batches are never cached")
}

func TestCache_ErrorsNotCached(t *testing.T) {
	provider := &fakeProvider{err: errors.New("down")}
	s := Cache(provider, 8, time.Minute)

	_, err := s.Embed(context.Background(), "q")
	require.Error(t, err)

	provider.err = nil
	_, err = s.Embed(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.embeds)
}

func TestWrap(t *testing.T) {
	provider := &fakeProvider{}
	s := Wrap(provider, Options{BatchSize: 3, CacheSize: 4, CacheTTL: time.Minute})

	vectors, err := s.EmbedBatch(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, provider.requests)
	for _, v := range vectors {
		assert.InDelta(t, 1.0, norm(v), 1e-6)
	}
	assert.Equal(t, "fake", s.ModelName())
	assert.Equal(t, 2, s.Dimensions())
}
