package embedding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// countingProvider stamps the call number into the vector so a test can tell
// a cached response from a fresh one.
type countingProvider struct {
	calls int
	err   error
}

func (p *countingProvider) Generate(text string, taskType string) (*EmbeddingResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &EmbeddingResponse{
		Embedding: EmbeddingResponseEmbedding{Values: []float32{float32(len([]rune(text))), float32(p.calls)}},
	}, nil
}

func TestCachedProviderReadThrough(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedProvider(inner)

	first, err := cached.Generate("心悸失眠", TaskQuery)
	assert.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, []float32{4, 1}, first.Embedding.Values)

	second, err := cached.Generate("心悸失眠", TaskQuery)
	assert.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "repeat of the same query must be served from cache")
	assert.Same(t, first, second)
}

func TestCachedProviderKeysByTaskType(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedProvider(inner)

	q, err := cached.Generate("心悸失眠", TaskQuery)
	assert.NoError(t, err)
	p, err := cached.Generate("心悸失眠", TaskPassage)
	assert.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "query and passage embeddings of one text are distinct entries")
	assert.NotEqual(t, q.Embedding.Values, p.Embedding.Values)
}

func TestCachedProviderKeysByText(t *testing.T) {
	inner := &countingProvider{}
	cached := NewCachedProvider(inner)

	_, err := cached.Generate("心悸失眠", TaskQuery)
	assert.NoError(t, err)
	_, err = cached.Generate("頭暈耳鳴", TaskQuery)
	assert.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedProviderDoesNotCacheErrors(t *testing.T) {
	inner := &countingProvider{err: errors.New("provider down")}
	cached := NewCachedProvider(inner)

	resp, err := cached.Generate("心悸失眠", TaskQuery)
	assert.Error(t, err)
	assert.Nil(t, resp)

	_, err = cached.Generate("心悸失眠", TaskQuery)
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls, "failures must reach the provider again, not a cached nil")

	// Once the provider recovers the entry is cached as usual.
	inner.err = nil
	recovered, err := cached.Generate("心悸失眠", TaskQuery)
	assert.NoError(t, err)
	assert.Equal(t, 3, inner.calls)

	again, err := cached.Generate("心悸失眠", TaskQuery)
	assert.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Same(t, recovered, again)
}
