package retriever

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Patelhetu-177/AvatarAI/pkg/logger"
)

type fakeEmbeddings struct {
	calls int
	err   error
}

func (f *fakeEmbeddings) Embed(ctx context.Context, entityFileID, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type fakeIndex struct {
	filteredErr   error
	unfilteredErr error
	results       []Result

	filteredCalls   int
	unfilteredCalls int
}

func (f *fakeIndex) QuerySimilar(ctx context.Context, vector []float32, k int, entityScopeID string) ([]Result, error) {
	if entityScopeID != "" {
		f.filteredCalls++
		if f.filteredErr != nil {
			return nil, f.filteredErr
		}
	} else {
		f.unfilteredCalls++
		if f.unfilteredErr != nil {
			return nil, f.unfilteredErr
		}
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

func newTestRetriever(index VectorIndex, embeddings EmbeddingProvider) *Retriever {
	return New(Config{
		Index:      index,
		Embeddings: embeddings,
		Logger:     logger.NewLogger(logger.Config{Level: logger.DebugLevel, Output: io.Discard}),
	})
}

func TestSearchReturnsScopedResults(t *testing.T) {
	index := &fakeIndex{results: []Result{
		{Content: "passage one", Score: 0.9},
		{Content: "passage two", Score: 0.7},
	}}
	r := newTestRetriever(index, &fakeEmbeddings{})

	got := r.Search(context.Background(), "recent history", "companion1", 3)

	assert.Len(t, got, 2)
	assert.Equal(t, "passage one", got[0].Content)
	assert.Equal(t, 1, index.filteredCalls)
	assert.Zero(t, index.unfilteredCalls)
}

func TestSearchEmptyInputsSkipBackend(t *testing.T) {
	index := &fakeIndex{results: []Result{{Content: "x", Score: 1}}}
	embeddings := &fakeEmbeddings{}
	r := newTestRetriever(index, embeddings)

	assert.Nil(t, r.Search(context.Background(), "", "companion1", 3))
	assert.Nil(t, r.Search(context.Background(), "ctx", "", 3))
	assert.Zero(t, embeddings.calls)
	assert.Zero(t, index.filteredCalls)
	assert.Zero(t, index.unfilteredCalls)
}

func TestSearchFallsBackToUnfiltered(t *testing.T) {
	index := &fakeIndex{
		filteredErr: errors.New("filter unsupported"),
		results:     []Result{{Content: "fallback passage", Score: 0.8}},
	}
	r := newTestRetriever(index, &fakeEmbeddings{})

	got := r.Search(context.Background(), "recent history", "companion1", 3)

	assert.Len(t, got, 1)
	assert.Equal(t, "fallback passage", got[0].Content)
	assert.Equal(t, 1, index.filteredCalls)
	assert.Equal(t, 1, index.unfilteredCalls)
}

func TestSearchBothQueriesFailingYieldsEmpty(t *testing.T) {
	index := &fakeIndex{
		filteredErr:   errors.New("boom"),
		unfilteredErr: errors.New("boom again"),
	}
	r := newTestRetriever(index, &fakeEmbeddings{})

	got := r.Search(context.Background(), "recent history", "companion1", 3)
	assert.Empty(t, got)
}

func TestSearchEmbeddingFailureYieldsEmpty(t *testing.T) {
	index := &fakeIndex{results: []Result{{Content: "x", Score: 1}}}
	r := newTestRetriever(index, &fakeEmbeddings{err: errors.New("no provider")})

	got := r.Search(context.Background(), "recent history", "companion1", 3)
	assert.Empty(t, got)
	assert.Zero(t, index.filteredCalls)
}

func TestSearchDefaultK(t *testing.T) {
	index := &fakeIndex{results: []Result{
		{Content: "a", Score: 0.9},
		{Content: "b", Score: 0.8},
		{Content: "c", Score: 0.7},
		{Content: "d", Score: 0.6},
	}}
	r := newTestRetriever(index, &fakeEmbeddings{})

	got := r.Search(context.Background(), "recent history", "companion1", 0)
	assert.Len(t, got, DefaultK)
}
