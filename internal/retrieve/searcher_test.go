package retrieve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"docintel/internal/cache"
	"docintel/internal/lexical"
	"docintel/internal/store"
	"docintel/internal/vectorindex"
)

type fakeVector struct {
	results []vectorindex.Result
	err     error
}

func (f *fakeVector) Search(_ []float32, k int) ([]vectorindex.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

type fakeLexical struct {
	results []lexical.Result
	err     error
}

func (f *fakeLexical) Query(_ context.Context, _ string, k int, _ string) ([]lexical.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

type fakeStore struct {
	owners map[int64]string
	chunks map[int64]store.Chunk
	docs   map[string]store.Document
}

func (f *fakeStore) ChunkOwners(_ context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		out[id] = f.owners[id]
	}
	return out, nil
}

func (f *fakeStore) ChunksByIDs(_ context.Context, ids []int64) ([]store.Chunk, error) {
	var out []store.Chunk
	for _, id := range ids {
		if c, ok := f.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetDocument(_ context.Context, id string) (store.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return d, nil
}

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}
func (f *fakeEmbedder) Dimension() int { return f.dim }

func newFixture() (*Searcher, *fakeVector, *fakeLexical) {
	vec := &fakeVector{results: []vectorindex.Result{
		{ChunkID: 1, Distance: 0.1},
		{ChunkID: 2, Distance: 0.5},
	}}
	lex := &fakeLexical{results: []lexical.Result{
		{ChunkID: 2, Score: 0.8},
		{ChunkID: 3, Score: 0.2},
	}}
	st := &fakeStore{
		owners: map[int64]string{1: "user-1", 2: "user-1", 3: "user-1"},
		chunks: map[int64]store.Chunk{
			1: {ID: 1, DocumentID: "doc-1", Content: "alpha"},
			2: {ID: 2, DocumentID: "doc-1", Content: "beta"},
			3: {ID: 3, DocumentID: "doc-2", Content: "gamma"},
		},
		docs: map[string]store.Document{
			"doc-1": {ID: "doc-1", OriginalFilename: "a.pdf"},
			"doc-2": {ID: "doc-2", OriginalFilename: "b.pdf"},
		},
	}
	s := &Searcher{
		Vector:           vec,
		Lexical:          lex,
		Embedder:         &fakeEmbedder{dim: 3},
		Store:            st,
		Cache:            cache.NewMemory(),
		BranchMultiplier: 4,
		BranchCap:        100,
		QueryCacheTTL:    3600,
	}
	return s, vec, lex
}

func TestSearchHybridFusesAndEnriches(t *testing.T) {
	s, _, _ := newFixture()
	results, err := s.Search(context.Background(), "question", 3, ModeHybrid, 0.5, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		require.NotEmpty(t, r.Filename)
	}
}

func TestSearchVectorModeOnlyUsesVectorBranch(t *testing.T) {
	s, _, _ := newFixture()
	results, err := s.Search(context.Background(), "question", 2, ModeVector, 1.0, "user-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestSearchOwnerFilterExcludesOtherUsersChunks(t *testing.T) {
	s, vec, _ := newFixture()
	vec.results = append(vec.results, vectorindex.Result{ChunkID: 99, Distance: 0.01})
	s.Store.(*fakeStore).owners[99] = "someone-else"
	s.Store.(*fakeStore).chunks[99] = store.Chunk{ID: 99, DocumentID: "doc-x", Content: "other"}

	results, err := s.Search(context.Background(), "question", 5, ModeVector, 1.0, "user-1")
	require.NoError(t, err)
	for _, r := range results {
		require.NotEqual(t, int64(99), r.ChunkID)
	}
}

func TestSearchBothBranchesFailReturnsSearchUnavailable(t *testing.T) {
	s, vec, lex := newFixture()
	vec.err = context.DeadlineExceeded
	lex.err = context.DeadlineExceeded

	_, err := s.Search(context.Background(), "question", 3, ModeHybrid, 0.5, "user-1")
	require.ErrorIs(t, err, ErrSearchUnavailable)
}

func TestSearchOneBranchFailingStillReturnsResults(t *testing.T) {
	s, vec, _ := newFixture()
	vec.err = context.DeadlineExceeded

	results, err := s.Search(context.Background(), "question", 3, ModeHybrid, 0.5, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestSearchCachesResult(t *testing.T) {
	s, vec, _ := newFixture()
	first, err := s.Search(context.Background(), "question", 3, ModeHybrid, 0.5, "user-1")
	require.NoError(t, err)

	vec.results = nil // force a cache hit to matter
	second, err := s.Search(context.Background(), "question", 3, ModeHybrid, 0.5, "user-1")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestInvalidateUserEvictsCachedResults(t *testing.T) {
	s, _, _ := newFixture()
	_, err := s.Search(context.Background(), "question", 3, ModeHybrid, 0.5, "user-1")
	require.NoError(t, err)

	require.NoError(t, s.InvalidateUser(context.Background(), "user-1"))

	key := cacheKey("user-1", "question", 3, ModeHybrid, 0.5)
	_, ok := s.Cache.Get(context.Background(), key)
	require.False(t, ok)
}
