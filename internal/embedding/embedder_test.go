package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"docintel/internal/cache"
	"docintel/internal/config"
)

func newTestServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req embedReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResp{}
		for range req.Input {
			v := make([]float32, dim)
			for i := range v {
				v[i] = float32(i + calls)
			}
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: v})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	return srv
}

func TestEmbedReturnsOnePerInputInOrder(t *testing.T) {
	srv := newTestServer(t, 4)
	defer srv.Close()

	cfg := config.EmbeddingConfig{BaseURL: srv.URL, Path: "/embeddings", Model: "m", Dimension: 4, BatchSize: 10, Timeout: 5}
	cl := New(cfg, cache.NewMemory(), 3600)

	vectors, err := cl.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		require.Len(t, v, 4)
	}
}

func TestEmbedCachesRepeatedText(t *testing.T) {
	srv := newTestServer(t, 3)
	defer srv.Close()

	cfg := config.EmbeddingConfig{BaseURL: srv.URL, Path: "/embeddings", Model: "m", Dimension: 3, BatchSize: 10, Timeout: 5}
	mem := cache.NewMemory()
	cl := New(cfg, mem, 3600)

	first, err := cl.Embed(context.Background(), []string{"same text"})
	require.NoError(t, err)

	second, err := cl.Embed(context.Background(), []string{"same text"})
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEmbedBatchesAcrossBatchSize(t *testing.T) {
	srv := newTestServer(t, 2)
	defer srv.Close()

	cfg := config.EmbeddingConfig{BaseURL: srv.URL, Path: "/embeddings", Model: "m", Dimension: 2, BatchSize: 2, Timeout: 5}
	cl := New(cfg, nil, 3600)

	vectors, err := cl.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
}

func TestEmbedEmptyInputReturnsNil(t *testing.T) {
	cl := New(config.EmbeddingConfig{}, nil, 0)
	vectors, err := cl.Embed(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, vectors)
}

func TestEmbedErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	cfg := config.EmbeddingConfig{BaseURL: srv.URL, Path: "/embeddings", Model: "m", Dimension: 2, BatchSize: 10, Timeout: 5}
	cl := New(cfg, nil, 0)

	_, err := cl.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
}
