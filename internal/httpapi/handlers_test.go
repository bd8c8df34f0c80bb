package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"docintel/internal/llm"
	"docintel/internal/objectstore"
	"docintel/internal/queue"
	"docintel/internal/rag"
	"docintel/internal/retrieve"
	"docintel/internal/store"
)

type fakeSearcher struct {
	results []retrieve.EnrichedResult
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int, _ retrieve.Mode, _ float64, _ string) ([]retrieve.EnrichedResult, error) {
	return f.results, f.err
}

type fakeGenerator struct{ text string }

func (f *fakeGenerator) Generate(_ context.Context, _ llm.Request) (llm.Answer, error) {
	return llm.Answer{Content: f.text}, nil
}
func (f *fakeGenerator) GenerateStream(_ context.Context, _ llm.Request, h llm.StreamHandler) error {
	h.OnDelta(f.text)
	return nil
}

type fakeDocStore struct {
	created []store.Document
	docs    map[string]store.Document
}

func (f *fakeDocStore) CreateDocument(_ context.Context, d store.Document) error {
	f.created = append(f.created, d)
	if f.docs == nil {
		f.docs = map[string]store.Document{}
	}
	f.docs[d.ID] = d
	return nil
}

func (f *fakeDocStore) GetDocument(_ context.Context, id string) (store.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return d, nil
}

func (f *fakeDocStore) ChunksByDocument(_ context.Context, documentID string) ([]store.Chunk, error) {
	return nil, nil
}

type fakeQueue struct{ enqueued []queue.Job }

func (f *fakeQueue) Enqueue(_ context.Context, j queue.Job) error {
	f.enqueued = append(f.enqueued, j)
	return nil
}

func newTestHandlers(t *testing.T) (*Handlers, *fakeDocStore, *fakeQueue) {
	ds := &fakeDocStore{}
	q := &fakeQueue{}
	searcher := &fakeSearcher{results: []retrieve.EnrichedResult{
		{ChunkID: 1, DocumentID: "doc-1", Filename: "a.txt", Content: "answer content"},
	}}
	orch := rag.New(searcher, &fakeGenerator{text: "The answer is [1]."}, nil)
	h := &Handlers{
		Orchestrator: orch,
		Search:       searcher,
		Store:        ds,
		Queue:        q,
		Blobs:        objectstore.NewLocalStore(t.TempDir()),
		Defaults:     Defaults{Model: "gpt-4o-mini", Temperature: 0.3, MaxTokens: 1000},
	}
	return h, ds, q
}

func TestSubmitQueryReturnsAnswerWithCitations(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	srv := NewServer(h)

	body, _ := json.Marshal(map[string]any{"q": "what is the revenue?"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp rag.Answer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "The answer is [1].", resp.Text)
	require.Len(t, resp.Citations, 1)
}

func TestSubmitQueryMissingAuthIsUnauthorized(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	srv := NewServer(h)

	body, _ := json.Marshal(map[string]any{"q": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitQueryEmptyQIsBadRequest(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	srv := NewServer(h)

	body, _ := json.Marshal(map[string]any{"q": ""})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitQuerySearchUnavailableReturns503(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	h.Search.(*fakeSearcher).err = retrieve.ErrSearchUnavailable
	h.Orchestrator = rag.New(h.Search.(*fakeSearcher), &fakeGenerator{}, nil)
	srv := NewServer(h)

	body, _ := json.Marshal(map[string]any{"q": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRetrieveOnlyReturnsSourcesWithoutGeneration(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	srv := NewServer(h)

	body, _ := json.Marshal(map[string]any{"q": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 1, resp["result_count"])
}

func TestSubmitDocumentEnqueuesJob(t *testing.T) {
	h, ds, q := newTestHandlers(t)
	srv := NewServer(h)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "report.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(UserIDHeader, "user-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, ds.created, 1)
	require.Len(t, q.enqueued, 1)
	require.Equal(t, ds.created[0].ID, q.enqueued[0].DocumentID)
}

func TestGetDocumentNotFoundReturns404(t *testing.T) {
	h, _, _ := newTestHandlers(t)
	srv := NewServer(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
