package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"docintel/internal/logging"
	"docintel/internal/objectstore"
	"docintel/internal/queue"
	"docintel/internal/rag"
	"docintel/internal/retrieve"
	"docintel/internal/store"
)

const (
	maxQueryLength = 1000
	minK           = 1
	maxK           = 20
	defaultK       = 5
	minMaxTokens   = 100
	maxMaxTokens   = 4000
)

// DocumentStore is the primary-store surface the HTTP layer needs.
type DocumentStore interface {
	CreateDocument(ctx context.Context, d store.Document) error
	GetDocument(ctx context.Context, id string) (store.Document, error)
	ChunksByDocument(ctx context.Context, documentID string) ([]store.Chunk, error)
}

// Searcher is the retrieval-only surface the HTTP layer needs.
type Searcher interface {
	Search(ctx context.Context, query string, k int, mode retrieve.Mode, alpha float64, userID string) ([]retrieve.EnrichedResult, error)
}

// Defaults carries the configured request-parameter defaults.
type Defaults struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Handlers implements every route registered by Server.
type Handlers struct {
	Orchestrator *rag.Orchestrator
	Search       Searcher
	Store        DocumentStore
	Queue        queue.Producer
	Blobs        objectstore.Store
	Defaults     Defaults
}

type queryRequest struct {
	Q           string   `json:"q"`
	K           *int     `json:"k"`
	SearchType  string   `json:"search_type"`
	Alpha       *float64 `json:"alpha"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
}

// resolvedQuery is a queryRequest with every optional field defaulted and
// validated.
type resolvedQuery struct {
	Q           string
	K           int
	Mode        retrieve.Mode
	Alpha       float64
	Model       string
	Temperature float64
	MaxTokens   int
	UserID      string
}

func intOrDefault(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func floatOrDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var errMissingAuth = errors.New("missing authenticated user")

func (h *Handlers) parseQuery(c echo.Context) (resolvedQuery, error) {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return resolvedQuery{}, fmt.Errorf("bad request: %w", err)
	}

	searchType := req.SearchType
	if searchType == "" {
		searchType = "hybrid"
	}
	model := req.Model
	if model == "" {
		model = h.Defaults.Model
	}

	rq := resolvedQuery{
		Q:           req.Q,
		K:           intOrDefault(req.K, defaultK),
		Alpha:       floatOrDefault(req.Alpha, 0.5),
		Model:       model,
		Temperature: floatOrDefault(req.Temperature, h.Defaults.Temperature),
		MaxTokens:   intOrDefault(req.MaxTokens, h.Defaults.MaxTokens),
	}

	if n := utf8.RuneCountInString(rq.Q); n < 1 || n > maxQueryLength {
		return resolvedQuery{}, fmt.Errorf("q must be 1..%d characters", maxQueryLength)
	}
	if rq.K < minK || rq.K > maxK {
		return resolvedQuery{}, fmt.Errorf("k must be %d..%d", minK, maxK)
	}
	if rq.Alpha < 0 || rq.Alpha > 1 {
		return resolvedQuery{}, fmt.Errorf("alpha must be 0..1")
	}
	if rq.Temperature < 0 || rq.Temperature > 2 {
		return resolvedQuery{}, fmt.Errorf("temperature must be 0..2")
	}
	if rq.MaxTokens < minMaxTokens || rq.MaxTokens > maxMaxTokens {
		return resolvedQuery{}, fmt.Errorf("max_tokens must be %d..%d", minMaxTokens, maxMaxTokens)
	}

	mode, err := searchTypeToMode(searchType)
	if err != nil {
		return resolvedQuery{}, err
	}
	rq.Mode = mode

	userID := c.Request().Header.Get(UserIDHeader)
	if userID == "" {
		return resolvedQuery{}, errMissingAuth
	}
	rq.UserID = userID

	return rq, nil
}

func searchTypeToMode(s string) (retrieve.Mode, error) {
	switch s {
	case "vector":
		return retrieve.ModeVector, nil
	case "fulltext":
		return retrieve.ModeLexical, nil
	case "hybrid":
		return retrieve.ModeHybrid, nil
	default:
		return "", fmt.Errorf("search_type must be one of vector, fulltext, hybrid")
	}
}

// SubmitQuery handles the non-streaming question-answering endpoint.
func (h *Handlers) SubmitQuery(c echo.Context) error {
	req, err := h.parseQuery(c)
	if err != nil {
		return badRequest(c, err)
	}

	resp, err := h.Orchestrator.Answer(c.Request().Context(), rag.Params{
		Query:       req.Q,
		K:           req.K,
		Mode:        req.Mode,
		Alpha:       req.Alpha,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		UserID:      req.UserID,
	})
	if err != nil {
		return translateRAGError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// SubmitQueryStream handles the SSE-style streaming question-answering
// endpoint: each event is a JSON object on its own line, flushed as it is
// produced so a slow consumer applies back-pressure to the LLM stream rather
// than events being dropped.
func (h *Handlers) SubmitQueryStream(c echo.Context) error {
	req, err := h.parseQuery(c)
	if err != nil {
		return badRequest(c, err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	resp.WriteHeader(http.StatusOK)
	flusher, _ := resp.Writer.(http.Flusher)

	emit := func(e rag.Event) {
		data, err := json.Marshal(e)
		if err != nil {
			return
		}
		_, _ = resp.Write(append(data, '\n'))
		if flusher != nil {
			flusher.Flush()
		}
	}

	err = h.Orchestrator.AnswerStream(c.Request().Context(), rag.Params{
		Query:       req.Q,
		K:           req.K,
		Mode:        req.Mode,
		Alpha:       req.Alpha,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		UserID:      req.UserID,
	}, emit)
	if err != nil {
		emit(rag.Event{Type: rag.EventError, Message: err.Error()})
	}
	return nil
}

// RetrieveOnly runs the hybrid searcher without generation.
func (h *Handlers) RetrieveOnly(c echo.Context) error {
	req, err := h.parseQuery(c)
	if err != nil {
		return badRequest(c, err)
	}

	results, err := h.Search.Search(c.Request().Context(), req.Q, req.K, req.Mode, req.Alpha, req.UserID)
	if err != nil {
		return translateRAGError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"query_id":     uuid.NewString(),
		"query_text":   req.Q,
		"results":      results,
		"result_count": len(results),
	})
}

// SubmitDocument accepts a multipart file upload, writes it to owner-scoped
// storage, creates the Document row, and enqueues an ingestion job.
func (h *Handlers) SubmitDocument(c echo.Context) error {
	userID := c.Request().Header.Get(UserIDHeader)
	if userID == "" {
		return badRequest(c, errMissingAuth)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, fmt.Errorf("missing file: %w", err))
	}

	documentID := uuid.NewString()
	jobID := uuid.NewString()

	src, err := fileHeader.Open()
	if err != nil {
		return internalError(c, err)
	}
	defer src.Close()

	mimeType := fileHeader.Header.Get(echo.HeaderContentType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	key := path.Join(userID, documentID+path.Ext(fileHeader.Filename))
	ref, err := h.Blobs.Put(c.Request().Context(), key, src, objectstore.PutOptions{ContentType: mimeType})
	if err != nil {
		return internalError(c, err)
	}

	doc := store.Document{
		ID:               documentID,
		OwnerID:          userID,
		OriginalFilename: fileHeader.Filename,
		StoredPath:       ref,
		ByteSize:         fileHeader.Size,
		MIMEType:         mimeType,
		JobID:            jobID,
	}
	if err := h.Store.CreateDocument(c.Request().Context(), doc); err != nil {
		return internalError(c, err)
	}

	if err := h.Queue.Enqueue(c.Request().Context(), queue.Job{DocumentID: documentID, JobID: jobID}); err != nil {
		logging.FromContext(c.Request().Context()).Error().Err(err).Msg("enqueue_ingestion_job_failed")
		return internalError(c, err)
	}

	return c.JSON(http.StatusAccepted, map[string]any{
		"job_id":      jobID,
		"document_id": documentID,
		"status":      store.StatePending,
	})
}

// GetDocument returns a Document's lifecycle record.
func (h *Handlers) GetDocument(c echo.Context) error {
	id := c.Param("id")
	doc, err := h.Store.GetDocument(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "not_found", Message: "document not found"})
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

// GetDocumentChunks returns a Document's chunks in index order.
func (h *Handlers) GetDocumentChunks(c echo.Context) error {
	id := c.Param("id")
	chunks, err := h.Store.ChunksByDocument(c.Request().Context(), id)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"document_id": id, "chunks": chunks})
}

func badRequest(c echo.Context, err error) error {
	if errors.Is(err, errMissingAuth) {
		return c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: err.Error()})
	}
	return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()})
}

func internalError(c echo.Context, err error) error {
	logging.FromContext(c.Request().Context()).Error().Err(err).Msg("http_handler_error")
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal error"})
}

func translateRAGError(c echo.Context, err error) error {
	if errors.Is(err, retrieve.ErrSearchUnavailable) {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "search_unavailable", Message: err.Error()})
	}
	return c.JSON(http.StatusBadGateway, errorResponse{Error: "llm_unavailable", Message: err.Error()})
}
