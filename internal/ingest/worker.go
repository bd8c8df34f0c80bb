// Package ingest drives a pending Document through extraction, chunking,
// embedding, and persistence to the vector and lexical stores.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"docintel/internal/chunker"
	"docintel/internal/embedding"
	"docintel/internal/extract"
	"docintel/internal/logging"
	"docintel/internal/metrics"
	"docintel/internal/store"
	"docintel/internal/vectorindex"
)

// ErrExtractionFailed wraps any error an Extractor raised.
var ErrExtractionFailed = errors.New("ingest: extraction failed")

// Metric names recorded by Worker.Process. documentsTotal is labeled by
// mime_type and outcome (completed, failed); durationSeconds and
// chunksPerDoc are labeled by mime_type only. A no-op run (stale job, wrong
// state) records none of them.
const (
	metricDocumentsTotal  = "ingest_documents_total"
	metricDurationSeconds = "ingest_duration_seconds"
	metricChunksPerDoc    = "ingest_chunks_per_document"
)

// VectorAppender is the vector-index surface the worker needs. Satisfied by
// *vectorindex.Index.
type VectorAppender interface {
	Append(vectors [][]float32, chunkIDs []int64) ([]int64, error)
	Remove(chunkIDs []int64) error
	Save() error
}

// DocumentStore is the primary-store surface the worker needs.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (store.Document, error)
	SetDocumentState(ctx context.Context, id, state, errMsg string) error
	MarkDocumentCompleted(ctx context.Context, id string) error
	InsertChunks(ctx context.Context, chunks []store.Chunk) error
	SetChunkEmbedded(ctx context.Context, chunkID int64, model string) error
	ChunksByDocument(ctx context.Context, documentID string) ([]store.Chunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID string) error
}

// CacheInvalidator evicts a user's cached query results; satisfied by
// *retrieve.Searcher. Kept as a narrow interface so this package does not
// need to import the searcher.
type CacheInvalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
}

// Worker drives a single Document through the ingestion pipeline. The
// vectorMu mutex is shared across every Worker in a Pool so that step 8
// (saving the vector index) is serialized across the whole process, per
// the one-sidecar-write-at-a-time rule.
type Worker struct {
	Store      DocumentStore
	Extractors *extract.Registry
	Chunker    *chunker.Chunker
	Embedder   embedding.Embedder
	Vector     VectorAppender
	Cache      CacheInvalidator
	Metrics    metrics.Sink

	EmbedBatchSize int
	EmbeddingModel string

	vectorMu *sync.Mutex
}

// NewWorker builds a Worker sharing vectorMu with every other Worker in the
// same Pool.
func NewWorker(store DocumentStore, extractors *extract.Registry, c *chunker.Chunker, embedder embedding.Embedder, vec VectorAppender, cacheInvalidator CacheInvalidator, sink metrics.Sink, batchSize int, model string, vectorMu *sync.Mutex) *Worker {
	return &Worker{
		Store:          store,
		Extractors:     extractors,
		Chunker:        c,
		Embedder:       embedder,
		Vector:         vec,
		Cache:          cacheInvalidator,
		Metrics:        sink,
		EmbedBatchSize: batchSize,
		EmbeddingModel: model,
		vectorMu:       vectorMu,
	}
}

// Process runs the full per-job contract for one document. A no-op (stale
// state or mismatched job id) returns nil without side effects.
func (w *Worker) Process(ctx context.Context, documentID, jobID string) error {
	log := logging.FromContext(ctx).With().Str("document_id", documentID).Logger()

	doc, err := w.Store.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("ingest: load document: %w", err)
	}
	if doc.State != store.StatePending || doc.JobID != jobID {
		log.Debug().Msg("ingest_job_noop")
		return nil
	}

	started := time.Now()

	if err := w.clearPriorAttempt(ctx, doc); err != nil {
		return fmt.Errorf("ingest: clear prior attempt: %w", err)
	}

	if err := w.Store.SetDocumentState(ctx, doc.ID, store.StateProcessing, ""); err != nil {
		return fmt.Errorf("ingest: mark processing: %w", err)
	}

	if err := w.run(ctx, doc); err != nil {
		log.Warn().Err(err).Msg("ingest_job_failed")
		w.recordOutcome(doc.MIMEType, "failed", started)
		if w.Cache != nil {
			if invErr := w.Cache.InvalidateUser(ctx, doc.OwnerID); invErr != nil {
				log.Warn().Err(invErr).Msg("ingest_cache_invalidate_failed")
			}
		}
		if setErr := w.Store.SetDocumentState(ctx, doc.ID, store.StateFailed, err.Error()); setErr != nil {
			return fmt.Errorf("ingest: mark failed after %q: %w", err, setErr)
		}
		return nil
	}

	// Cache invalidation must happen-before the completed transition: a
	// reader that observes state == completed must never be able to hit a
	// cached search result computed before this document's chunks existed.
	if w.Cache != nil {
		if err := w.Cache.InvalidateUser(ctx, doc.OwnerID); err != nil {
			return fmt.Errorf("ingest: invalidate cache: %w", err)
		}
	}
	if err := w.Store.MarkDocumentCompleted(ctx, doc.ID); err != nil {
		return fmt.Errorf("ingest: mark completed: %w", err)
	}
	w.recordOutcome(doc.MIMEType, "completed", started)
	return nil
}

// recordOutcome emits the two metrics attached to every terminal Process
// outcome. Tests construct Worker with a nil Metrics, so this guards against
// a nil interface rather than relying on Sink's own nil-receiver handling.
func (w *Worker) recordOutcome(mimeType, outcome string, started time.Time) {
	if w.Metrics == nil {
		return
	}
	labels := map[string]string{"mime_type": mimeType, "outcome": outcome}
	w.Metrics.IncCounter(metricDocumentsTotal, labels)
	w.Metrics.ObserveHistogram(metricDurationSeconds, time.Since(started).Seconds(), map[string]string{"mime_type": mimeType})
}

// clearPriorAttempt removes any chunks and vector slots left behind by a
// previously failed run, so a re-submitted document starts clean.
func (w *Worker) clearPriorAttempt(ctx context.Context, doc store.Document) error {
	existing, err := w.Store.ChunksByDocument(ctx, doc.ID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}
	ids := make([]int64, len(existing))
	for i, c := range existing {
		ids[i] = c.ID
	}
	if err := w.Vector.Remove(ids); err != nil {
		return err
	}
	return w.Store.DeleteChunksByDocument(ctx, doc.ID)
}

// run executes steps 3 through 8 of the pipeline, returning an error (with
// no further side effects committed beyond what run itself rolls back) on
// any failure.
func (w *Worker) run(ctx context.Context, doc store.Document) error {
	segments, err := w.extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	chunks, err := w.Chunker.Chunk(segments)
	if err != nil {
		return err
	}

	storeChunks := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		var page *int
		if c.Page > 0 {
			p := c.Page
			page = &p
		}
		storeChunks[i] = store.Chunk{
			DocumentID: doc.ID,
			Index:      c.Index,
			PageNumber: page,
			Content:    c.Text,
			TokenCount: c.TokenCount,
		}
	}
	if err := w.Store.InsertChunks(ctx, storeChunks); err != nil {
		return err
	}
	if w.Metrics != nil {
		w.Metrics.ObserveHistogram(metricChunksPerDoc, float64(len(storeChunks)), map[string]string{"mime_type": doc.MIMEType})
	}

	if err := w.embedAndIndex(ctx, storeChunks); err != nil {
		_ = w.Store.DeleteChunksByDocument(ctx, doc.ID)
		return err
	}
	return nil
}

func (w *Worker) extract(ctx context.Context, doc store.Document) ([]chunker.Segment, error) {
	extractor, err := w.Extractors.For(doc.MIMEType)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(doc.StoredPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return extractor.Extract(ctx, io.Reader(f))
}

// embedAndIndex runs steps 6 through 8: batched embedding, vector-index
// append, chunk embedding-present updates, and the mutex-serialized save.
func (w *Worker) embedAndIndex(ctx context.Context, chunks []store.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batchSize := w.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Content
		}
		batch, err := w.Embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		vectors = append(vectors, batch...)
	}

	chunkIDs := make([]int64, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ID
	}

	if _, err := w.Vector.Append(vectors, chunkIDs); err != nil {
		return err
	}

	for _, c := range chunks {
		if err := w.Store.SetChunkEmbedded(ctx, c.ID, w.EmbeddingModel); err != nil {
			_ = w.Vector.Remove(chunkIDs)
			return err
		}
	}

	w.vectorMu.Lock()
	defer w.vectorMu.Unlock()
	if err := w.Vector.Save(); err != nil {
		_ = w.Vector.Remove(chunkIDs)
		return err
	}
	return nil
}
