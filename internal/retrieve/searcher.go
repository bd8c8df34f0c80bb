// Package retrieve implements the hybrid searcher: parallel vector and
// lexical branches fused by reciprocal rank, owner-filtered, cached.
package retrieve

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"docintel/internal/cache"
	"docintel/internal/embedding"
	"docintel/internal/lexical"
	"docintel/internal/logging"
	"docintel/internal/store"
	"docintel/internal/vectorindex"
)

// VectorSearcher is the vector-index surface the hybrid searcher needs.
// Satisfied by *vectorindex.Index.
type VectorSearcher interface {
	Search(query []float32, k int) ([]vectorindex.Result, error)
}

// LexicalSearcher is the lexical-index surface the hybrid searcher needs.
// Satisfied by *lexical.Index.
type LexicalSearcher interface {
	Query(ctx context.Context, text string, k int, ownerID string) ([]lexical.Result, error)
}

// ChunkStore is the primary-store surface used for owner resolution and
// result enrichment. Satisfied by *store.Store.
type ChunkStore interface {
	ChunkOwners(ctx context.Context, chunkIDs []int64) (map[int64]string, error)
	ChunksByIDs(ctx context.Context, ids []int64) ([]store.Chunk, error)
	GetDocument(ctx context.Context, id string) (store.Document, error)
}

// Mode selects which branch(es) the searcher consults.
type Mode string

const (
	ModeVector  Mode = "vector"
	ModeLexical Mode = "lexical"
	ModeHybrid  Mode = "hybrid"
)

// ErrSearchUnavailable is returned when every branch required by the
// requested mode failed.
var ErrSearchUnavailable = errors.New("retrieve: search unavailable")

// EnrichedResult is one ranked chunk enriched with document metadata.
type EnrichedResult struct {
	ChunkID    int64   `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"document_filename"`
	Page       int     `json:"page_number,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// Searcher composes the vector index, lexical index, embedding client,
// primary store, and result cache into the hybrid search algorithm.
type Searcher struct {
	Vector   VectorSearcher
	Lexical  LexicalSearcher
	Embedder embedding.Embedder
	Store    ChunkStore
	Cache    cache.Cache

	BranchMultiplier int
	BranchCap        int
	QueryCacheTTL    int // seconds
}

// Search runs the hybrid search algorithm and returns up to k enriched
// results for the user, consulting and populating the query-result cache.
func (s *Searcher) Search(ctx context.Context, query string, k int, mode Mode, alpha float64, userID string) ([]EnrichedResult, error) {
	log := logging.FromContext(ctx)

	key := cacheKey(userID, query, k, mode, alpha)
	if s.Cache != nil {
		if raw, ok := s.Cache.Get(ctx, key); ok {
			var cached []EnrichedResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	branchSize := branchK(k, s.BranchMultiplier, s.BranchCap)

	var vecResults []branchResult
	var lexResults []branchResult
	var vecErr, lexErr error

	g, gctx := errgroup.WithContext(ctx)
	if mode == ModeVector || mode == ModeHybrid {
		g.Go(func() error {
			vecResults, vecErr = s.searchVector(gctx, query, branchSize, userID)
			return nil
		})
	}
	if mode == ModeLexical || mode == ModeHybrid {
		g.Go(func() error {
			lexResults, lexErr = s.searchLexical(gctx, query, branchSize, userID)
			return nil
		})
	}
	_ = g.Wait()

	if vecErr != nil {
		log.Warn().Err(vecErr).Msg("vector_branch_failed")
	}
	if lexErr != nil {
		log.Warn().Err(lexErr).Msg("lexical_branch_failed")
	}
	if mode == ModeHybrid && vecErr != nil && lexErr != nil {
		return nil, ErrSearchUnavailable
	}
	if mode == ModeVector && vecErr != nil {
		return nil, ErrSearchUnavailable
	}
	if mode == ModeLexical && lexErr != nil {
		return nil, ErrSearchUnavailable
	}

	var fused []Fused
	switch mode {
	case ModeVector:
		fused = nativeOrder(vecResults)
	case ModeLexical:
		fused = nativeOrder(lexResults)
	default:
		fused = FuseRRF(vecResults, lexResults, alpha)
	}

	if len(fused) > k {
		fused = fused[:k]
	}

	results, err := s.enrich(ctx, fused)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if raw, err := json.Marshal(results); err == nil {
			if err := s.Cache.Set(ctx, key, raw, s.QueryCacheTTL); err != nil {
				log.Warn().Err(err).Msg("query_cache_set_failed")
			}
		}
	}
	return results, nil
}

func nativeOrder(br []branchResult) []Fused {
	out := make([]Fused, len(br))
	for i, r := range br {
		out[i] = Fused{ChunkID: r.ChunkID, Score: r.Score}
	}
	return out
}

func (s *Searcher) searchVector(ctx context.Context, query string, branchSize int, userID string) ([]branchResult, error) {
	vecs, err := s.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed query: no vector returned")
	}

	hits, err := s.Vector.Search(vecs[0], branchSize)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	owners, err := s.Store.ChunkOwners(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve chunk owners: %w", err)
	}

	out := make([]branchResult, 0, len(hits))
	for _, h := range hits {
		if owners[h.ChunkID] != userID {
			continue
		}
		similarity := 1.0 / (1.0 + float64(h.Distance))
		out = append(out, branchResult{ChunkID: strconv.FormatInt(h.ChunkID, 10), Score: similarity})
	}
	return out, nil
}

func (s *Searcher) searchLexical(ctx context.Context, query string, branchSize int, userID string) ([]branchResult, error) {
	hits, err := s.Lexical.Query(ctx, query, branchSize, userID)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	out := make([]branchResult, len(hits))
	for i, h := range hits {
		out[i] = branchResult{ChunkID: strconv.FormatInt(h.ChunkID, 10), Score: h.Score}
	}
	return out, nil
}

func (s *Searcher) enrich(ctx context.Context, fused []Fused) ([]EnrichedResult, error) {
	if len(fused) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(fused))
	scoreByID := make(map[int64]float64, len(fused))
	for i, f := range fused {
		id, err := strconv.ParseInt(f.ChunkID, 10, 64)
		if err != nil {
			continue
		}
		ids[i] = id
		scoreByID[id] = f.Score
	}

	chunks, err := s.Store.ChunksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("enrich: load chunks: %w", err)
	}

	docIDs := make(map[string]struct{})
	for _, c := range chunks {
		docIDs[c.DocumentID] = struct{}{}
	}
	filenames := make(map[string]string, len(docIDs))
	for id := range docIDs {
		doc, err := s.Store.GetDocument(ctx, id)
		if err != nil {
			continue
		}
		filenames[id] = doc.OriginalFilename
	}

	out := make([]EnrichedResult, 0, len(chunks))
	for _, c := range chunks {
		page := 0
		if c.PageNumber != nil {
			page = *c.PageNumber
		}
		out = append(out, EnrichedResult{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Filename:   filenames[c.DocumentID],
			Page:       page,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Score:      scoreByID[c.ID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// InvalidateUser evicts every cached query result for userID, called by the
// ingestion worker when it completes or fails a document for that user.
func (s *Searcher) InvalidateUser(ctx context.Context, userID string) error {
	if s.Cache == nil {
		return nil
	}
	return s.Cache.DelPrefix(ctx, "query:"+userID+":")
}

func cacheKey(userID, query string, k int, mode Mode, alpha float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s\x00%f", query, k, mode, alpha)))
	return fmt.Sprintf("query:%s:%x", userID, sum)
}
