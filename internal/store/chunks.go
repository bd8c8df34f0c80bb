package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// InsertChunks persists chunks in document order with embedding-present
// false, filling in the database-assigned id of each element in place.
// Runs inside a single transaction so a partial write is never observable.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("insert chunks: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
INSERT INTO chunks(document_id, idx, page_number, content, token_count, embedding_present, embedding_model)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id
`, c.DocumentID, c.Index, c.PageNumber, c.Content, c.TokenCount, c.EmbeddingPresent, c.EmbeddingModel)
	}
	br := tx.SendBatch(ctx, batch)
	for i := range chunks {
		if err := br.QueryRow().Scan(&chunks[i].ID); err != nil {
			_ = br.Close()
			if isUniqueViolation(err) {
				return fmt.Errorf("insert chunks: %w", ErrConflict)
			}
			return fmt.Errorf("insert chunks: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("insert chunks: commit: %w", err)
	}
	return nil
}

// SetChunkEmbedded marks a chunk as embedded under the given model tag.
func (s *Store) SetChunkEmbedded(ctx context.Context, chunkID int64, model string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE chunks SET embedding_present = true, embedding_model = $2 WHERE id = $1
`, chunkID, model)
	if err != nil {
		return fmt.Errorf("set chunk embedded: %w", err)
	}
	return nil
}

// ChunksByDocument returns a document's chunks in index order.
func (s *Store) ChunksByDocument(ctx context.Context, documentID string) ([]Chunk, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, document_id, idx, page_number, content, token_count, embedding_present, embedding_model
FROM chunks WHERE document_id = $1 ORDER BY idx ASC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("chunks by document: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ChunksByIDs returns chunks matching the given ids, in no particular order.
func (s *Store) ChunksByIDs(ctx context.Context, ids []int64) ([]Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, document_id, idx, page_number, content, token_count, embedding_present, embedding_model
FROM chunks WHERE id = ANY($1)
`, ids)
	if err != nil {
		return nil, fmt.Errorf("chunks by ids: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ChunkOwners returns the owning user id for each given chunk id, keyed by
// chunk id, used to post-hoc filter vector search results by ownership:
// the vector index has no notion of ownership, so the searcher resolves it
// here after retrieving raw sequence hits (see internal/retrieve).
func (s *Store) ChunkOwners(ctx context.Context, chunkIDs []int64) (map[int64]string, error) {
	if len(chunkIDs) == 0 {
		return map[int64]string{}, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT c.id, d.owner_id
FROM chunks c JOIN documents d ON d.id = c.document_id
WHERE c.id = ANY($1)
`, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("chunk owners: %w", err)
	}
	defer rows.Close()
	out := make(map[int64]string, len(chunkIDs))
	for rows.Next() {
		var id int64
		var owner string
		if err := rows.Scan(&id, &owner); err != nil {
			return nil, fmt.Errorf("chunk owners: %w", err)
		}
		out[id] = owner
	}
	return out, rows.Err()
}

// DeleteChunksByDocument removes all chunks of a document (used when
// re-submitting a previously failed document, ahead of a fresh ingest).
func (s *Store) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("delete chunks by document: %w", err)
	}
	return nil
}

func scanChunks(rows pgx.Rows) ([]Chunk, error) {
	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.PageNumber, &c.Content, &c.TokenCount, &c.EmbeddingPresent, &c.EmbeddingModel); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
