// Package lexical implements full-text search over chunk content, ranked
// by Postgres's BM25-like ts_rank over a GIN-indexed tsvector column. The
// index is kept consistent with the chunks table by the primary store's
// normal write path; this package only queries it.
package lexical

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Result is one lexical search hit.
type Result struct {
	ChunkID int64
	Score   float64
}

// Index queries the chunks.ts GIN index for a relevance-ranked hit list.
type Index struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool; the chunks table and its tsvector column are
// created by the primary store's migration, not here.
func New(pool *pgxpool.Pool) *Index {
	return &Index{pool: pool}
}

// Query returns up to k chunks matching text, ordered by descending
// ts_rank, optionally restricted to chunks owned by ownerID (empty string
// means no owner filter — used only by tests and admin tooling, never by
// the hybrid searcher which always passes a concrete owner).
func (idx *Index) Query(ctx context.Context, text string, k int, ownerID string) ([]Result, error) {
	q := strings.TrimSpace(text)
	if q == "" || k <= 0 {
		return nil, nil
	}

	stmt := `
SELECT c.id, ts_rank(c.ts, websearch_to_tsquery('english', $1)) AS score
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE c.ts @@ websearch_to_tsquery('english', $1)
  AND ($3 = '' OR d.owner_id = $3)
ORDER BY score DESC
LIMIT $2
`
	rows, err := idx.pool.Query(ctx, stmt, q, k, ownerID)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	defer rows.Close()

	out := make([]Result, 0, k)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ChunkID, &r.Score); err != nil {
			return nil, fmt.Errorf("lexical query: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
