package store

import (
	"context"
	"fmt"
)

// InsertQueryLog appends a query log row. Query logs are never deleted or
// updated by the core.
func (s *Store) InsertQueryLog(ctx context.Context, q QueryLog) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO query_logs(id, user_id, query_text, requested_k, returned_count, elapsed_ms)
VALUES ($1,$2,$3,$4,$5,$6)
`, q.ID, q.UserID, q.QueryText, q.RequestedK, q.ReturnedCount, q.ElapsedMS)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}
