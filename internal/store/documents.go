package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// CreateDocument inserts a new Document in state pending.
func (s *Store) CreateDocument(ctx context.Context, d Document) error {
	d.State = StatePending
	_, err := s.pool.Exec(ctx, `
INSERT INTO documents(id, owner_id, original_filename, stored_path, byte_size, mime_type, state, job_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, d.ID, d.OwnerID, d.OriginalFilename, d.StoredPath, d.ByteSize, d.MIMEType, d.State, d.JobID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create document: %w", ErrConflict)
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetDocument loads a Document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, owner_id, original_filename, stored_path, byte_size, mime_type, state, job_id, error_message, created_at, processed_at
FROM documents WHERE id = $1
`, id)
	var d Document
	if err := row.Scan(&d.ID, &d.OwnerID, &d.OriginalFilename, &d.StoredPath, &d.ByteSize, &d.MIMEType, &d.State, &d.JobID, &d.ErrorMessage, &d.CreatedAt, &d.ProcessedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, fmt.Errorf("get document %s: %w", id, ErrNotFound)
		}
		return Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return d, nil
}

// SetDocumentState transitions a Document's lifecycle state, optionally
// recording an error message (failed) or clearing it (any other state).
func (s *Store) SetDocumentState(ctx context.Context, id, state, errMsg string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE documents SET state = $2, error_message = $3 WHERE id = $1
`, id, state, errMsg)
	if err != nil {
		return fmt.Errorf("set document state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set document state %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkDocumentCompleted transitions a Document to completed and stamps
// processed_at.
func (s *Store) MarkDocumentCompleted(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE documents SET state = $2, processed_at = now() WHERE id = $1
`, id, StateCompleted)
	if err != nil {
		return fmt.Errorf("mark document completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark document completed %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteDocument removes a Document and all its Chunks (cascade).
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "23505")
}
