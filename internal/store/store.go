// Package store is the primary relational store: documents, chunks, and
// query logs, backed by Postgres via pgx/v5.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Lifecycle states for a Document, per the data model.
const (
	StatePending    = "pending"
	StateProcessing = "processing"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// ErrNotFound is returned when a lookup by id finds no row.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a unique constraint (document job id,
// document+index pair) would be violated.
var ErrConflict = errors.New("store: conflict")

// Document is a single uploaded file moving through the ingestion pipeline.
type Document struct {
	ID               string
	OwnerID          string
	OriginalFilename string
	StoredPath       string
	ByteSize         int64
	MIMEType         string
	State            string
	JobID            string
	ErrorMessage     string
	CreatedAt        time.Time
	ProcessedAt      *time.Time
}

// Chunk is one embedding/retrieval unit produced from a Document. ID is a
// dense int64 identifier so it can be written directly into the vector
// index's sidecar without a string/int64 translation table.
type Chunk struct {
	ID               int64
	DocumentID       string
	Index            int
	PageNumber       *int
	Content          string
	TokenCount       int
	EmbeddingPresent bool
	EmbeddingModel   string
}

// QueryLog is an append-only record of a served query.
type QueryLog struct {
	ID            string
	UserID        string
	QueryText     string
	RequestedK    int
	ReturnedCount int
	ElapsedMS     int64
	Timestamp     time.Time
}

// Store is the primary relational store used by every other component.
type Store struct {
	pool *pgxpool.Pool
}

// Open creates a Postgres connection pool with conservative defaults and
// applies the core schema. dsn must be a valid libpq connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := newPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Pool exposes the underlying connection pool for components (the lexical
// index) that run their own SQL against the same database.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func newPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS documents (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  original_filename TEXT NOT NULL,
  stored_path TEXT NOT NULL,
  byte_size BIGINT NOT NULL,
  mime_type TEXT NOT NULL,
  state TEXT NOT NULL,
  job_id TEXT NOT NULL,
  error_message TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  processed_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS documents_job_id_idx ON documents(job_id);
CREATE INDEX IF NOT EXISTS documents_owner_idx ON documents(owner_id);

CREATE TABLE IF NOT EXISTS chunks (
  id BIGSERIAL PRIMARY KEY,
  document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
  idx INT NOT NULL,
  page_number INT,
  content TEXT NOT NULL,
  token_count INT NOT NULL,
  embedding_present BOOLEAN NOT NULL DEFAULT false,
  embedding_model TEXT NOT NULL DEFAULT '',
  ts tsvector GENERATED ALWAYS AS (to_tsvector('english', coalesce(content, ''))) STORED
);
CREATE UNIQUE INDEX IF NOT EXISTS chunks_document_idx_idx ON chunks(document_id, idx);
CREATE INDEX IF NOT EXISTS chunks_ts_idx ON chunks USING GIN (ts);

CREATE TABLE IF NOT EXISTS query_logs (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  query_text TEXT NOT NULL,
  requested_k INT NOT NULL,
  returned_count INT NOT NULL,
  result_metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
  elapsed_ms BIGINT NOT NULL,
  ts TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}
