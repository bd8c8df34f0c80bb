// Package objectstore abstracts the blob storage backing uploaded documents:
// a local on-disk tree by default, or S3 (and S3-compatible services) when
// configured, behind one narrow interface.
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("objectstore: not found")

// PutOptions configures a Put call.
type PutOptions struct {
	ContentType string
}

// Store stores and retrieves owner-scoped document blobs. Implementations
// must be safe for concurrent use.
type Store interface {
	// Put stores an object under key, fully consuming r, and returns a
	// backend-specific reference to it that the caller persists: the file
	// path for LocalStore, the prefixed object key for S3Store. Get and
	// Delete take the original key, not this reference.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (ref string, err error)

	// Get retrieves an object by key. The caller must close the returned
	// reader. Returns ErrNotFound if no object exists at key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object by key. It does not error if the object does
	// not exist.
	Delete(ctx context.Context, key string) error
}
