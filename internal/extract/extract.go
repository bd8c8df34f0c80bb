// Package extract converts a raw document into ordered text segments ready
// for chunking. Extractors are registered by MIME type in a static registry
// built at startup and dispatched by name.
package extract

import (
	"context"
	"errors"
	"io"

	"docintel/internal/chunker"
)

// ErrUnsupportedType is returned when no Extractor is registered for a MIME
// type.
var ErrUnsupportedType = errors.New("extract: unsupported content type")

// Extractor turns raw document bytes into ordered segments.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) ([]chunker.Segment, error)
}

// Registry dispatches to an Extractor by MIME type.
type Registry struct {
	byType map[string]Extractor
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string]Extractor)}
}

// Register binds an Extractor to a MIME type, overwriting any prior binding.
func (r *Registry) Register(mimeType string, e Extractor) {
	r.byType[mimeType] = e
}

// For returns the Extractor registered for mimeType.
func (r *Registry) For(mimeType string) (Extractor, error) {
	e, ok := r.byType[mimeType]
	if !ok {
		return nil, ErrUnsupportedType
	}
	return e, nil
}
