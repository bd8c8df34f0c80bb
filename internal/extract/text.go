package extract

import (
	"context"
	"io"

	"docintel/internal/chunker"
)

// TextExtractor passes plain text through unchanged as a single segment on
// page 1.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, r io.Reader) ([]chunker.Segment, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return []chunker.Segment{{Text: string(b), Page: 1}}, nil
}

var _ Extractor = TextExtractor{}
