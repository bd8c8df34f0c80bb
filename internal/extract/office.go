package extract

import (
	"context"
	"io"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"docintel/internal/chunker"
)

// OfficeExtractor converts office-exported HTML into plain markdown text,
// emitting a single segment on page 1.
type OfficeExtractor struct{}

func (OfficeExtractor) Extract(_ context.Context, r io.Reader) ([]chunker.Segment, error) {
	html, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	md, err := htmltomarkdown.ConvertString(string(html))
	if err != nil {
		return nil, err
	}
	if md == "" {
		return nil, nil
	}
	return []chunker.Segment{{Text: md, Page: 1}}, nil
}

var _ Extractor = OfficeExtractor{}
