package extract

import (
	"bytes"
	"context"
	"io"

	"github.com/ledongthuc/pdf"

	"docintel/internal/chunker"
)

// PDFExtractor reads a PDF and emits one segment per page.
type PDFExtractor struct{}

func (PDFExtractor) Extract(_ context.Context, r io.Reader) ([]chunker.Segment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	segments := make([]chunker.Segment, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		if text == "" {
			continue
		}
		segments = append(segments, chunker.Segment{Text: text, Page: i})
	}
	return segments, nil
}

var _ Extractor = PDFExtractor{}
