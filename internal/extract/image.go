package extract

import (
	"context"
	"io"

	"docintel/internal/chunker"
	"docintel/internal/llm"
)

const imageTranscriptionPrompt = "Transcribe all readable text in this image exactly as it appears. Reply with the transcription only."

// ImageExtractor transcribes an image to text by routing it through a
// vision-capable Generator, the same boundary used for multimodal prompts
// elsewhere in this codebase.
type ImageExtractor struct {
	Generator llm.Generator
	Model     string
	MIMEType  string
}

func (e ImageExtractor) Extract(ctx context.Context, r io.Reader) ([]chunker.Segment, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	req := llm.Request{
		Model: e.Model,
		Messages: []llm.Message{
			{
				Role:    "user",
				Content: imageTranscriptionPrompt,
				Images:  []llm.ImagePart{{Data: data, MIMEType: e.MIMEType}},
			},
		},
	}
	answer, err := e.Generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if answer.Content == "" {
		return nil, nil
	}
	return []chunker.Segment{{Text: answer.Content, Page: 1}}, nil
}

var _ Extractor = ImageExtractor{}
