// Package chunker turns extracted document text into ordered, overlapping
// chunks sized for embedding. Sentences are accumulated greedily up to a
// token budget; a sentence that alone exceeds the budget is split into
// overlapping token windows.
package chunker

import (
	"errors"
)

// ErrEmptyExtraction is returned when a document produced zero tokens across
// every segment, even though extraction itself did not fail.
var ErrEmptyExtraction = errors.New("chunker: extraction produced no tokens")

// Segment is one unit of extracted text carrying the 1-based page it came
// from. Page 0 means the segment has no page number (the audio extractor);
// the text, office and image extractors report page 1.
type Segment struct {
	Text string
	Page int
}

// Chunk is one emitted, ready-to-embed piece of a document.
type Chunk struct {
	Text       string
	Page       int
	Index      int // 0-based, assigned in document order across all segments
	TokenCount int
}

// Chunker splits segments into Chunks under a token budget.
type Chunker struct {
	tok          Tokenizer
	chunkSize    int
	chunkOverlap int
	minChunkSize int
}

// New builds a Chunker. chunkSize and chunkOverlap are token counts measured
// by tok; minChunkSize is the smallest tail chunk allowed before it is
// merged into its predecessor.
func New(tok Tokenizer, chunkSize, chunkOverlap, minChunkSize int) *Chunker {
	if tok == nil {
		tok = WhitespaceTokenizer{}
	}
	return &Chunker{
		tok:          tok,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		minChunkSize: minChunkSize,
	}
}

// Chunk splits every segment in order and assigns a global, document-wide
// index to each emitted chunk. It returns ErrEmptyExtraction if the combined
// token count across all segments is zero.
func (c *Chunker) Chunk(segments []Segment) ([]Chunk, error) {
	var all []Chunk
	globalIndex := 0
	totalTokens := 0

	for _, seg := range segments {
		segChunks := c.chunkSegment(seg)
		segChunks = c.mergeSmallTail(segChunks)
		for i := range segChunks {
			segChunks[i].Index = globalIndex
			globalIndex++
			totalTokens += segChunks[i].TokenCount
			all = append(all, segChunks[i])
		}
	}

	if totalTokens == 0 {
		return nil, ErrEmptyExtraction
	}
	return all, nil
}

// mergeSmallTail merges a final chunk smaller than minChunkSize into its
// predecessor, unless it is the only chunk produced for the segment.
func (c *Chunker) mergeSmallTail(chunks []Chunk) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	tail := chunks[len(chunks)-1]
	if tail.TokenCount >= c.minChunkSize {
		return chunks
	}
	prev := chunks[len(chunks)-2]
	merged := Chunk{
		Text:       prev.Text + " " + tail.Text,
		Page:       prev.Page,
		TokenCount: prev.TokenCount + tail.TokenCount,
	}
	return append(chunks[:len(chunks)-2], merged)
}

func (c *Chunker) chunkSegment(seg Segment) []Chunk {
	sentences := splitSentences(seg.Text)
	if len(sentences) == 0 {
		return nil
	}

	units := c.expandOversized(sentences)

	var result []Chunk
	var cur [][]string
	curCount := 0

	flush := func() {
		if curCount == 0 {
			return
		}
		result = append(result, c.makeChunk(cur, seg.Page))
	}

	for _, u := range units {
		if curCount > 0 && curCount+len(u) > c.chunkSize {
			flush()
			cur = overlapTail(cur, c.chunkOverlap)
			curCount = 0
			for _, t := range cur {
				curCount += len(t)
			}
			for len(cur) > 0 && curCount+len(u) > c.chunkSize {
				curCount -= len(cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, u)
		curCount += len(u)
	}
	flush()
	return result
}

// expandOversized tokenizes every sentence and splits any sentence whose
// token count exceeds chunkSize into overlapping windows, applying the same
// overlap budget used between chunks.
func (c *Chunker) expandOversized(sentences []string) [][]string {
	var units [][]string
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = c.chunkSize
	}
	for _, s := range sentences {
		toks := c.tok.Tokenize(s)
		if len(toks) == 0 {
			continue
		}
		if len(toks) <= c.chunkSize {
			units = append(units, toks)
			continue
		}
		for start := 0; start < len(toks); start += step {
			end := start + c.chunkSize
			if end > len(toks) {
				end = len(toks)
			}
			window := make([]string, end-start)
			copy(window, toks[start:end])
			units = append(units, window)
			if end == len(toks) {
				break
			}
		}
	}
	return units
}

// overlapTail returns the trailing whole units of cur whose combined token
// count is at least overlap, without splitting a unit across the boundary.
func overlapTail(cur [][]string, overlap int) [][]string {
	if overlap <= 0 {
		return nil
	}
	var out [][]string
	count := 0
	for i := len(cur) - 1; i >= 0 && count < overlap; i-- {
		out = append([][]string{cur[i]}, out...)
		count += len(cur[i])
	}
	return out
}

func (c *Chunker) makeChunk(units [][]string, page int) Chunk {
	var all []string
	for _, u := range units {
		all = append(all, u...)
	}
	return Chunk{
		Text:       c.tok.Detokenize(all),
		Page:       page,
		TokenCount: len(all),
	}
}
