package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func repeatWords(n int, word string) string {
	words := make([]string, n)
	for i := range words {
		words[i] = word
	}
	return strings.Join(words, " ")
}

func TestChunkSingleShortSegmentProducesOneChunk(t *testing.T) {
	c := New(WhitespaceTokenizer{}, 50, 10, 5)
	chunks, err := c.Chunk([]Segment{{Text: "One sentence here. Another one follows.", Page: 1}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, 0, chunks[0].Index)
	require.Equal(t, 1, chunks[0].Page)
}

func TestChunkSplitsOnSentenceBoundariesWithOverlap(t *testing.T) {
	sentences := make([]string, 6)
	for i := range sentences {
		sentences[i] = repeatWords(10, "word") + "."
	}
	text := strings.Join(sentences, " ")

	c := New(WhitespaceTokenizer{}, 20, 5, 0)
	chunks, err := c.Chunk([]Segment{{Text: text, Page: 2}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		require.LessOrEqual(t, ch.TokenCount, 20)
		require.Equal(t, i, ch.Index)
		require.Equal(t, 2, ch.Page)
	}
}

func TestChunkOversizedSentenceIsWindowed(t *testing.T) {
	huge := repeatWords(100, "token") + "."
	c := New(WhitespaceTokenizer{}, 30, 5, 0)
	chunks, err := c.Chunk([]Segment{{Text: huge, Page: 1}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		require.LessOrEqual(t, ch.TokenCount, 30)
	}
}

func TestChunkGlobalIndexSpansSegments(t *testing.T) {
	c := New(WhitespaceTokenizer{}, 50, 5, 0)
	chunks, err := c.Chunk([]Segment{
		{Text: "First page sentence one. First page sentence two.", Page: 1},
		{Text: "Second page sentence one. Second page sentence two.", Page: 2},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Equal(t, 0, chunks[0].Index)
	require.Equal(t, 1, chunks[0].Page)
	require.Equal(t, 1, chunks[1].Index)
	require.Equal(t, 2, chunks[1].Page)
}

func TestChunkMergesSmallTailIntoPrevious(t *testing.T) {
	sentences := []string{
		repeatWords(18, "alpha") + ".",
		repeatWords(18, "beta") + ".",
		"short tail.",
	}
	text := strings.Join(sentences, " ")

	c := New(WhitespaceTokenizer{}, 20, 0, 10)
	chunks, err := c.Chunk([]Segment{{Text: text, Page: 1}})
	require.NoError(t, err)

	last := chunks[len(chunks)-1]
	require.True(t, strings.Contains(last.Text, "short tail"))
}

func TestChunkKeepsSoleSmallChunkForSegment(t *testing.T) {
	c := New(WhitespaceTokenizer{}, 50, 0, 100)
	chunks, err := c.Chunk([]Segment{{Text: "Tiny segment.", Page: 1}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestChunkEmptyExtractionFails(t *testing.T) {
	c := New(WhitespaceTokenizer{}, 50, 5, 0)
	_, err := c.Chunk([]Segment{{Text: "   ", Page: 1}})
	require.ErrorIs(t, err, ErrEmptyExtraction)
}

func TestChunkNoSegmentsFails(t *testing.T) {
	c := New(WhitespaceTokenizer{}, 50, 5, 0)
	_, err := c.Chunk(nil)
	require.ErrorIs(t, err, ErrEmptyExtraction)
}
