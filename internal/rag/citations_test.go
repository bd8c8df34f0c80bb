package rag

import (
	"testing"

	"github.com/stretchr/testify/require"

	"docintel/internal/retrieve"
)

func TestExtractMarkersPreservesDuplicatesAndOrder(t *testing.T) {
	got := extractMarkers("Cats are mammals [1]. So are dogs [2][1].")
	require.Equal(t, []int{1, 2, 1}, got)
}

func TestValidateMarkersReportsOutOfRange(t *testing.T) {
	ok, violations := validateMarkers("See [1] and [5].", 2)
	require.False(t, ok)
	require.Len(t, violations, 1)
	require.Equal(t, 5, violations[0].Marker)
}

func TestValidateMarkersAllInRangeOK(t *testing.T) {
	ok, violations := validateMarkers("See [1] and [2].", 2)
	require.True(t, ok)
	require.Empty(t, violations)
}

func TestBindCitationsOnePerUniqueMarkerInFirstAppearanceOrder(t *testing.T) {
	sources := []retrieve.EnrichedResult{
		{ChunkID: 10, DocumentID: "d1", Filename: "a.txt", Page: 1, Content: "alpha"},
		{ChunkID: 11, DocumentID: "d2", Filename: "b.txt", Page: 2, Content: "beta"},
	}
	citations := bindCitations("First [2], then [1], then [2] again.", sources)
	require.Len(t, citations, 2)
	require.Equal(t, 2, citations[0].Marker)
	require.Equal(t, int64(11), citations[0].ChunkID)
	require.Equal(t, 1, citations[1].Marker)
	require.Equal(t, int64(10), citations[1].ChunkID)
}

func TestBindCitationsSkipsOutOfRangeMarkers(t *testing.T) {
	sources := []retrieve.EnrichedResult{
		{ChunkID: 10, DocumentID: "d1", Filename: "a.txt"},
	}
	citations := bindCitations("See [1] and [9].", sources)
	require.Len(t, citations, 1)
	require.Equal(t, 1, citations[0].Marker)
}
