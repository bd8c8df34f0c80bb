package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryDispatchesByMIMEType(t *testing.T) {
	reg := NewRegistry()
	reg.Register("text/plain", TextExtractor{})

	e, err := reg.For("text/plain")
	require.NoError(t, err)
	require.NotNil(t, e)

	_, err = reg.For("application/unknown")
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestTextExtractorPassesThroughAsSingleSegment(t *testing.T) {
	segs, err := TextExtractor{}.Extract(context.Background(), strings.NewReader("hello world"))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	require.Equal(t, "hello world", segs[0].Text)
	require.Equal(t, 1, segs[0].Page)
}

func TestOfficeExtractorConvertsHTMLToMarkdown(t *testing.T) {
	segs, err := OfficeExtractor{}.Extract(context.Background(), strings.NewReader("<h1>Title</h1><p>Body text</p>"))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	require.Contains(t, segs[0].Text, "Title")
	require.Contains(t, segs[0].Text, "Body text")
}
