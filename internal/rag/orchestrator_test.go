package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"docintel/internal/llm"
	"docintel/internal/retrieve"
	"docintel/internal/store"
)

type fakeSearcher struct {
	results []retrieve.EnrichedResult
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int, _ retrieve.Mode, _ float64, _ string) ([]retrieve.EnrichedResult, error) {
	return f.results, f.err
}

type fakeGenerator struct {
	answer      llm.Answer
	err         error
	streamText  string
	streamErr   error
}

func (f *fakeGenerator) Generate(_ context.Context, _ llm.Request) (llm.Answer, error) {
	return f.answer, f.err
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, _ llm.Request, h llm.StreamHandler) error {
	if f.streamText != "" {
		h.OnDelta(f.streamText)
	}
	return f.streamErr
}

type fakeLogger struct {
	inserted []store.QueryLog
}

func (f *fakeLogger) InsertQueryLog(_ context.Context, q store.QueryLog) error {
	f.inserted = append(f.inserted, q)
	return nil
}

func sampleSources() []retrieve.EnrichedResult {
	return []retrieve.EnrichedResult{
		{ChunkID: 1, DocumentID: "doc-1", Filename: "report.pdf", Page: 3, Content: "revenue grew 10%", Score: 0.9},
	}
}

func TestAnswerEmptySearchReturnsDeterministicRefusal(t *testing.T) {
	logger := &fakeLogger{}
	o := New(&fakeSearcher{}, &fakeGenerator{}, logger)

	resp, err := o.Answer(context.Background(), Params{Query: "what happened", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, noSourcesAnswer, resp.Text)
	require.Empty(t, resp.Citations)
	require.Len(t, logger.inserted, 1)
	require.Equal(t, 0, logger.inserted[0].ReturnedCount)
}

func TestAnswerBuildsCitationsFromGeneratedText(t *testing.T) {
	gen := &fakeGenerator{answer: llm.Answer{Content: "Revenue grew [1].", PromptTokens: 50, CompletionTokens: 5}}
	o := New(&fakeSearcher{results: sampleSources()}, gen, &fakeLogger{})

	resp, err := o.Answer(context.Background(), Params{Query: "revenue?", K: 5, UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, "Revenue grew [1].", resp.Text)
	require.Len(t, resp.Citations, 1)
	require.Equal(t, int64(1), resp.Citations[0].ChunkID)
	require.Equal(t, 55, resp.Usage.TotalTokens)
}

func TestAnswerSearchFailurePropagatesError(t *testing.T) {
	o := New(&fakeSearcher{err: retrieve.ErrSearchUnavailable}, &fakeGenerator{}, &fakeLogger{})

	_, err := o.Answer(context.Background(), Params{Query: "x", UserID: "u1"})
	require.ErrorIs(t, err, retrieve.ErrSearchUnavailable)
}

func TestAnswerStreamEmitsExpectedEventSequence(t *testing.T) {
	gen := &fakeGenerator{streamText: "Revenue grew [1]."}
	o := New(&fakeSearcher{results: sampleSources()}, gen, &fakeLogger{})

	var types []EventType
	err := o.AnswerStream(context.Background(), Params{Query: "revenue?", K: 5, UserID: "u1"}, func(e Event) {
		types = append(types, e.Type)
	})
	require.NoError(t, err)
	require.Equal(t, []EventType{
		EventStatus, EventSearchComplete, EventSources, EventAnswerChunk, EventCitations, EventDone,
	}, types)
}

func TestAnswerStreamEmptySearchStillEmitsAnswerAndDone(t *testing.T) {
	o := New(&fakeSearcher{}, &fakeGenerator{}, &fakeLogger{})

	var events []Event
	err := o.AnswerStream(context.Background(), Params{Query: "x", UserID: "u1"}, func(e Event) {
		events = append(events, e)
	})
	require.NoError(t, err)
	require.Equal(t, EventDone, events[len(events)-1].Type)
	require.Equal(t, EventCitations, events[len(events)-2].Type)
	require.Empty(t, events[len(events)-2].Citations)
}

func TestAnswerStreamGenerationErrorEmitsErrorEvent(t *testing.T) {
	gen := &fakeGenerator{streamErr: errors.New("llm unavailable")}
	o := New(&fakeSearcher{results: sampleSources()}, gen, &fakeLogger{})

	var types []EventType
	err := o.AnswerStream(context.Background(), Params{Query: "x", UserID: "u1"}, func(e Event) {
		types = append(types, e.Type)
	})
	require.NoError(t, err)
	require.Contains(t, types, EventError)
	require.NotContains(t, types, EventDone)
}

func TestAnswerStreamCancellationStillEmitsCitationsIfChunkSent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{
		streamText: "Partial [1]",
		streamErr:  context.Canceled,
	}
	logger := &fakeLogger{}
	o := New(&fakeSearcher{results: sampleSources()}, gen, logger)
	cancel()

	var types []EventType
	err := o.AnswerStream(ctx, Params{Query: "x", UserID: "u1"}, func(e Event) {
		types = append(types, e.Type)
	})
	require.NoError(t, err)
	require.Contains(t, types, EventCitations)
	require.NotContains(t, types, EventDone)
	require.Empty(t, logger.inserted)
}
