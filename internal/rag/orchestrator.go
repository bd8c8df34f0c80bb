// Package rag answers natural-language questions over a user's corpus by
// combining the hybrid searcher with an LLM client, binding the model's
// bracketed citations back to the retrieved sources.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"docintel/internal/llm"
	"docintel/internal/logging"
	"docintel/internal/retrieve"
	"docintel/internal/store"
)

const systemInstruction = `Answer the user's question using only the numbered sources provided below. Cite every factual claim with the bracketed index of the source it came from, like [1] or [2][3]. If the sources do not contain enough information to answer, say so explicitly rather than guessing.`

const noSourcesAnswer = "I could not find any relevant sources in your documents to answer this question."

// QueryLogger persists a served query. Satisfied by *store.Store.
type QueryLogger interface {
	InsertQueryLog(ctx context.Context, q store.QueryLog) error
}

// Searcher is the hybrid-search surface the orchestrator needs. Satisfied by
// *retrieve.Searcher.
type Searcher interface {
	Search(ctx context.Context, query string, k int, mode retrieve.Mode, alpha float64, userID string) ([]retrieve.EnrichedResult, error)
}

// Params bundles one answer request.
type Params struct {
	Query       string
	K           int
	Mode        retrieve.Mode
	Alpha       float64
	Model       string
	Temperature float64
	MaxTokens   int
	UserID      string
}

// Usage mirrors the token accounting an LLM call reports.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Answer is the complete, non-streamed response of one RAG request.
type Answer struct {
	QueryID          string                     `json:"query_id"`
	QueryText        string                     `json:"query_text"`
	Text             string                     `json:"answer"`
	Citations        []Citation                 `json:"citations"`
	Sources          []retrieve.EnrichedResult  `json:"sources"`
	Model            string                     `json:"model"`
	Usage            Usage                      `json:"usage"`
	ResponseTimeMS   int64                      `json:"response_time_ms"`
	SearchTimeMS     int64                      `json:"search_time_ms"`
	GenerationTimeMS int64                      `json:"generation_time_ms"`
}

// EventType names one event in an answer_stream sequence.
type EventType string

const (
	EventStatus         EventType = "status"
	EventSearchComplete EventType = "search_complete"
	EventSources        EventType = "sources"
	EventAnswerChunk    EventType = "answer_chunk"
	EventCitations      EventType = "citations"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// Event is one element of an answer_stream sequence. Only the fields
// relevant to Type are populated.
type Event struct {
	Type             EventType                 `json:"type"`
	Message          string                    `json:"message,omitempty"`
	SourcesFound     int                       `json:"sources_found,omitempty"`
	TimeMS           int64                     `json:"time_ms,omitempty"`
	Sources          []retrieve.EnrichedResult `json:"sources,omitempty"`
	Content          string                    `json:"content,omitempty"`
	Citations        []Citation                `json:"citations,omitempty"`
	QueryID          string                    `json:"query_id,omitempty"`
	ResponseTimeMS   int64                     `json:"response_time_ms,omitempty"`
	SearchTimeMS     int64                     `json:"search_time_ms,omitempty"`
	GenerationTimeMS int64                     `json:"generation_time_ms,omitempty"`
}

// Orchestrator implements the answer and answer_stream operations.
type Orchestrator struct {
	Search Searcher
	Gen    llm.Generator
	Logs   QueryLogger
}

// New builds an Orchestrator.
func New(search Searcher, gen llm.Generator, logs QueryLogger) *Orchestrator {
	return &Orchestrator{Search: search, Gen: gen, Logs: logs}
}

// Answer runs the full non-streaming algorithm: search, prompt assembly, LLM
// call, citation binding, query-log persistence.
func (o *Orchestrator) Answer(ctx context.Context, p Params) (Answer, error) {
	start := time.Now()
	queryID := uuid.NewString()

	searchStart := time.Now()
	sources, err := o.Search.Search(ctx, p.Query, p.K, p.Mode, p.Alpha, p.UserID)
	if err != nil {
		return Answer{}, fmt.Errorf("rag: search: %w", err)
	}
	searchElapsed := time.Since(searchStart)

	if len(sources) == 0 {
		resp := Answer{
			QueryID:        queryID,
			QueryText:      p.Query,
			Text:           noSourcesAnswer,
			Citations:      nil,
			Sources:        nil,
			Model:          p.Model,
			SearchTimeMS:   searchElapsed.Milliseconds(),
			ResponseTimeMS: time.Since(start).Milliseconds(),
		}
		o.logQuery(ctx, queryID, p, 0)
		return resp, nil
	}

	req := buildRequest(p, sources)

	genStart := time.Now()
	result, err := o.Gen.Generate(ctx, req)
	if err != nil {
		return Answer{}, fmt.Errorf("rag: generate: %w", err)
	}
	genElapsed := time.Since(genStart)

	citations := bindCitations(result.Content, sources)

	o.logQuery(ctx, queryID, p, len(sources))

	return Answer{
		QueryID:   queryID,
		QueryText: p.Query,
		Text:      result.Content,
		Citations: citations,
		Sources:   sources,
		Model:     p.Model,
		Usage: Usage{
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			TotalTokens:      result.PromptTokens + result.CompletionTokens,
		},
		ResponseTimeMS:   time.Since(start).Milliseconds(),
		SearchTimeMS:     searchElapsed.Milliseconds(),
		GenerationTimeMS: genElapsed.Milliseconds(),
	}, nil
}

// AnswerStream runs the same algorithm but emits events through emit as they
// become available, in the order status, search_complete, sources,
// answer_chunk*, citations, done. If ctx is cancelled mid-stream, the LLM
// call is aborted; a citations event is still emitted from whatever text was
// received if at least one answer_chunk was sent, and no query log is
// written.
func (o *Orchestrator) AnswerStream(ctx context.Context, p Params, emit func(Event)) error {
	log := logging.FromContext(ctx)
	start := time.Now()
	queryID := uuid.NewString()

	emit(Event{Type: EventStatus, Message: "searching your documents"})

	searchStart := time.Now()
	sources, err := o.Search.Search(ctx, p.Query, p.K, p.Mode, p.Alpha, p.UserID)
	searchElapsed := time.Since(searchStart)
	if err != nil {
		emit(Event{Type: EventError, Message: err.Error()})
		return nil
	}

	emit(Event{Type: EventSearchComplete, SourcesFound: len(sources), TimeMS: searchElapsed.Milliseconds()})
	emit(Event{Type: EventSources, Sources: sources})

	if len(sources) == 0 {
		emit(Event{Type: EventAnswerChunk, Content: noSourcesAnswer})
		emit(Event{Type: EventCitations, Citations: nil})
		o.logQuery(ctx, queryID, p, 0)
		emit(Event{
			Type:             EventDone,
			QueryID:          queryID,
			ResponseTimeMS:   time.Since(start).Milliseconds(),
			SearchTimeMS:     searchElapsed.Milliseconds(),
			GenerationTimeMS: 0,
		})
		return nil
	}

	req := buildRequest(p, sources)

	var sb strings.Builder
	sentAnyChunk := false
	handler := streamHandler{
		onDelta: func(content string) {
			if content == "" {
				return
			}
			sentAnyChunk = true
			sb.WriteString(content)
			emit(Event{Type: EventAnswerChunk, Content: content})
		},
	}

	genStart := time.Now()
	err = o.Gen.GenerateStream(ctx, req, handler)
	genElapsed := time.Since(genStart)

	if err != nil {
		if ctx.Err() != nil && sentAnyChunk {
			citations := bindCitations(sb.String(), sources)
			emit(Event{Type: EventCitations, Citations: citations})
			log.Warn().Msg("rag_stream_cancelled_with_partial_answer")
			return nil
		}
		emit(Event{Type: EventError, Message: err.Error()})
		return nil
	}

	citations := bindCitations(sb.String(), sources)
	emit(Event{Type: EventCitations, Citations: citations})

	o.logQuery(ctx, queryID, p, len(sources))
	emit(Event{
		Type:             EventDone,
		QueryID:          queryID,
		ResponseTimeMS:   time.Since(start).Milliseconds(),
		SearchTimeMS:     searchElapsed.Milliseconds(),
		GenerationTimeMS: genElapsed.Milliseconds(),
	})
	return nil
}

func (o *Orchestrator) logQuery(ctx context.Context, queryID string, p Params, returned int) {
	if ctx.Err() != nil {
		return
	}
	if o.Logs == nil {
		return
	}
	err := o.Logs.InsertQueryLog(ctx, store.QueryLog{
		ID:            queryID,
		UserID:        p.UserID,
		QueryText:     p.Query,
		RequestedK:    p.K,
		ReturnedCount: returned,
	})
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("query_log_insert_failed")
	}
}

func buildRequest(p Params, sources []retrieve.EnrichedResult) llm.Request {
	var sb strings.Builder
	sb.WriteString(p.Query)
	sb.WriteString("\n\n")
	for i, s := range sources {
		fmt.Fprintf(&sb, "[%d] (%s, page %d): %s\n", i+1, s.Filename, s.Page, s.Content)
	}
	return llm.Request{
		Model:       p.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
		Messages: []llm.Message{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: sb.String()},
		},
	}
}

// streamHandler adapts a single onDelta callback to the full
// llm.StreamHandler interface; the RAG path only cares about text deltas.
type streamHandler struct {
	onDelta func(string)
}

func (h streamHandler) OnDelta(content string)               { h.onDelta(content) }
func (h streamHandler) OnToolCall(name string, args []byte)   {}
func (h streamHandler) OnImage(data []byte, mimeType string)  {}
func (h streamHandler) OnThoughtSummary(summary string)       {}
