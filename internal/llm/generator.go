// Package llm defines the provider-neutral text generation abstraction used
// by the RAG orchestrator: a Generator produces an answer from a prompt,
// either as a single response or as a stream of incremental events.
package llm

import "context"

// Message is one turn in a generation request.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
	// Images attaches inline image payloads to a user message, for vision
	// model calls (the image extractor uses this to ask a vision-capable
	// Generator to transcribe a page image to text).
	Images []ImagePart
}

// ImagePart is an inline image attached to a Message.
type ImagePart struct {
	Data     []byte
	MIMEType string
}

// Request bundles the parameters needed to generate an answer.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Answer is the complete, non-streamed result of a generation call.
type Answer struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// StreamHandler receives incremental generation events. Implementations must
// not block for long periods; the caller delivers events as they arrive from
// the underlying provider connection.
type StreamHandler interface {
	OnDelta(content string)
	OnToolCall(name string, args []byte)
	OnImage(data []byte, mimeType string)
	OnThoughtSummary(summary string)
}

// Generator is implemented by each wired LLM provider (Anthropic, OpenAI).
type Generator interface {
	Generate(ctx context.Context, req Request) (Answer, error)
	GenerateStream(ctx context.Context, req Request, h StreamHandler) error
}

// NoopStreamHandler is a StreamHandler that discards every event; useful in
// tests that only care about the return error.
type NoopStreamHandler struct{}

func (NoopStreamHandler) OnDelta(string)          {}
func (NoopStreamHandler) OnToolCall(string, []byte) {}
func (NoopStreamHandler) OnImage([]byte, string)  {}
func (NoopStreamHandler) OnThoughtSummary(string) {}
