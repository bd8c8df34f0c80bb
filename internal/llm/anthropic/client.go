// Package anthropic adapts the Anthropic Messages API to the llm.Generator
// interface, including streaming text deltas through an llm.StreamHandler.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"docintel/internal/llm"
	"docintel/internal/logging"
)

const defaultMaxTokens int64 = 1024

// Client generates text via the Anthropic Messages API.
type Client struct {
	sdk          anthropicsdk.Client
	defaultModel string
}

// New constructs a Client. apiKey must be non-empty; baseURL may be empty to
// use the default Anthropic endpoint.
func New(apiKey, baseURL, defaultModel string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	if defaultModel == "" {
		defaultModel = string(anthropicsdk.ModelClaude3_7SonnetLatest)
	}
	return &Client{sdk: anthropicsdk.NewClient(opts...), defaultModel: defaultModel}
}

func (c *Client) pickModel(model string) string {
	if strings.TrimSpace(model) == "" {
		return c.defaultModel
	}
	return model
}

func (c *Client) buildParams(req llm.Request) anthropicsdk.MessageNewParams {
	var sys string
	converted := make([]anthropicsdk.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			sys = m.Content
		case "assistant":
			converted = append(converted, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		}
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.pickModel(req.Model)),
		Messages:  converted,
		MaxTokens: maxTokens,
	}
	if sys != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: sys}}
	}
	return params
}

// Generate performs a single, non-streaming generation call.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Answer, error) {
	params := c.buildParams(req)
	log := logging.FromContext(ctx)

	start := time.Now()
	resp, err := c.sdk.Messages.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", string(params.Model)).Dur("duration", dur).Msg("anthropic_generate_error")
		return llm.Answer{}, fmt.Errorf("anthropic generate: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropicsdk.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}

	log.Debug().Str("model", string(params.Model)).Dur("duration", dur).
		Int("prompt_tokens", int(resp.Usage.InputTokens)).
		Int("completion_tokens", int(resp.Usage.OutputTokens)).
		Msg("anthropic_generate_ok")

	return llm.Answer{
		Content:          content.String(),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// GenerateStream streams text deltas to h as they arrive, and returns once
// the stream is exhausted or an error occurs.
func (c *Client) GenerateStream(ctx context.Context, req llm.Request, h llm.StreamHandler) error {
	params := c.buildParams(req)
	log := logging.FromContext(ctx)

	stream := c.sdk.Messages.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropicsdk.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropicsdk.TextDelta); ok && delta.Text != "" && h != nil {
				h.OnDelta(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		log.Error().Err(err).Str("model", string(params.Model)).Msg("anthropic_stream_error")
		return fmt.Errorf("anthropic stream: %w", err)
	}
	return nil
}

var _ llm.Generator = (*Client)(nil)
