// Package openai adapts the OpenAI chat completions API to the llm.Generator
// interface. It is the default generation provider (generation_provider
// "openai"); the image extractor uses whichever provider is configured.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"docintel/internal/llm"
	"docintel/internal/logging"
)

// Client generates text via the OpenAI chat completions API.
type Client struct {
	sdk          openai.Client
	defaultModel string
}

// New constructs a Client. apiKey must be non-empty; baseURL may be empty to
// use the default OpenAI endpoint.
func New(apiKey, baseURL, defaultModel string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(apiKey))}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	if defaultModel == "" {
		defaultModel = openai.ChatModelGPT4oMini
	}
	return &Client{sdk: openai.NewClient(opts...), defaultModel: defaultModel}
}

func (c *Client) pickModel(model string) string {
	if strings.TrimSpace(model) == "" {
		return c.defaultModel
	}
	return model
}

func (c *Client) buildParams(req llm.Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			if len(m.Images) == 0 {
				messages = append(messages, openai.UserMessage(m.Content))
				continue
			}
			parts := []openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(m.Content),
			}
			for _, img := range m.Images {
				uri := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: uri}))
			}
			messages = append(messages, openai.UserMessage(parts))
		}
	}
	params := openai.ChatCompletionNewParams{
		Model:    c.pickModel(req.Model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// Generate performs a single, non-streaming generation call.
func (c *Client) Generate(ctx context.Context, req llm.Request) (llm.Answer, error) {
	params := c.buildParams(req)
	log := logging.FromContext(ctx)

	start := time.Now()
	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", params.Model).Dur("duration", dur).Msg("openai_generate_error")
		return llm.Answer{}, fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Answer{}, fmt.Errorf("openai generate: empty response")
	}

	log.Debug().Str("model", params.Model).Dur("duration", dur).
		Int("prompt_tokens", int(resp.Usage.PromptTokens)).
		Int("completion_tokens", int(resp.Usage.CompletionTokens)).
		Msg("openai_generate_ok")

	return llm.Answer{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// GenerateStream streams text deltas to h as they arrive.
func (c *Client) GenerateStream(ctx context.Context, req llm.Request, h llm.StreamHandler) error {
	params := c.buildParams(req)
	log := logging.FromContext(ctx)

	stream := c.sdk.Chat.Completions.NewStreaming(ctx, params)
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" && h != nil {
			h.OnDelta(delta)
		}
	}
	if err := stream.Err(); err != nil {
		log.Error().Err(err).Str("model", params.Model).Msg("openai_stream_error")
		return fmt.Errorf("openai stream: %w", err)
	}
	return nil
}

var _ llm.Generator = (*Client)(nil)
