package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"confluence/internal/domain"
	"confluence/internal/domain/models/chat"
)

// OpenAIProvider implements Provider against the OpenAI Chat Completions
// API. Any OpenAI-compatible endpoint works via a custom base URL.
type OpenAIProvider struct {
	client openai.Client
	logger *slog.Logger
}

// NewOpenAIProvider creates a provider for the given API key. baseURL is
// optional and overrides the default OpenAI endpoint.
func NewOpenAIProvider(apiKey, baseURL string, logger *slog.Logger) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		logger: logger,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request, fn func(Delta) error) (*Result, error) {
	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: convMessages(req),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	result := &Result{}
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			result.Usage = chat.Usage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
				TotalTokens:  chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		sel := chunk.Choices[0]
		if s := reasoningDelta(&sel.Delta); s != "" {
			if err := fn(Delta{Kind: DeltaReasoning, Text: s}); err != nil {
				return nil, err
			}
		}
		if s := sel.Delta.Content; s != "" {
			if err := fn(Delta{Kind: DeltaText, Text: s}); err != nil {
				return nil, err
			}
		}
		if sel.FinishReason != "" {
			result.FinishReason = sel.FinishReason
		}
	}
	if err := stream.Err(); err != nil {
		return nil, p.convError(err)
	}
	return result, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: convMessages(req),
	})
	if err != nil {
		return "", p.convError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// convMessages flattens the conversation into chat completion messages.
// Only text-bearing parts are forwarded; file and tool parts carry no
// provider-facing payload in this surface.
func convMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		text := chat.JoinText(msg.Parts)
		if text == "" {
			continue
		}
		switch msg.Role {
		case chat.RoleAssistant:
			out = append(out, openai.AssistantMessage(text))
		case chat.RoleSystem:
			out = append(out, openai.SystemMessage(text))
		default:
			out = append(out, openai.UserMessage(text))
		}
	}
	return out
}

// reasoningDelta extracts reasoning tokens from OpenAI-compatible
// endpoints. The field is not part of the official schema, so it only
// appears under ExtraFields ("reasoning_content" for DeepSeek-style
// APIs, "reasoning" for OpenRouter).
func reasoningDelta(delta *openai.ChatCompletionChunkChoiceDelta) string {
	for _, key := range []string{"reasoning_content", "reasoning"} {
		field, ok := delta.JSON.ExtraFields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal([]byte(field.Raw()), &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// convError maps upstream API failures onto the error taxonomy clients
// understand. Unrecognized failures surface as provider offline rather
// than leaking transport details.
func (p *OpenAIProvider) convError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		p.logger.Warn("provider request failed", "provider", "openai", "error", err)
		return domain.NewChatError(domain.CodeOffline, domain.SurfaceProvider, err.Error())
	}
	switch {
	case apiErr.StatusCode == 429 && strings.Contains(apiErr.Message, "quota"):
		return domain.NewChatError(domain.CodeBillingRequired, domain.SurfaceProvider, err.Error())
	case apiErr.StatusCode == 429:
		return domain.NewChatError(domain.CodeRateLimit, domain.SurfaceProvider, err.Error())
	case apiErr.StatusCode == 402:
		return domain.NewChatError(domain.CodeBillingRequired, domain.SurfaceProvider, err.Error())
	case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
		return domain.NewChatError(domain.CodeUnauthorized, domain.SurfaceProvider, err.Error())
	case apiErr.StatusCode >= 500:
		return domain.NewChatError(domain.CodeOffline, domain.SurfaceProvider, err.Error())
	default:
		return domain.NewChatError(domain.CodeBadRequest, domain.SurfaceProvider, err.Error())
	}
}
