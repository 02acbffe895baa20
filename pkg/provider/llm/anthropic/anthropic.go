// Package anthropic provides an LLM provider backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/MrWong99/playwright-engine/pkg/provider/llm"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

// defaultMaxTokens is used when a request does not set MaxTokens: the
// Anthropic API requires a positive max_tokens on every call, unlike OpenAI
// where it is optional.
const defaultMaxTokens = 4096

// Provider implements llm.Provider using the Anthropic Messages API.
type Provider struct {
	client anthropic.Client
	model  string
}

// Option is a functional option for Provider.
type Option func(*config)

type config struct {
	baseURL string
}

// WithBaseURL overrides the default Anthropic API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// New constructs a new Anthropic LLM Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	client := anthropic.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build params: %w", err)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: messages.new: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text := block.Text; text != "" {
			sb.WriteString(text)
		}
	}

	return &llm.CompletionResponse{
		Content: sb.String(),
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build params: %w", err)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)

		for stream.Next() {
			event := stream.Current()
			delta := event.Delta
			if delta.Text == "" {
				continue
			}
			select {
			case ch <- llm.Chunk{Text: delta.Text}:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case ch <- llm.Chunk{FinishReason: "error", Text: err.Error()}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// CountTokens implements llm.Provider with a rough character-based estimate;
// the SDK's own token-counting endpoint is a separate network call this
// narrow interface has no room for.
func (p *Provider) CountTokens(messages []types.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
		total += 4
	}
	return total, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	caps := types.ModelCapabilities{
		SupportsToolCalling: true,
		SupportsStreaming:   true,
		SupportsJSONMode:    false, // Anthropic has no dedicated JSON mode; prompted instead.
		ContextWindow:       200_000,
		MaxOutputTokens:     8_192,
	}
	lower := strings.ToLower(p.model)
	if strings.Contains(lower, "haiku") {
		caps.MaxOutputTokens = 4_096
	}
	if strings.Contains(lower, "opus") {
		caps.MaxOutputTokens = 4_096
	}
	return caps
}

// buildParams converts a CompletionRequest into Anthropic SDK params.
func (p *Provider) buildParams(req llm.CompletionRequest) (anthropic.MessageNewParams, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
	}

	system := req.SystemPrompt
	if req.JSONMode {
		system = strings.TrimSpace(system + "\n\nRespond with a single valid JSON value and nothing else — no prose, no markdown fences.")
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Messages = append(params.Messages, msg)
	}

	for _, td := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        td.Name,
				Description: anthropic.String(td.Description),
			},
		})
	}

	return params, nil
}

// convertMessage converts a types.Message to an Anthropic SDK message param.
// Anthropic has no "system" role message (system prompt is a top-level
// field) and no dedicated "tool" role; tool results are user messages
// carrying a tool_result content block.
func convertMessage(m types.Message) (anthropic.MessageParam, error) {
	switch m.Role {
	case "user":
		return anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)), nil
	case "assistant":
		return anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)), nil
	case "tool":
		return anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)), nil
	default:
		return anthropic.MessageParam{}, fmt.Errorf("anthropic: unknown message role %q", m.Role)
	}
}
