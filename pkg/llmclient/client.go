// Package llmclient exposes the narrative engine's two LLM operations —
// free-text completion and schema-constrained structured completion — as a
// capability rather than a concrete vendor binding. Callers select a [types.Tier]
// and never see which [llm.Provider] backs it.
package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/playwright-engine/internal/jsonx"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

// ErrLLMCall is returned by Complete when the underlying provider call fails
// (network, auth, quota) after exhausting retries.
var ErrLLMCall = errors.New("llmclient: call failed")

// ErrLLMStructure is returned by CompleteStructured when no value could be
// recovered from the model's output after fallback parsing.
var ErrLLMStructure = errors.New("llmclient: could not recover structured value")

// maxRetries bounds the number of retry attempts on transient errors, per the
// idempotent-retry contract: every call may be retried up to this many times.
const maxRetries = 2

// Options carries the per-call knobs a caller may set. The zero value selects
// provider defaults.
type Options struct {
	// Temperature controls output randomness. Zero selects the provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero selects the provider default.
	MaxTokens int
}

// Client is the narrative engine's sole entry point into LLM generation. It
// holds one provider per tier and never exposes which concrete backend is
// behind either one.
type Client struct {
	strong llm.Provider
	fast   llm.Provider
	logger *slog.Logger
	clock  func() time.Time
}

// New constructs a Client backed by the given strong and fast tier providers.
// Both must be non-nil; a narrative engine with only one real backend should
// pass the same provider for both tiers.
func New(strong, fast llm.Provider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{strong: strong, fast: fast, logger: logger, clock: time.Now}
}

func (c *Client) providerFor(tier types.Tier) llm.Provider {
	if tier == types.TierFast {
		return c.fast
	}
	return c.strong
}

// Complete performs free-text completion on the given tier. It retries up to
// [maxRetries] additional times on errors returned by the provider, since every
// call is idempotent by contract.
func (c *Client) Complete(ctx context.Context, tier types.Tier, systemPrompt, userPrompt string, opts Options) (string, error) {
	provider := c.providerFor(tier)
	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []types.Message{{Role: "user", Content: userPrompt}},
		Temperature:  opts.Temperature,
		MaxTokens:    opts.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("llmclient: retrying completion", "tier", tier, "attempt", attempt, "cause", lastErr)
		}
		resp, err := provider.Complete(ctx, req)
		if err == nil {
			return resp.Content, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: %v", ErrLLMCall, lastErr)
}

// CompleteStructured performs schema-constrained completion, validating the
// recovered JSON against target by unmarshalling into it. schemaText is a
// human-readable description of the desired shape, injected into the prompt
// alongside the system and user prompts; it is not validated against target
// mechanically, since the engine has no JSON-schema validator wired in — the
// typed unmarshal into target IS the validation step.
//
// Strategy: set JSONMode on every request; if the reply as a whole is valid
// JSON it is unmarshalled directly, otherwise a JSON value is extracted
// tolerantly from whatever text comes back. ErrLLMStructure is returned only
// after every attempt has failed, in the call or in the parsing.
func (c *Client) CompleteStructured(ctx context.Context, tier types.Tier, systemPrompt, userPrompt, schemaText string, target any) error {
	provider := c.providerFor(tier)
	fullSystem := systemPrompt
	if schemaText != "" {
		fullSystem = systemPrompt + "\n\nRespond with JSON matching this shape:\n" + schemaText
	}
	req := llm.CompletionRequest{
		SystemPrompt: fullSystem,
		Messages:     []types.Message{{Role: "user", Content: userPrompt}},
		JSONMode:     true,
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("llmclient: retrying structured completion", "tier", tier, "attempt", attempt, "cause", lastErr)
		}
		resp, err := provider.Complete(ctx, req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if err := json.Unmarshal([]byte(resp.Content), target); err == nil {
			return nil
		}
		raw, extractErr := jsonx.Extract(resp.Content)
		if extractErr != nil {
			lastErr = extractErr
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrLLMStructure, lastErr)
}
