// Command narrativeengine is the main entry point for the narrative engine
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/playwright-engine/internal/app"
	"github.com/MrWong99/playwright-engine/internal/config"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm/anthropic"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm/anyllm"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm/openai"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load a local .env into the process environment for local development.
	// Absence is not an error — deployments inject real env vars directly.
	_ = godotenv.Load()

	// ── CLI flags ──────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "narrativeengine: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "narrativeengine: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)
	slog.Info("narrative engine starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Provider registry ───────────────────────────────────────────────────
	registry := config.NewRegistry()
	registerBuiltinProviders(registry)

	// ── Application wiring ───────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, registry)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping...")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders registers every named LLM provider the narrative
// engine ships with. anyllm backs the providers without a first-party SDK in
// the dependency set (gemini, ollama, deepseek, mistral, groq); openai and
// anthropic use their own SDKs directly for the full capability surface.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("openai", func(e config.ProviderEntry) (llm.Provider, error) {
		opts := []openai.Option{}
		if e.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(e.BaseURL))
		}
		return openai.New(e.APIKey, e.Model, opts...)
	})

	reg.RegisterLLM("anthropic", func(e config.ProviderEntry) (llm.Provider, error) {
		opts := []anthropic.Option{}
		if e.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(e.BaseURL))
		}
		return anthropic.New(e.APIKey, e.Model, opts...)
	})

	reg.RegisterLLM("gemini", func(e config.ProviderEntry) (llm.Provider, error) {
		return anyllm.NewGemini(e.Model, anyllmOpts(e)...)
	})
	reg.RegisterLLM("ollama", func(e config.ProviderEntry) (llm.Provider, error) {
		return anyllm.NewOllama(e.Model, anyllmOpts(e)...)
	})
	reg.RegisterLLM("deepseek", func(e config.ProviderEntry) (llm.Provider, error) {
		return anyllm.NewDeepSeek(e.Model, anyllmOpts(e)...)
	})
	reg.RegisterLLM("mistral", func(e config.ProviderEntry) (llm.Provider, error) {
		return anyllm.NewMistral(e.Model, anyllmOpts(e)...)
	})
	reg.RegisterLLM("groq", func(e config.ProviderEntry) (llm.Provider, error) {
		return anyllm.NewGroq(e.Model, anyllmOpts(e)...)
	})
}

// anyllmOpts translates the common ProviderEntry fields into any-llm-go
// options shared across every anyllm-backed provider name.
func anyllmOpts(e config.ProviderEntry) []anyllmlib.Option {
	var opts []anyllmlib.Option
	if e.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
	}
	if e.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
	}
	return opts
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level types.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case types.LogLevelDebug:
		lvl = slog.LevelDebug
	case types.LogLevelWarn:
		lvl = slog.LevelWarn
	case types.LogLevelError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
