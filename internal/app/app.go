// Package app wires all narrative engine subsystems into a running
// application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run starts the HTTP/SSE server and blocks, and Shutdown tears
// everything down in order.
//
// For testing, inject test doubles via functional options (WithWorldStore,
// WithAuditSink, etc.). When an option is not provided, New creates a real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/playwright-engine/internal/act"
	"github.com/MrWong99/playwright-engine/internal/audit"
	"github.com/MrWong99/playwright-engine/internal/beat"
	"github.com/MrWong99/playwright-engine/internal/character"
	"github.com/MrWong99/playwright-engine/internal/conductor"
	"github.com/MrWong99/playwright-engine/internal/config"
	"github.com/MrWong99/playwright-engine/internal/dice"
	"github.com/MrWong99/playwright-engine/internal/director"
	"github.com/MrWong99/playwright-engine/internal/events"
	"github.com/MrWong99/playwright-engine/internal/health"
	"github.com/MrWong99/playwright-engine/internal/httpapi"
	"github.com/MrWong99/playwright-engine/internal/observe"
	"github.com/MrWong99/playwright-engine/internal/progress"
	"github.com/MrWong99/playwright-engine/internal/promptregistry"
	"github.com/MrWong99/playwright-engine/internal/resilience"
	"github.com/MrWong99/playwright-engine/internal/scene"
	"github.com/MrWong99/playwright-engine/internal/seeding"
	"github.com/MrWong99/playwright-engine/internal/trope"
	"github.com/MrWong99/playwright-engine/internal/worldinit"
	"github.com/MrWong99/playwright-engine/internal/worldstore"
	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

// App owns every subsystem's lifetime and serves the narrative engine's
// HTTP/SSE surface.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	logger   *slog.Logger

	prompts *promptregistry.Registry
	corpus  *trope.Corpus
	store   *worldstore.Store
	sink    audit.Sink
	bus     progress.Bus

	conductor *conductor.Conductor
	director  *director.Director
	worldInit *worldinit.Engine

	api    *httpapi.Handler
	health *health.Handler

	metrics      *observe.Metrics
	otelShutdown func(context.Context) error
	publisher    *events.KafkaPublisher
	server       *http.Server

	// closers are appended as subsystems initialise and run in reverse order
	// during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithWorldStore injects a world store instead of creating one from config.
func WithWorldStore(s *worldstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithAuditSink injects an audit sink instead of creating one from config.
func WithAuditSink(s audit.Sink) Option {
	return func(a *App) { a.sink = s }
}

// WithProgressBus injects a progress bus instead of creating one from config.
func WithProgressBus(b progress.Bus) Option {
	return func(a *App) { a.bus = b }
}

// WithPromptRegistry injects a prompt registry instead of loading one from
// config.Story.PromptDir.
func WithPromptRegistry(r *promptregistry.Registry) Option {
	return func(a *App) { a.prompts = r }
}

// WithTropeCorpus injects a trope corpus instead of loading one from
// config.Story.TropeCorpusPath.
func WithTropeCorpus(c *trope.Corpus) Option {
	return func(a *App) { a.corpus = c }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. registry resolves
// named LLM providers (populated by main.go via RegisterLLM). Use Option
// functions to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: trope corpus loading,
// prompt registry construction, LLM provider resolution, audit sink and
// progress bus setup, and assembly of the seeding -> character -> worldinit
// -> dice -> beat -> scene -> act -> conductor -> director pipeline.
func New(ctx context.Context, cfg *config.Config, registry *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, registry: registry}
	for _, o := range opts {
		o(a)
	}
	a.logger = newLogger(cfg.Server.LogLevel)

	if err := a.initObservability(ctx); err != nil {
		return nil, fmt.Errorf("app: init observability: %w", err)
	}

	if a.prompts == nil {
		a.prompts = promptregistry.New(cfg.Story.PromptDir)
	}
	if a.corpus == nil {
		corpus, err := trope.LoadCSV(cfg.Story.TropeCorpusPath)
		if err != nil {
			return nil, fmt.Errorf("app: load trope corpus: %w", err)
		}
		a.corpus = corpus
	}

	strongLLM, fastLLM, err := a.initLLMProviders()
	if err != nil {
		return nil, fmt.Errorf("app: init llm providers: %w", err)
	}
	client := llmclient.New(strongLLM, fastLLM, a.logger)

	if a.sink == nil {
		a.sink = a.initAuditSink(ctx)
	}
	if a.bus == nil {
		bus, err := a.initProgressBus()
		if err != nil {
			return nil, fmt.Errorf("app: init progress bus: %w", err)
		}
		a.bus = bus
	}
	if a.store == nil {
		a.store = worldstore.New()
	}

	a.initPipeline(client)
	a.initEventPublisher()

	if a.health == nil {
		a.health = health.New(a.healthCheckers()...)
	}

	a.api = httpapi.New(a.store, a.worldInit, a.conductor, a.director, a.bus, a.logger)
	if a.publisher != nil {
		a.api.SetEventPublisher(a.publisher)
	}

	a.server = &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: a.buildMux(),
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initObservability sets up the OTel tracer/metrics provider and records the
// shutdown hook.
func (a *App) initObservability(ctx context.Context) error {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "narrative-engine",
		ServiceVersion: "dev",
	})
	if err != nil {
		return err
	}
	a.otelShutdown = shutdown
	a.metrics = observe.DefaultMetrics()
	return nil
}

// initLLMProviders resolves the strong and fast LLM providers from the
// registry, wrapping each in a circuit breaker via resilience.LLMFallback so
// a single flaky provider degrades to open-circuit fast-fail instead of
// hanging every call. No secondary providers are registered as fallbacks:
// the config schema names exactly one provider per tier.
func (a *App) initLLMProviders() (strong, fast llm.Provider, err error) {
	strongRaw, err := a.registry.CreateLLM(a.cfg.LLM.Strong)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve llm.strong (%q): %w", a.cfg.LLM.Strong.Name, err)
	}
	fastRaw, err := a.registry.CreateLLM(a.cfg.LLM.Fast)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve llm.fast (%q): %w", a.cfg.LLM.Fast.Name, err)
	}

	strong = resilience.NewLLMFallback(strongRaw, a.cfg.LLM.Strong.Name, resilience.FallbackConfig{})
	fast = resilience.NewLLMFallback(fastRaw, a.cfg.LLM.Fast.Name, resilience.FallbackConfig{})
	return strong, fast, nil
}

// initAuditSink builds the configured audit.Sink. A failed Postgres
// connection is logged and degrades to NoopSink rather than failing
// startup: the audit log is a side-channel, never load-bearing.
func (a *App) initAuditSink(ctx context.Context) audit.Sink {
	dsn := a.cfg.Memory.AuditPostgresDSN
	if dsn == "" {
		return audit.NoopSink{}
	}
	sink, err := audit.NewPostgresSink(ctx, dsn)
	if err != nil {
		a.logger.Warn("audit: postgres sink unavailable, falling back to no-op", "err", err)
		return audit.NoopSink{}
	}
	a.closers = append(a.closers, func() error {
		sink.Close()
		return nil
	})
	return sink
}

// initProgressBus builds the configured progress.Bus. Redis-backed when
// cfg.Events.RedisAddr is set, so multiple engine replicas can serve SSE
// connections for the same world; otherwise a single-process ChannelBus.
func (a *App) initProgressBus() (progress.Bus, error) {
	addr := a.cfg.Events.RedisAddr
	if addr == "" {
		return progress.NewChannelBus(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	a.closers = append(a.closers, client.Close)
	return progress.NewRedisBus(client, a.logger), nil
}

// initPipeline assembles the seeding -> character -> worldinit ->
// dice -> beat -> scene -> act -> conductor -> director chain.
func (a *App) initPipeline(client *llmclient.Client) {
	seedingSvc := seeding.New(client, a.prompts, a.logger)
	characterSvc := character.New(client, a.prompts, a.logger)
	a.worldInit = worldinit.New(seedingSvc, characterSvc, a.corpus, a.cfg.Story.ConversationWindow, a.logger)

	diceSvc := dice.NewService(client, a.corpus, a.prompts, a.logger)
	beatEngine := beat.New(client, diceSvc, a.prompts, a.logger)
	sceneEngine := scene.New(client, beatEngine, a.corpus, a.prompts, a.logger)
	actEngine := act.New(client, a.corpus, a.prompts, a.logger)

	a.conductor = conductor.New(actEngine, sceneEngine, a.logger)
	a.director = director.New(sceneEngine, a.corpus, a.logger)
}

// initEventPublisher builds the optional Kafka publisher for act-completion
// events. Left nil when cfg.Events.KafkaBrokers is empty.
func (a *App) initEventPublisher() {
	if len(a.cfg.Events.KafkaBrokers) == 0 {
		return
	}
	pub := events.NewKafkaPublisher(a.cfg.Events.KafkaBrokers, a.cfg.Events.KafkaTopic, a.logger)
	a.closers = append(a.closers, pub.Close)
	a.publisher = pub
}

// healthCheckers returns the readiness checks for the configured subsystems.
func (a *App) healthCheckers() []health.Checker {
	var checkers []health.Checker
	if rb, ok := a.bus.(*progress.RedisBus); ok {
		checkers = append(checkers, health.Checker{Name: "redis", Check: rb.Ping})
	}
	return checkers
}

// buildMux registers the API, health, and metrics routes behind the
// observability middleware.
func (a *App) buildMux() http.Handler {
	mux := http.NewServeMux()
	a.api.Register(mux)
	a.health.Register(mux)
	return observe.Middleware(a.metrics)(mux)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// WorldStore returns the world store.
func (a *App) WorldStore() *worldstore.Store { return a.store }

// Conductor returns the advance-loop conductor.
func (a *App) Conductor() *conductor.Conductor { return a.conductor }

// Director returns the director-mode intervention service.
func (a *App) Director() *director.Director { return a.director }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the HTTP/SSE server and blocks until ctx is cancelled or the
// server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				a.logger.Warn("http server shutdown error", "err", err)
			}
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}

		if a.otelShutdown != nil {
			if err := a.otelShutdown(ctx); err != nil {
				a.logger.Warn("otel shutdown error", "err", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Logger ──────────────────────────────────────────────────────────────────

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
