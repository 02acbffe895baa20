// Package config provides the configuration schema, loader, and LLM provider
// registry for the narrative engine.
package config

import "github.com/MrWong99/playwright-engine/pkg/types"

// Config is the root configuration structure for the narrative engine.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server Server `yaml:"server"`
	LLM    LLM    `yaml:"llm"`
	Story  Story  `yaml:"story"`
	Memory Memory `yaml:"memory"`
	Events Events `yaml:"events"`
}

// Server holds network and logging settings for the HTTP/SSE surface.
type Server struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel types.LogLevel `yaml:"log_level"`
}

// LLM declares which provider implementation backs each capability tier.
// Both fields select a named provider registered in the [Registry]; Fast and
// Strong may point at the same provider/model if only one is configured.
type LLM struct {
	Strong ProviderEntry `yaml:"strong"`
	Fast   ProviderEntry `yaml:"fast"`
}

// ProviderEntry is the common configuration block for an LLM provider.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "anthropic", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// Story holds the settings that govern story generation and resolution.
type Story struct {
	// PromptDir is the directory the prompt registry loads templates from.
	PromptDir string `yaml:"prompt_dir"`

	// TropeCorpusPath points at the CSV file the trope sampler loads into
	// memory at startup.
	TropeCorpusPath string `yaml:"trope_corpus_path"`

	// DefaultTropesPerBeat is loaded, defaulted to 2, validated and reported
	// by Diff. The beat engine does not read it: beat resolution always
	// samples two tropes as fate modifiers.
	DefaultTropesPerBeat int `yaml:"default_tropes_per_beat"`

	// SceneBeatLimit is loaded, defaulted to 20, validated and reported by
	// Diff. The conductor does not read it: AdvanceScene uses a fixed limit
	// of 20 beats and returns ErrLimitReached when it trips.
	SceneBeatLimit int `yaml:"scene_beat_limit"`

	// ActSceneLimit is loaded, defaulted to 100, validated and reported by
	// Diff. The conductor does not read it: AdvanceAct uses a fixed limit of
	// 100 scenes and returns ErrLimitReached when it trips.
	ActSceneLimit int `yaml:"act_scene_limit"`

	// ConversationWindow bounds how many messages of recent conversation
	// memory are retained per world.
	ConversationWindow int `yaml:"conversation_window"`
}

// Memory holds settings for the optional dice/event audit sink. This is a
// side-channel history, never the source of truth for world state.
type Memory struct {
	// AuditPostgresDSN is the PostgreSQL connection string for the audit
	// log. Empty disables the sink (a no-op implementation is used).
	AuditPostgresDSN string `yaml:"audit_postgres_dsn"`
}

// Events holds settings for the optional world-event bus and distributed
// progress-channel backends.
type Events struct {
	// KafkaBrokers, when non-empty, enables publishing act-completion
	// world events to KafkaTopic.
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	// RedisAddr, when set, backs the SSE progress bus with Redis pub/sub
	// instead of the default in-process channel implementation.
	RedisAddr string `yaml:"redis_addr"`
}
