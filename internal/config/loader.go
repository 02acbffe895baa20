package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known LLM provider names. Used by [Validate] to
// warn about unrecognised provider names.
var ValidProviderNames = []string{
	"openai", "anthropic", "anyllm", "ollama", "gemini", "deepseek", "mistral", "groq",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero-valued fields that have a sensible default,
// matching the original narrative engine's behaviour (2 tropes per beat, a
// 20-beat scene limit, a 100-scene act limit).
func applyDefaults(cfg *Config) {
	if cfg.Story.DefaultTropesPerBeat == 0 {
		cfg.Story.DefaultTropesPerBeat = 2
	}
	if cfg.Story.SceneBeatLimit == 0 {
		cfg.Story.SceneBeatLimit = 20
	}
	if cfg.Story.ActSceneLimit == 0 {
		cfg.Story.ActSceneLimit = 100
	}
	if cfg.Story.ConversationWindow == 0 {
		cfg.Story.ConversationWindow = 40
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm.strong", cfg.LLM.Strong.Name)
	validateProviderName("llm.fast", cfg.LLM.Fast.Name)

	if cfg.LLM.Strong.Name == "" {
		errs = append(errs, errors.New("llm.strong.name is required"))
	}
	if cfg.LLM.Fast.Name == "" {
		errs = append(errs, errors.New("llm.fast.name is required"))
	}

	if cfg.Story.TropeCorpusPath == "" {
		errs = append(errs, errors.New("story.trope_corpus_path is required"))
	}
	if cfg.Story.PromptDir == "" {
		errs = append(errs, errors.New("story.prompt_dir is required"))
	}
	if cfg.Story.DefaultTropesPerBeat < 1 {
		errs = append(errs, fmt.Errorf("story.default_tropes_per_beat %d must be >= 1", cfg.Story.DefaultTropesPerBeat))
	}
	if cfg.Story.SceneBeatLimit < 1 {
		errs = append(errs, fmt.Errorf("story.scene_beat_limit %d must be >= 1", cfg.Story.SceneBeatLimit))
	}
	if cfg.Story.ActSceneLimit < 1 {
		errs = append(errs, fmt.Errorf("story.act_scene_limit %d must be >= 1", cfg.Story.ActSceneLimit))
	}

	if cfg.Memory.AuditPostgresDSN == "" {
		slog.Debug("memory.audit_postgres_dsn is empty; dice/event audit sink disabled")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidProviderNames].
func validateProviderName(field, name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown LLM provider name — may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", ValidProviderNames,
	)
}
