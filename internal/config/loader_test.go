package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/playwright-engine/internal/config"
)

func TestValidate_UnknownProviderNameWarnsButDoesNotFail(t *testing.T) {
	t.Parallel()
	yaml := `
llm:
  strong:
    name: some-unlisted-vendor
  fast:
    name: openai
story:
  prompt_dir: ./prompts
  trope_corpus_path: ./data/tropes.csv
`
	// An unrecognised provider name only logs a warning; it must not fail
	// validation since third-party providers are expected.
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error for unknown-but-present provider name: %v", err)
	}
}

func TestValidate_NegativeStoryLimitsRejected(t *testing.T) {
	t.Parallel()
	yaml := `
llm:
  strong: {name: anthropic}
  fast: {name: openai}
story:
  prompt_dir: ./prompts
  trope_corpus_path: ./data/tropes.csv
  scene_beat_limit: 0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for zero scene_beat_limit, got nil")
	}
	if !strings.Contains(err.Error(), "scene_beat_limit") {
		t.Errorf("error should mention scene_beat_limit, got: %v", err)
	}
}

func TestValidate_MultipleErrorsJoined(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, want := range []string{"log_level", "llm.strong.name", "llm.fast.name", "trope_corpus_path", "prompt_dir"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	found := false
	for _, n := range config.ValidProviderNames {
		if n == "openai" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames should contain \"openai\"")
	}
}

func TestLoad_OpensFileFromDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := dir + "/config.yaml"
	writeFile(t, path, `
llm:
  strong: {name: anthropic}
  fast: {name: openai}
story:
  prompt_dir: ./prompts
  trope_corpus_path: ./data/tropes.csv
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Strong.Name != "anthropic" {
		t.Errorf("llm.strong.name: got %q", cfg.LLM.Strong.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
