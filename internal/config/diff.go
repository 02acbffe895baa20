package config

import "github.com/MrWong99/playwright-engine/pkg/types"

// ConfigDiff describes what changed between two configs.
// It tracks the log level, the story safety limits and the default tropes
// per beat; LLM provider settings are not compared.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     types.LogLevel

	StoryLimitsChanged bool
	NewSceneBeatLimit  int
	NewActSceneLimit   int

	DefaultTropesChanged bool
	NewDefaultTropes     int
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Story.SceneBeatLimit != new.Story.SceneBeatLimit || old.Story.ActSceneLimit != new.Story.ActSceneLimit {
		d.StoryLimitsChanged = true
		d.NewSceneBeatLimit = new.Story.SceneBeatLimit
		d.NewActSceneLimit = new.Story.ActSceneLimit
	}

	if old.Story.DefaultTropesPerBeat != new.Story.DefaultTropesPerBeat {
		d.DefaultTropesChanged = true
		d.NewDefaultTropes = new.Story.DefaultTropesPerBeat
	}

	return d
}
