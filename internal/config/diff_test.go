package config_test

import (
	"testing"

	"github.com/MrWong99/playwright-engine/internal/config"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.Server{LogLevel: types.LogLevelInfo},
		Story:  config.Story{SceneBeatLimit: 20, ActSceneLimit: 100, DefaultTropesPerBeat: 2},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false for identical configs")
	}
	if d.StoryLimitsChanged {
		t.Error("expected StoryLimitsChanged=false for identical configs")
	}
	if d.DefaultTropesChanged {
		t.Error("expected DefaultTropesChanged=false for identical configs")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.Server{LogLevel: types.LogLevelInfo}}
	nw := &config.Config{Server: config.Server{LogLevel: types.LogLevelDebug}}

	d := config.Diff(old, nw)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != types.LogLevelDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_StoryLimitsChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Story: config.Story{SceneBeatLimit: 20, ActSceneLimit: 100}}
	nw := &config.Config{Story: config.Story{SceneBeatLimit: 30, ActSceneLimit: 100}}

	d := config.Diff(old, nw)
	if !d.StoryLimitsChanged {
		t.Error("expected StoryLimitsChanged=true")
	}
	if d.NewSceneBeatLimit != 30 {
		t.Errorf("expected NewSceneBeatLimit=30, got %d", d.NewSceneBeatLimit)
	}
}

func TestDiff_DefaultTropesChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Story: config.Story{DefaultTropesPerBeat: 2}}
	nw := &config.Config{Story: config.Story{DefaultTropesPerBeat: 4}}

	d := config.Diff(old, nw)
	if !d.DefaultTropesChanged {
		t.Error("expected DefaultTropesChanged=true")
	}
	if d.NewDefaultTropes != 4 {
		t.Errorf("expected NewDefaultTropes=4, got %d", d.NewDefaultTropes)
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server: config.Server{LogLevel: types.LogLevelInfo},
		Story:  config.Story{SceneBeatLimit: 20},
	}
	nw := &config.Config{
		Server: config.Server{LogLevel: types.LogLevelWarn},
		Story:  config.Story{SceneBeatLimit: 25},
	}

	d := config.Diff(old, nw)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if !d.StoryLimitsChanged {
		t.Error("expected StoryLimitsChanged=true")
	}
}
