package worldinit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/playwright-engine/internal/character"
	"github.com/MrWong99/playwright-engine/internal/promptregistry"
	"github.com/MrWong99/playwright-engine/internal/seeding"
	"github.com/MrWong99/playwright-engine/internal/trope"
	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm/mock"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

func writeTemplates(t *testing.T, dir string) {
	t.Helper()
	templates := map[string][]string{
		"generators": {"INITIAL_HISTORY_TCC_GENERATOR", "FIRST_PASS_CHARACTER_DESIGNER", "FIRST_PASS_CHARACTER_ENRICHMENT"},
		"refiners":   {"FULL_DESCRIPTION_CHARACTER_REFINER"},
	}
	for category, names := range templates {
		catDir := filepath.Join(dir, category)
		if err := os.MkdirAll(catDir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(catDir, name+".txt"), []byte("body\n"), 0o644); err != nil {
				t.Fatalf("write %s: %v", name, err)
			}
		}
	}
}

// seedThenCharacterProvider returns the seed TCCN on its first call and a
// generic character profile on every call after that, so both the seeding
// and character generation stages of Initialize succeed deterministically.
type seedThenCharacterProvider struct {
	calls int
}

func (p *seedThenCharacterProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	if p.calls == 1 {
		return &llm.CompletionResponse{Content: `{
			"teleology": "redemption through sacrifice",
			"context": "a besieged coastal city",
			"characters": [
				{"name": "Keeper", "description": "guards the old lighthouse"},
				{"name": "Mara", "description": "a smuggler with regrets"}
			],
			"narrative_threads": [{"thread": "the Keeper confronts the debt owed to the sea"}]
		}`}, nil
	}
	return &llm.CompletionResponse{Content: `{"name": "placeholder", "internal_state": "generated"}`}, nil
}

func (p *seedThenCharacterProvider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return nil, context.DeadlineExceeded
}

func (p *seedThenCharacterProvider) CountTokens(messages []types.Message) (int, error) {
	return 0, nil
}

func (p *seedThenCharacterProvider) Capabilities() types.ModelCapabilities {
	return types.ModelCapabilities{}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	writeTemplates(t, dir)
	prompts := promptregistry.New(dir)
	provider := &seedThenCharacterProvider{}
	client := llmclient.New(provider, provider, nil)

	seedSvc := seeding.New(client, prompts, nil)
	charSvc := character.New(client, prompts, nil)
	corpus := trope.NewFromSlice([]types.Trope{
		{TropeID: "1", Name: "Chekhov's Gun", Description: "a prop introduced early pays off later"},
		{TropeID: "2", Name: "Red Herring", Description: "a misleading clue"},
	})
	return New(seedSvc, charSvc, corpus, 0, nil)
}

func TestInitialize_BuildsCompleteWorld(t *testing.T) {
	e := newTestEngine(t)
	var steps []string

	world := e.Initialize(context.Background(), "a lighthouse keeper's last watch", Options{
		OnProgress: func(step, detail string) { steps = append(steps, step) },
	})

	if world.TCCN == nil || world.TCCN.Teleology != "redemption through sacrifice" {
		t.Fatalf("expected seed TCCN applied, got %+v", world.TCCN)
	}
	if len(world.Characters) != 2 {
		t.Fatalf("expected 2 characters generated, got %d", len(world.Characters))
	}
	if len(world.ThreadStates) != 1 || world.ThreadStates[0].Status != types.ThreadActive {
		t.Fatalf("expected 1 active thread state, got %+v", world.ThreadStates)
	}
	if world.ThreadStates[0].TensionLevel != initialThreadTension {
		t.Errorf("expected initial tension %d, got %d", initialThreadTension, world.ThreadStates[0].TensionLevel)
	}
	if len(world.GlobalTropePool) != 2 {
		t.Errorf("expected trope pool capped at corpus size 2, got %d", len(world.GlobalTropePool))
	}
	if world.Mode != types.ModeAutonomous {
		t.Errorf("expected default mode autonomous, got %q", world.Mode)
	}
	if world.Status != types.WorldInitialized {
		t.Errorf("expected status initialized, got %q", world.Status)
	}
	if len(steps) == 0 {
		t.Error("expected progress callback to be invoked")
	}
	if steps[len(steps)-1] != "complete" {
		t.Errorf("expected final progress step \"complete\", got %q", steps[len(steps)-1])
	}
}

func TestInitialize_NumCharactersCapsGeneration(t *testing.T) {
	e := newTestEngine(t)
	world := e.Initialize(context.Background(), "a lighthouse keeper's last watch", Options{NumCharacters: 1})
	if len(world.Characters) != 1 {
		t.Fatalf("expected generation capped to 1 character, got %d", len(world.Characters))
	}
}

func TestInitialize_DirectorModeRespected(t *testing.T) {
	e := newTestEngine(t)
	world := e.Initialize(context.Background(), "a lighthouse keeper's last watch", Options{Mode: types.ModeDirector})
	if world.Mode != types.ModeDirector {
		t.Errorf("expected director mode, got %q", world.Mode)
	}
}
