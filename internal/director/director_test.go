package director

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/playwright-engine/internal/beat"
	"github.com/MrWong99/playwright-engine/internal/dice"
	"github.com/MrWong99/playwright-engine/internal/promptregistry"
	"github.com/MrWong99/playwright-engine/internal/scene"
	"github.com/MrWong99/playwright-engine/internal/trope"
	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm/mock"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

func writeTemplates(t *testing.T, dir string) {
	t.Helper()
	genDir := filepath.Join(dir, "generators")
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	templates := map[string]string{
		"BEAT_ACTION_GENERATOR.txt": "Scene: {scene_context}\n",
		"BEAT_RESOLVER.txt":         "Action: {intended_action}\n",
		"BEAT_PROSE_WRITER.txt":     "Outcome: {actual_outcome}\n",
		"BEAT_DELTA_CALCULATOR.txt": "Actor: {actor}\n",
	}
	for name, content := range templates {
		if err := os.WriteFile(filepath.Join(genDir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func newTestDirector(t *testing.T) (*Director, *types.WorldState) {
	t.Helper()
	dir := t.TempDir()
	writeTemplates(t, dir)
	prompts := promptregistry.New(dir)
	provider := &mock.Provider{CompleteErr: context.DeadlineExceeded}
	client := llmclient.New(provider, provider, nil)

	corpus := trope.NewFromSlice([]types.Trope{
		{TropeID: "1", Name: "Chekhov's Gun", Description: "a prop introduced early pays off later"},
		{TropeID: "2", Name: "Red Herring", Description: "a misleading clue"},
	})

	diceSvc := dice.NewService(client, corpus, prompts, nil)
	beatEngine := beat.New(client, diceSvc, prompts, nil)
	sceneEngine := scene.New(client, beatEngine, corpus, prompts, nil)
	d := New(sceneEngine, corpus, nil)

	world := &types.WorldState{
		Characters: map[string]types.Character{
			"Keeper": {Name: "Keeper"},
		},
		ThreadStates: []types.NarrativeThreadState{
			{Thread: types.NarrativeThread{Thread: "the old debt"}, Status: types.ThreadActive, TensionLevel: 3},
		},
		Acts: []types.Act{
			{
				Number: 1,
				Scenes: []types.EngineScene{
					{Number: 1, Actors: []string{"Keeper"}, Status: types.SceneStatusInProgress},
				},
			},
		},
	}
	return d, world
}

func TestOverrideDice_ForcesRollAndRecordsIntervention(t *testing.T) {
	d, world := newTestDirector(t)
	b, err := d.OverrideDice(context.Background(), world, "Keeper", "leaps the chasm", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.DiceRoll.RawRoll != 1 {
		t.Errorf("expected forced roll 1, got %d", b.DiceRoll.RawRoll)
	}
	if len(world.DirectorInterventions) != 1 {
		t.Fatalf("expected 1 intervention recorded, got %d", len(world.DirectorInterventions))
	}
	if world.DirectorInterventions[0].InterventionType != types.InterventionOverrideDice {
		t.Errorf("unexpected intervention type: %q", world.DirectorInterventions[0].InterventionType)
	}
}

func TestOverrideDice_NoCurrentSceneErrors(t *testing.T) {
	d, world := newTestDirector(t)
	world.Acts = nil
	_, err := d.OverrideDice(context.Background(), world, "Keeper", "act", 50)
	if err != ErrNoCurrentScene {
		t.Fatalf("expected ErrNoCurrentScene, got %v", err)
	}
}

func TestInjectEvent_AppendsToCurrentAct(t *testing.T) {
	d, world := newTestDirector(t)
	event, err := d.InjectEvent(world, "a sudden storm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(world.Acts[0].WorldEvents) != 1 {
		t.Fatalf("expected 1 world event, got %d", len(world.Acts[0].WorldEvents))
	}
	if event.Description != "a sudden storm" {
		t.Errorf("unexpected description: %q", event.Description)
	}
}

func TestRedirectCharacter_UnknownNameErrors(t *testing.T) {
	d, world := newTestDirector(t)
	_, err := d.RedirectCharacter(world, "Ghost", "haunt the tower")
	if err != ErrCharacterNotFound {
		t.Fatalf("expected ErrCharacterNotFound, got %v", err)
	}
}

func TestRedirectCharacter_UpdatesAmbitionsAndMemory(t *testing.T) {
	d, world := newTestDirector(t)
	char, err := d.RedirectCharacter(world, "Keeper", "abandon the lighthouse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if char.Ambitions != "abandon the lighthouse" {
		t.Errorf("unexpected ambitions: %q", char.Ambitions)
	}
	if len(world.Characters["Keeper"].ShortTermMemory) != 1 {
		t.Error("expected a short-term memory entry recording the redirect")
	}
}

func TestForceTrope_InjectsMatchingTropesIntoPool(t *testing.T) {
	d, world := newTestDirector(t)
	tropes := d.ForceTrope(world, "gun")
	if len(tropes) != 1 {
		t.Fatalf("expected 1 matching trope, got %d", len(tropes))
	}
	if len(world.GlobalTropePool) != 1 {
		t.Errorf("expected trope injected into pool, got %d", len(world.GlobalTropePool))
	}
}

func TestForceTrope_NoMatchesDoesNotRecordIntervention(t *testing.T) {
	d, world := newTestDirector(t)
	tropes := d.ForceTrope(world, "nonexistent-query-xyz")
	if tropes != nil {
		t.Errorf("expected nil tropes, got %v", tropes)
	}
	if len(world.DirectorInterventions) != 0 {
		t.Errorf("expected no intervention recorded, got %d", len(world.DirectorInterventions))
	}
}

func TestChooseThread_OutOfRangeErrors(t *testing.T) {
	d, world := newTestDirector(t)
	_, err := d.ChooseThread(world, 99, types.ThreadAdvancing)
	if err != ErrThreadIndexOutOfRange {
		t.Fatalf("expected ErrThreadIndexOutOfRange, got %v", err)
	}
}

func TestChooseThread_AdvancingBoostsTension(t *testing.T) {
	d, world := newTestDirector(t)
	ts, err := d.ChooseThread(world, 0, types.ThreadAdvancing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.TensionLevel != 5 {
		t.Errorf("expected tension boosted to 5, got %d", ts.TensionLevel)
	}
	if world.ThreadStates[0].Status != types.ThreadAdvancing {
		t.Error("expected thread status updated in place")
	}
}

func TestChooseThread_TensionCapsAtTen(t *testing.T) {
	d, world := newTestDirector(t)
	world.ThreadStates[0].TensionLevel = 9
	ts, _ := d.ChooseThread(world, 0, types.ThreadAdvancing)
	if ts.TensionLevel != 10 {
		t.Errorf("expected tension capped at 10, got %d", ts.TensionLevel)
	}
}
