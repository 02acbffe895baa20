package beat

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/playwright-engine/internal/dice"
	"github.com/MrWong99/playwright-engine/internal/promptregistry"
	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm"
	"github.com/MrWong99/playwright-engine/pkg/provider/llm/mock"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

type staticTropeSampler struct{ sample types.TropeSample }

func (s staticTropeSampler) SampleRandom(n int) types.TropeSample { return s.sample }

func writeTemplates(t *testing.T, dir string) {
	t.Helper()
	genDir := filepath.Join(dir, "generators")
	if err := os.MkdirAll(genDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	templates := map[string]string{
		"BEAT_ACTION_GENERATOR.txt": "Scene: {scene_context}\nActors: {actors_profiles}\nGoals: {act_goals}\nThreads: {thread_states}\n",
		"BEAT_RESOLVER.txt":         "Action: {intended_action}\nOutcome: {dice_outcome}\nModifiers: {fate_modifiers_text}\nActor: {actor}\n",
		"BEAT_PROSE_WRITER.txt":     "Outcome: {actual_outcome}\nPrevious: {previous_prose}\n",
		"BEAT_DELTA_CALCULATOR.txt": "Actor: {actor}\nOutcome: {actual_outcome}\n",
	}
	for name, content := range templates {
		if err := os.WriteFile(filepath.Join(genDir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func newTestEngine(t *testing.T, provider *mock.Provider) *Engine {
	t.Helper()
	dir := t.TempDir()
	writeTemplates(t, dir)
	prompts := promptregistry.New(dir)
	client := llmclient.New(provider, provider, nil)
	corpus := staticTropeSampler{sample: types.TropeSample{
		Tropes: []types.Trope{{TropeID: "1", Name: "Chekhov's Gun", Description: "pays off later"}},
		Source: "random",
	}}
	diceSvc := dice.NewService(client, corpus, prompts, nil)
	return New(client, diceSvc, prompts, nil)
}

func testScene() *types.EngineScene {
	return &types.EngineScene{
		ID:               "scene-1",
		Number:           1,
		Actors:           []string{"Keeper", "Stranger"},
		Setting:          "A lighthouse at dusk",
		PlaceDescription: "Atop the spiral stair",
		Status:           types.SceneStatusComposing,
	}
}

func TestGenerateActions_ParsesValidActions(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `[{"actor":"Keeper","action":"lights the lamp"},{"actor":"Stranger","action":"watches from the door"}]`,
		},
	}
	e := newTestEngine(t, provider)
	scene := testScene()
	actions := e.GenerateActions(context.Background(), nil, scene, nil, nil, nil)
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].Actor != "Keeper" || actions[0].Action != "lights the lamp" {
		t.Errorf("unexpected first action: %+v", actions[0])
	}
}

func TestGenerateActions_DropsUnknownActors(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `[{"actor":"Keeper","action":"lights the lamp"},{"actor":"Ghost","action":"haunts"}]`,
		},
	}
	e := newTestEngine(t, provider)
	scene := testScene()
	actions := e.GenerateActions(context.Background(), nil, scene, nil, nil, nil)
	if len(actions) != 1 {
		t.Fatalf("expected 1 valid action, got %d", len(actions))
	}
	if actions[0].Actor != "Keeper" {
		t.Errorf("expected Keeper, got %q", actions[0].Actor)
	}
}

func TestGenerateActions_FallsBackOnLLMFailure(t *testing.T) {
	provider := &mock.Provider{CompleteErr: context.DeadlineExceeded}
	e := newTestEngine(t, provider)
	scene := testScene()
	actions := e.GenerateActions(context.Background(), nil, scene, nil, nil, nil)
	if len(actions) != 2 {
		t.Fatalf("expected 2 fallback actions (one per actor), got %d", len(actions))
	}
	for _, a := range actions {
		if a.Action == "" {
			t.Error("expected non-empty fallback action")
		}
	}
}

func TestGenerateActions_FallsBackWhenAllActorsInvalid(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `[{"actor":"Ghost","action":"haunts"}]`,
		},
	}
	e := newTestEngine(t, provider)
	scene := testScene()
	actions := e.GenerateActions(context.Background(), nil, scene, nil, nil, nil)
	if len(actions) != 2 {
		t.Fatalf("expected fallback for all actors, got %d", len(actions))
	}
}

func TestResolveBeat_FullPipelineSuccess(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"character_name":"Keeper","new_short_term_memories":["the lamp caught fire"],"internal_state_shift":"anxious"}`,
		},
	}
	e := newTestEngine(t, provider)
	world := &types.WorldState{
		Characters: map[string]types.Character{
			"Keeper":   {Name: "Keeper", InternalState: "watchful"},
			"Stranger": {Name: "Stranger", InternalState: "wary"},
		},
		GlobalTropePool: []types.Trope{{TropeID: "1", Name: "Chekhov's Gun"}},
	}
	scene := testScene()

	b := e.ResolveBeat(context.Background(), world, scene, "Keeper", "lights the lamp", nil)
	if b.Actor != "Keeper" {
		t.Errorf("expected actor Keeper, got %q", b.Actor)
	}
	if b.DiceRoll == nil {
		t.Fatal("expected a dice roll")
	}
	if b.ActualOutcome == "" {
		t.Error("expected non-empty actual outcome")
	}
	if b.Prose == "" {
		t.Error("expected non-empty prose")
	}
	if len(b.CharacterDeltas) != 1 {
		t.Fatalf("expected 1 character delta, got %d", len(b.CharacterDeltas))
	}
	if b.Sequence != 1 {
		t.Errorf("expected sequence 1 for first beat, got %d", b.Sequence)
	}
}

func TestResolveBeat_OverrideRollRespected(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{}`},
	}
	e := newTestEngine(t, provider)
	world := &types.WorldState{
		Characters: map[string]types.Character{"Keeper": {Name: "Keeper"}},
	}
	scene := testScene()
	override := 1
	b := e.ResolveBeat(context.Background(), world, scene, "Keeper", "leaps into the dark", &override)
	if b.DiceRoll.RawRoll != 1 {
		t.Errorf("expected raw roll 1, got %d", b.DiceRoll.RawRoll)
	}
	if b.DiceRoll.Outcome != types.OutcomeCatastrophicFailure {
		t.Errorf("expected catastrophic_failure, got %q", b.DiceRoll.Outcome)
	}
}

func TestResolveBeat_LLMFailureProducesMinimalDelta(t *testing.T) {
	provider := &mock.Provider{CompleteErr: context.DeadlineExceeded}
	e := newTestEngine(t, provider)
	world := &types.WorldState{
		Characters: map[string]types.Character{"Keeper": {Name: "Keeper"}},
	}
	scene := testScene()
	b := e.ResolveBeat(context.Background(), world, scene, "Keeper", "lights the lamp", nil)

	if b.ActualOutcome == "" {
		t.Error("expected a minimal fallback outcome despite LLM failure")
	}
	if b.Prose == "" {
		t.Error("expected prose to fall back to the narration text")
	}
	if len(b.CharacterDeltas) != 1 || b.CharacterDeltas[0].CharacterName != "Keeper" {
		t.Fatalf("expected minimal delta for Keeper, got %+v", b.CharacterDeltas)
	}
	if len(b.CharacterDeltas[0].NewShortTermMemories) != 1 {
		t.Errorf("expected exactly one synthesized short-term memory, got %d", len(b.CharacterDeltas[0].NewShortTermMemories))
	}
}

func TestResolveBeat_BuildsContextFromPriorBeats(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{}`},
	}
	e := newTestEngine(t, provider)
	world := &types.WorldState{
		Characters: map[string]types.Character{
			"Keeper":   {Name: "Keeper"},
			"Stranger": {Name: "Stranger"},
		},
	}
	scene := testScene()
	scene.Beats = append(scene.Beats, types.Beat{Actor: "Stranger", ActualOutcome: "knocked twice", Prose: "The stranger knocked twice upon the old door."})

	b := e.ResolveBeat(context.Background(), world, scene, "Keeper", "opens the door", nil)
	if b.Sequence != 2 {
		t.Errorf("expected sequence 2 after one prior beat, got %d", b.Sequence)
	}
	sawPriorProse := false
	for _, call := range provider.CompleteCalls {
		if len(call.Req.Messages) > 0 && strings.Contains(call.Req.Messages[0].Content, "The stranger knocked twice upon the old door.") {
			sawPriorProse = true
		}
	}
	if !sawPriorProse {
		t.Error("expected the prior beat's prose in a prompt")
	}
}
