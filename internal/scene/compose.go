// Package scene implements the meso-scale narrative unit: composing a
// scene's actors and setting, running its beats in order, and folding the
// results back into character state, thread states, and accumulated prose.
package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/playwright-engine/internal/beat"
	"github.com/MrWong99/playwright-engine/internal/promptregistry"
	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

const tropesPerScene = 3
const defaultActorCount = 3

// tropeSampler is the narrow trope-corpus dependency scene needs.
type tropeSampler interface {
	SampleRandom(n int) types.TropeSample
}

// Engine composes, runs, and completes scenes.
type Engine struct {
	llm     *llmclient.Client
	beats   *beat.Engine
	corpus  tropeSampler
	prompts *promptregistry.Registry
	logger  *slog.Logger
}

// New constructs a scene Engine.
func New(llm *llmclient.Client, beats *beat.Engine, corpus tropeSampler, prompts *promptregistry.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{llm: llm, beats: beats, corpus: corpus, prompts: prompts, logger: logger}
}

type composeResponse struct {
	Actors           []string `json:"actors"`
	Setting          string   `json:"setting"`
	PlaceDescription string   `json:"place_description"`
	NarrativeThreads []string `json:"narrative_threads"`
}

// ComposeNextScene plans the next scene within the current act: samples
// tropes as literary fate, asks the strong LLM for actors/setting/place,
// and snapshots every non-resolved thread state into the new scene. On a
// parse failure it falls back to the first few characters of the world and
// a generic setting, matching the "a scene must always exist" contract.
func (e *Engine) ComposeNextScene(ctx context.Context, world *types.WorldState, act *types.Act) *types.EngineScene {
	sceneNumber := len(act.Scenes) + 1
	tropeSample := e.corpus.SampleRandom(tropesPerScene)

	actPlanText := actPlanContext(act, sceneNumber)
	tcc := ""
	if world.TCCN != nil {
		tcc = world.TCCN.ToPromptText()
	}
	recentConversation := ""
	if world.History != nil {
		recentConversation = world.History.Render()
	}

	prompt, err := e.prompts.Render("generators", "ENGINE_SCENE_COMPOSER", map[string]string{
		"tcc_context":         tcc,
		"act_plan":            actPlanText,
		"thread_states":       threadStatesText(world.ThreadStates),
		"trope_injection":     tropeSample.ToPromptText(),
		"characters_summary":  charactersText(world.Characters),
		"scene_number":        fmt.Sprintf("%d", sceneNumber),
		"act_number":          fmt.Sprintf("%d", act.Number),
		"recent_conversation": recentConversation,
	})

	actors := defaultActors(world.Characters)
	setting := "A place in the world"
	placeDescription := setting

	if err != nil {
		e.logger.Warn("scene: compose prompt render failed, using defaults", "error", err)
	} else {
		var resp composeResponse
		if llmErr := e.llm.CompleteStructured(ctx, types.TierStrong, "You are a master scene architect composing a single scene.", prompt, "", &resp); llmErr != nil {
			e.logger.Warn("scene: compose failed, using defaults", "scene", sceneNumber, "error", llmErr)
		} else {
			if len(resp.Actors) > 0 {
				actors = resp.Actors
			}
			if resp.Setting != "" {
				setting = resp.Setting
				placeDescription = resp.Setting
			}
			if resp.PlaceDescription != "" {
				placeDescription = resp.PlaceDescription
			}
		}
	}

	threadsForScene := make([]types.NarrativeThreadState, 0, len(world.ThreadStates))
	for _, ts := range world.ThreadStates {
		if ts.Status != types.ThreadResolved {
			threadsForScene = append(threadsForScene, ts)
		}
	}

	scn := &types.EngineScene{
		ActID:            act.ID,
		Number:           sceneNumber,
		Actors:           actors,
		Setting:          setting,
		PlaceDescription: placeDescription,
		NarrativeThreads: threadsForScene,
		TropesInjected:   tropeSample,
		Status:           types.SceneStatusComposing,
	}
	act.Scenes = append(act.Scenes, *scn)
	world.CurrentSceneIndex = len(act.Scenes) - 1
	world.CurrentBeatIndex = 0

	return &act.Scenes[len(act.Scenes)-1]
}

func actPlanContext(act *types.Act, sceneNumber int) string {
	if act.Plan == nil {
		return "(no specific plan for this scene)"
	}
	var sb strings.Builder
	idx := sceneNumber - 1
	if idx >= 0 && idx < len(act.Plan.PlannedScenes) {
		sb.WriteString(act.Plan.PlannedScenes[idx])
	}
	goalsJSON, _ := json.Marshal(act.Plan.ThreadGoals)
	arcsJSON, _ := json.Marshal(act.Plan.CharacterArcs)
	fmt.Fprintf(&sb, "\nThread goals: %s\nCharacter arcs: %s", goalsJSON, arcsJSON)
	return sb.String()
}

func defaultActors(characters map[string]types.Character) []string {
	names := make([]string, 0, defaultActorCount)
	for name := range characters {
		if len(names) >= defaultActorCount {
			break
		}
		names = append(names, name)
	}
	return names
}

func threadStatesText(states []types.NarrativeThreadState) string {
	if len(states) == 0 {
		return "(no threads yet)"
	}
	lines := make([]string, 0, len(states))
	for _, ts := range states {
		lines = append(lines, fmt.Sprintf("- [%s] (tension %d/10) %s", strings.ToUpper(string(ts.Status)), ts.TensionLevel, ts.Thread.Thread))
	}
	return strings.Join(lines, "\n")
}

func charactersText(characters map[string]types.Character) string {
	if len(characters) == 0 {
		return "(no characters)"
	}
	parts := make([]string, 0, len(characters))
	for _, c := range characters {
		parts = append(parts, c.ToPromptText())
	}
	return strings.Join(parts, "\n\n")
}
