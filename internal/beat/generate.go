// Package beat implements the small-scale narrative unit: generating the
// planned actions for a scene, and resolving each one through dice,
// narration, prose, and character-delta calculation.
package beat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/playwright-engine/internal/dice"
	"github.com/MrWong99/playwright-engine/internal/promptregistry"
	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

// Engine generates and resolves beats for a single scene.
type Engine struct {
	llm     *llmclient.Client
	dice    *dice.Service
	prompts *promptregistry.Registry
	logger  *slog.Logger
}

// New constructs a beat Engine.
func New(llm *llmclient.Client, diceSvc *dice.Service, prompts *promptregistry.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{llm: llm, dice: diceSvc, prompts: prompts, logger: logger}
}

type actionItem struct {
	Actor  string `json:"actor"`
	Action string `json:"action"`
}

type actionsResponse struct {
	Actions []actionItem `json:"actions"`
}

func (r *actionsResponse) UnmarshalJSON(data []byte) error {
	var asArray []actionItem
	if err := json.Unmarshal(data, &asArray); err == nil {
		r.Actions = asArray
		return nil
	}
	type alias actionsResponse
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = actionsResponse(a)
	return nil
}

// GenerateActions produces one planned action per intended beat, validating
// every actor against the scene's declared roster. On a parse failure (or
// when every proposed actor is invalid), it falls back to one neutral
// observation action per actor so the scene can never stall. world may be
// nil in tests that don't care about cross-scene conversation continuity.
func (e *Engine) GenerateActions(ctx context.Context, world *types.WorldState, scene *types.EngineScene, actGoals map[string]string, threadStates []types.NarrativeThreadState, characters map[string]types.Character) []types.PlannedAction {
	profiles := actorProfiles(scene.Actors, characters)
	goalsJSON, _ := json.Marshal(actGoals)
	recentConversation := ""
	if world != nil && world.History != nil {
		recentConversation = world.History.Render()
	}

	prompt, err := e.prompts.Render("generators", "BEAT_ACTION_GENERATOR", map[string]string{
		"scene_context":       fmt.Sprintf("Setting: %s\nPlace: %s", scene.Setting, scene.PlaceDescription),
		"actors_profiles":     profiles,
		"act_goals":           string(goalsJSON),
		"thread_states":       formatThreadStates(threadStates),
		"scene_number":        fmt.Sprintf("%d", scene.Number),
		"recent_conversation": recentConversation,
	})
	if err != nil {
		e.logger.Warn("beat: action generator prompt render failed, using fallback", "error", err)
		return fallbackActions(scene.Actors)
	}

	var resp actionsResponse
	err = e.llm.CompleteStructured(ctx, types.TierStrong, "You generate character actions for theatrical scenes.", prompt, "", &resp)
	if err != nil {
		e.logger.Warn("beat: action generation failed, using fallback", "scene", scene.Number, "error", err)
		return fallbackActions(scene.Actors)
	}

	actorSet := make(map[string]bool, len(scene.Actors))
	for _, a := range scene.Actors {
		actorSet[a] = true
	}

	var actions []types.PlannedAction
	for _, item := range resp.Actions {
		if item.Actor == "" || item.Action == "" || !actorSet[item.Actor] {
			continue
		}
		actions = append(actions, types.PlannedAction{Actor: item.Actor, Action: item.Action})
	}
	if len(actions) == 0 {
		return fallbackActions(scene.Actors)
	}
	return actions
}

func fallbackActions(actors []string) []types.PlannedAction {
	out := make([]types.PlannedAction, len(actors))
	for i, a := range actors {
		out[i] = types.PlannedAction{Actor: a, Action: fmt.Sprintf("%s observes the scene cautiously.", a)}
	}
	return out
}

func actorProfiles(actors []string, characters map[string]types.Character) string {
	var parts []string
	for _, a := range actors {
		if c, ok := characters[a]; ok {
			parts = append(parts, c.ToPromptText())
		}
	}
	if len(parts) == 0 {
		return "(no actor profiles)"
	}
	return strings.Join(parts, "\n\n")
}

func formatThreadStates(states []types.NarrativeThreadState) string {
	if len(states) == 0 {
		return "(no threads yet)"
	}
	lines := make([]string, 0, len(states))
	for _, ts := range states {
		lines = append(lines, fmt.Sprintf("- [%s] (tension %d/10) %s", strings.ToUpper(string(ts.Status)), ts.TensionLevel, ts.Thread.Thread))
	}
	return strings.Join(lines, "\n")
}
