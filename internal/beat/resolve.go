package beat

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

const recentBeatsForContext = 3
const previousProsePreview = 500

// ResolveBeat runs the four-step beat resolution pipeline: dice, narration,
// prose, and character delta. Beats are appended to scene by the caller once
// this returns; the returned Beat's CharacterDeltas are buffered, never
// applied to the live character, until scene completion.
func (e *Engine) ResolveBeat(ctx context.Context, world *types.WorldState, scene *types.EngineScene, actor, action string, overrideRoll *int) types.Beat {
	sequence := len(scene.Beats) + 1
	sceneContext := buildSceneContext(scene)

	roll := e.dice.ResolveAction(ctx, action, actor, sceneContext, world.GlobalTropePool, 2, overrideRoll)
	fateText := formatFateModifiers(roll.FateModifiers)

	actorProfile := "(unknown character)"
	if c, ok := world.Characters[actor]; ok {
		actorProfile = c.ToPromptText()
	}
	othersText := otherCharacterProfiles(scene.Actors, actor, world.Characters)

	actualOutcome := e.narrate(ctx, action, roll, actor, actorProfile, sceneContext, fateText, othersText)
	prose := e.writeProse(ctx, world, actualOutcome, roll, scene, actor, fateText)
	deltas := e.calculateDeltas(ctx, actor, actualOutcome, roll, sceneContext, otherNames(scene.Actors, actor), world.Characters)

	activeTropes := make([]types.Trope, 0, len(roll.FateModifiers))
	for _, fm := range roll.FateModifiers {
		activeTropes = append(activeTropes, fm.Trope)
	}

	if world.History != nil {
		world.History.Append(actor, prose)
	}

	return types.Beat{
		SceneID:         scene.ID,
		Sequence:        sequence,
		Actor:           actor,
		IntendedAction:  action,
		DiceRoll:        &roll,
		ActualOutcome:   actualOutcome,
		Prose:           prose,
		CharacterDeltas: deltas,
		TropesActive:    activeTropes,
	}
}

func buildSceneContext(scene *types.EngineScene) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Setting: %s\nPlace: %s\nActors present: %s\n", scene.Setting, scene.PlaceDescription, strings.Join(scene.Actors, ", "))
	if len(scene.Beats) > 0 {
		start := len(scene.Beats) - recentBeatsForContext
		if start < 0 {
			start = 0
		}
		sb.WriteString("\nRecent events:\n")
		for _, b := range scene.Beats[start:] {
			fmt.Fprintf(&sb, "- %s: %s\n", b.Actor, b.ActualOutcome)
		}
	}
	return sb.String()
}

func formatFateModifiers(modifiers []types.FateModifier) string {
	if len(modifiers) == 0 {
		return "(no fate modifiers)"
	}
	lines := make([]string, 0, len(modifiers))
	for _, m := range modifiers {
		lines = append(lines, fmt.Sprintf("- %s (%+d): %s", m.Trope.Name, m.Modifier, m.Rationale))
	}
	return strings.Join(lines, "\n")
}

func otherNames(actors []string, actor string) []string {
	var out []string
	for _, a := range actors {
		if a != actor {
			out = append(out, a)
		}
	}
	return out
}

func otherCharacterProfiles(actors []string, actor string, characters map[string]types.Character) string {
	others := otherNames(actors, actor)
	var parts []string
	for i, o := range others {
		if i >= 2 {
			break
		}
		if c, ok := characters[o]; ok {
			parts = append(parts, c.ToPromptText())
		}
	}
	if len(parts) == 0 {
		return "(none)"
	}
	return strings.Join(parts, "\n")
}

// narrate asks the strong LLM what actually happened given the pre-decided
// dice outcome. The prompt forbids overriding the dice; the LLM only
// describes how the tier manifests.
func (e *Engine) narrate(ctx context.Context, action string, roll types.DiceRoll, actor, actorProfile, sceneContext, fateText, othersText string) string {
	prompt, err := e.prompts.Render("generators", "BEAT_RESOLVER", map[string]string{
		"intended_action":          action,
		"dice_outcome":             string(roll.Outcome),
		"fate_modifiers_text":      fateText,
		"actor":                    actor,
		"actor_profile":            actorProfile,
		"scene_context":            sceneContext,
		"other_characters_present": othersText,
		"raw_roll":                 fmt.Sprintf("%d", roll.RawRoll),
		"final_value":              fmt.Sprintf("%d", roll.FinalValue),
	})
	if err != nil {
		e.logger.Warn("beat: narration prompt render failed, using minimal outcome", "error", err)
		return fmt.Sprintf("%s's attempt to %s resolves as a %s.", actor, action, roll.Outcome)
	}

	const system = "You narrate what ACTUALLY happened given a dice outcome. You CANNOT override the dice result — only describe HOW it manifests."
	text, err := e.llm.Complete(ctx, types.TierStrong, system, prompt, llmclientOptions())
	if err != nil {
		e.logger.Warn("beat: narration failed, using minimal outcome", "actor", actor, "error", err)
		return fmt.Sprintf("%s's attempt to %s resolves as a %s.", actor, action, roll.Outcome)
	}
	return strings.TrimSpace(text)
}

// writeProse rewrites the narration as theatrical stage prose, given the
// previous beat's prose for continuity. When scene has no prior beats of its
// own, it falls back to the world's conversation memory so the opening beat
// of a new scene still reads as a continuation rather than a cold start.
func (e *Engine) writeProse(ctx context.Context, world *types.WorldState, actualOutcome string, roll types.DiceRoll, scene *types.EngineScene, actor, fateText string) string {
	previousProse := "(opening of the scene)"
	if n := len(scene.Beats); n > 0 && scene.Beats[n-1].Prose != "" {
		p := scene.Beats[n-1].Prose
		if len(p) > previousProsePreview {
			p = p[:previousProsePreview]
		}
		previousProse = p
	} else if world != nil && world.History != nil && world.History.Len() > 0 {
		previousProse = world.History.Render()
	}

	prompt, err := e.prompts.Render("generators", "BEAT_PROSE_WRITER", map[string]string{
		"actual_outcome":      actualOutcome,
		"dice_outcome":        string(roll.Outcome),
		"scene_setting":       scene.Setting,
		"previous_prose":      previousProse,
		"actor":               actor,
		"fate_modifiers_text": fateText,
	})
	if err != nil {
		e.logger.Warn("beat: prose prompt render failed, using narration as prose", "error", err)
		return actualOutcome
	}

	text, err := e.llm.Complete(ctx, types.TierStrong, "You are a master playwright writing theatrical prose.", prompt, llmclientOptions())
	if err != nil {
		e.logger.Warn("beat: prose writing failed, using narration as prose", "actor", actor, "error", err)
		return actualOutcome
	}
	return strings.TrimSpace(text)
}

type deltaResponse struct {
	CharacterName        string   `json:"character_name"`
	NewShortTermMemories []string `json:"new_short_term_memories"`
	NewLongTermMemories  []string `json:"new_long_term_memories"`
	InternalStateShift   string   `json:"internal_state_shift"`
	AmbitionShift        string   `json:"ambition_shift"`
	ContradictionShifts  []string `json:"contradiction_shifts"`
	PhysicalStateChange  string   `json:"physical_state_change"`
}

// calculateDeltas computes a CharacterDelta for the acting character via the
// fast LLM. On parse failure, synthesizes a minimal delta containing only
// the actual outcome as a new short-term memory.
func (e *Engine) calculateDeltas(ctx context.Context, actor, actualOutcome string, roll types.DiceRoll, sceneContext string, others []string, characters map[string]types.Character) []types.CharacterDelta {
	actorProfile := "(unknown)"
	if c, ok := characters[actor]; ok {
		actorProfile = c.ToPromptText()
	}
	othersText := "(none)"
	if len(others) > 0 {
		var parts []string
		for _, o := range others {
			if c, ok := characters[o]; ok {
				state := c.InternalState
				if len(state) > 100 {
					state = state[:100]
				}
				parts = append(parts, fmt.Sprintf("- %s: %s", o, state))
			}
		}
		if len(parts) > 0 {
			othersText = strings.Join(parts, "\n")
		}
	}

	prompt, err := e.prompts.Render("generators", "BEAT_DELTA_CALCULATOR", map[string]string{
		"actor":                    actor,
		"actor_profile":            actorProfile,
		"actual_outcome":           actualOutcome,
		"dice_outcome":             string(roll.Outcome),
		"other_characters_present": othersText,
		"scene_context":            sceneContext,
	})
	if err != nil {
		return minimalDelta(actor, actualOutcome)
	}

	var resp deltaResponse
	err = e.llm.CompleteStructured(ctx, types.TierFast, "You calculate character state changes from narrative events.", prompt, "", &resp)
	if err != nil {
		e.logger.Warn("beat: delta calculation failed, using minimal delta", "actor", actor, "error", err)
		return minimalDelta(actor, actualOutcome)
	}

	name := resp.CharacterName
	if name == "" {
		name = actor
	}
	return []types.CharacterDelta{{
		CharacterName:        name,
		NewShortTermMemories: resp.NewShortTermMemories,
		NewLongTermMemories:  resp.NewLongTermMemories,
		InternalStateShift:   resp.InternalStateShift,
		AmbitionShift:        resp.AmbitionShift,
		ContradictionShifts:  resp.ContradictionShifts,
		PhysicalStateChange:  resp.PhysicalStateChange,
	}}
}

func minimalDelta(actor, actualOutcome string) []types.CharacterDelta {
	outcome := actualOutcome
	if len(outcome) > 200 {
		outcome = outcome[:200]
	}
	return []types.CharacterDelta{{
		CharacterName:        actor,
		NewShortTermMemories: []string{outcome},
	}}
}

// llmclientOptions returns the default free-text completion options used by
// beat narration and prose calls.
func llmclientOptions() llmclient.Options {
	return llmclient.Options{Temperature: 0.9, MaxTokens: 600}
}
