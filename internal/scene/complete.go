package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/playwright-engine/pkg/types"
)

const sceneHeaderSeparator = "\n\n--- Scene %d ---\n\n"

// characterUpdate mirrors types.Character with JSON tags for parsing the
// state-updater response. Decoded fields overwrite the whole profile; this
// mirrors the "integrate changes into a living profile" contract, not a
// partial patch.
type characterUpdate struct {
	Name                   string   `json:"name"`
	InternalState          string   `json:"internal_state"`
	Ambitions              string   `json:"ambitions"`
	Teleology              string   `json:"teleology"`
	Philosophy             string   `json:"philosophy"`
	PhysicalState          string   `json:"physical_state"`
	LongTermMemory         []string `json:"long_term_memory"`
	ShortTermMemory        []string `json:"short_term_memory"`
	InternalContradictions []string `json:"internal_contradictions"`
}

// UpdateCharactersAfterScene folds every beat's CharacterDelta into the
// living profile of the character it names, one strong-LLM call per
// affected character. A character whose update call fails or fails to
// parse keeps its pre-scene profile untouched.
func (e *Engine) UpdateCharactersAfterScene(ctx context.Context, world *types.WorldState, scn *types.EngineScene) {
	deltasByChar := map[string][]types.CharacterDelta{}
	beatsByChar := map[string][]string{}
	for _, b := range scn.Beats {
		for _, d := range b.CharacterDeltas {
			deltasByChar[d.CharacterName] = append(deltasByChar[d.CharacterName], d)
		}
		beatsByChar[b.Actor] = append(beatsByChar[b.Actor], b.ActualOutcome)
	}

	for name, deltas := range deltasByChar {
		char, ok := world.Characters[name]
		if !ok {
			continue
		}

		beatsText := "(no direct beats)"
		if outcomes := beatsByChar[name]; len(outcomes) > 0 {
			lines := make([]string, len(outcomes))
			for i, o := range outcomes {
				lines[i] = "- " + o
			}
			beatsText = strings.Join(lines, "\n")
		}
		deltasJSON, _ := json.MarshalIndent(deltas, "", "  ")

		tcc := ""
		if world.TCCN != nil {
			tcc = world.TCCN.ToPromptText()
		}

		prompt, err := e.prompts.Render("updaters", "CHARACTER_STATE_UPDATER", map[string]string{
			"character_profile":   char.ToPromptText(),
			"scene_beats_summary": beatsText,
			"character_deltas":    string(deltasJSON),
			"tcc_context":         tcc,
		})
		if err != nil {
			e.logger.Warn("scene: character update prompt render failed, keeping profile", "character", name, "error", err)
			continue
		}

		var resp characterUpdate
		if err := e.llm.CompleteStructured(ctx, types.TierStrong, "You integrate character changes into a living profile.", prompt, "", &resp); err != nil {
			e.logger.Warn("scene: character update failed, keeping profile", "character", name, "error", err)
			continue
		}

		updated := types.Character{
			Name:                   resp.Name,
			InternalState:          resp.InternalState,
			Ambitions:              resp.Ambitions,
			Teleology:              resp.Teleology,
			Philosophy:             resp.Philosophy,
			PhysicalState:          resp.PhysicalState,
			LongTermMemory:         resp.LongTermMemory,
			ShortTermMemory:        resp.ShortTermMemory,
			InternalContradictions: resp.InternalContradictions,
		}
		if updated.Name == "" {
			updated.Name = name
		}
		world.Characters[name] = updated
	}
}

type threadStateItem struct {
	Thread       string `json:"thread"`
	Status       string `json:"status"`
	TensionLevel int    `json:"tension_level"`
}

type threadStatesResponse struct {
	Threads []threadStateItem `json:"threads"`
}

func (r *threadStatesResponse) UnmarshalJSON(data []byte) error {
	var asArray []threadStateItem
	if err := json.Unmarshal(data, &asArray); err == nil {
		r.Threads = asArray
		return nil
	}
	type alias threadStatesResponse
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = threadStatesResponse(a)
	return nil
}

var validThreadStatuses = map[string]types.ThreadStatus{
	"active":    types.ThreadActive,
	"advancing": types.ThreadAdvancing,
	"stalled":   types.ThreadStalled,
	"resolved":  types.ThreadResolved,
	"spawned":   types.ThreadSpawned,
}

// AdvanceThreadStates asks the fast LLM how each narrative thread evolved
// during scn. Resolved is absorbing: any thread already resolved before
// this call stays resolved regardless of what the model returns. On parse
// failure the previous thread states are left untouched.
func (e *Engine) AdvanceThreadStates(ctx context.Context, world *types.WorldState, scn *types.EngineScene) {
	beatOutcomes := formatBeatOutcomes(scn.Beats)
	sceneSummary := fmt.Sprintf("Scene %d: %s. Actors: %s", scn.Number, scn.Setting, strings.Join(scn.Actors, ", "))
	charChanges := formatCharacterChanges(scn.Beats)

	prompt, err := e.prompts.Render("generators", "THREAD_STATE_ADVANCER", map[string]string{
		"thread_states":     threadStatesText(world.ThreadStates),
		"scene_summary":     sceneSummary,
		"beat_outcomes":     beatOutcomes,
		"character_changes": charChanges,
	})
	if err != nil {
		e.logger.Warn("scene: thread advancer prompt render failed, keeping thread states", "error", err)
		return
	}

	alreadyResolved := map[string]bool{}
	for _, ts := range world.ThreadStates {
		if ts.Status == types.ThreadResolved {
			alreadyResolved[ts.Thread.Thread] = true
		}
	}

	var resp threadStatesResponse
	if err := e.llm.CompleteStructured(ctx, types.TierFast, "You track narrative thread evolution across scenes.", prompt, "", &resp); err != nil {
		e.logger.Warn("scene: thread state update failed, keeping prior states", "error", err)
		return
	}

	newStates := make([]types.NarrativeThreadState, 0, len(resp.Threads))
	for _, item := range resp.Threads {
		status, ok := validThreadStatuses[item.Status]
		if !ok {
			status = types.ThreadActive
		}
		if alreadyResolved[item.Thread] {
			status = types.ThreadResolved
		}
		tension := item.TensionLevel
		if tension < 1 {
			tension = 1
		}
		if tension > 10 {
			tension = 10
		}
		newStates = append(newStates, types.NarrativeThreadState{
			Thread:       types.NarrativeThread{Thread: item.Thread},
			Status:       status,
			TensionLevel: tension,
		})
	}
	world.ThreadStates = newStates
}

func formatBeatOutcomes(beats []types.Beat) string {
	if len(beats) == 0 {
		return "(no beats)"
	}
	lines := make([]string, 0, len(beats))
	for _, b := range beats {
		outcome := "N/A"
		if b.DiceRoll != nil {
			outcome = string(b.DiceRoll.Outcome)
		}
		lines = append(lines, fmt.Sprintf("- %s: %s [%s]", b.Actor, b.ActualOutcome, outcome))
	}
	return strings.Join(lines, "\n")
}

func formatCharacterChanges(beats []types.Beat) string {
	var lines []string
	for _, b := range beats {
		for _, d := range b.CharacterDeltas {
			if d.InternalStateShift != "" {
				lines = append(lines, fmt.Sprintf("- %s: %s", d.CharacterName, d.InternalStateShift))
			}
		}
	}
	if len(lines) == 0 {
		return "(no significant character changes)"
	}
	return strings.Join(lines, "\n")
}

// CompleteScene folds character deltas and thread-state advancement, then
// compiles every beat's prose into the scene's FullProse and appends it to
// the world's accumulated prose under a scene-header separator.
func (e *Engine) CompleteScene(ctx context.Context, world *types.WorldState, scn *types.EngineScene) {
	e.UpdateCharactersAfterScene(ctx, world, scn)
	e.AdvanceThreadStates(ctx, world, scn)

	var proseParts []string
	for _, b := range scn.Beats {
		if b.Prose != "" {
			proseParts = append(proseParts, b.Prose)
		}
	}
	scn.FullProse = strings.Join(proseParts, "\n\n")

	if scn.FullProse != "" {
		world.AccumulatedProse += fmt.Sprintf(sceneHeaderSeparator, scn.Number) + scn.FullProse
	}
	scn.Status = types.SceneStatusCompleted
}
