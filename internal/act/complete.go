package act

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

const worldEventTropeCount = 2
const actSummaryMaxChars = 300

type worldEventItem struct {
	Description        string   `json:"description"`
	ImpactOnContext    string   `json:"impact_on_context"`
	AffectedCharacters []string `json:"affected_characters"`
	AffectedThreads    []string `json:"affected_threads"`
	SpawnedThreads     []string `json:"spawned_threads"`
}

type worldEventsResponse struct {
	Events []worldEventItem `json:"events"`
}

func (r *worldEventsResponse) UnmarshalJSON(data []byte) error {
	var asArray []worldEventItem
	if err := json.Unmarshal(data, &asArray); err == nil {
		r.Events = asArray
		return nil
	}
	type alias worldEventsResponse
	var a alias
	if err := json.Unmarshal(data, &a); err == nil && len(a.Events) > 0 {
		*r = worldEventsResponse(a)
		return nil
	}
	var single worldEventItem
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	r.Events = []worldEventItem{single}
	return nil
}

// GenerateWorldEvents produces the disruptive world events that mark an
// act's completion, grounded in its beats' accumulated outcomes. A parse
// failure yields zero events rather than a fallback — a quiet act is a
// valid outcome, unlike a quiet scene or beat.
func (e *Engine) GenerateWorldEvents(ctx context.Context, world *types.WorldState, a *types.Act) []types.WorldEvent {
	tropeSample := e.corpus.SampleRandom(worldEventTropeCount)

	teleology, worldContext := "", ""
	if world.TCCN != nil {
		teleology, worldContext = world.TCCN.Teleology, world.TCCN.Context
	}

	prompt, err := e.prompts.Render("generators", "WORLD_EVENT_GENERATOR", map[string]string{
		"context":         worldContext,
		"teleology":       teleology,
		"trope_injection": tropeSample.ToPromptText(),
		"act_summary":     recentBeatSummaries(a),
		"thread_states":   threadStatesText(world.ThreadStates),
	})
	if err != nil {
		e.logger.Warn("act: world event prompt render failed", "error", err)
		return nil
	}

	var resp worldEventsResponse
	if err := e.llm.CompleteStructured(ctx, types.TierStrong, "You generate world-shaping events for a narrative.", prompt, "", &resp); err != nil {
		e.logger.Warn("act: world event generation failed", "act", a.Number, "error", err)
		return nil
	}

	events := make([]types.WorldEvent, 0, len(resp.Events))
	for _, item := range resp.Events {
		spawned := make([]types.NarrativeThread, 0, len(item.SpawnedThreads))
		for _, s := range item.SpawnedThreads {
			spawned = append(spawned, types.NarrativeThread{Thread: s})
		}
		events = append(events, types.WorldEvent{
			Description:        item.Description,
			ImpactOnContext:    item.ImpactOnContext,
			AffectedCharacters: item.AffectedCharacters,
			AffectedThreads:    item.AffectedThreads,
			SpawnedThreads:     spawned,
		})
	}
	a.WorldEvents = append(a.WorldEvents, events...)
	return events
}

type teleologyShiftResponse struct {
	Shifted      bool   `json:"shifted"`
	NewTeleology string `json:"new_teleology"`
	Reason       string `json:"reason"`
}

// EvaluateTeleologyShift assesses whether accumulated events have
// fundamentally shifted the story's teleology. At most one shift is ever
// applied per act — this method runs once per act completion, and an act's
// TeleologyShift field is only ever set here, so repeated calls against the
// same act would each independently overwrite it; the conductor must not
// call this more than once per act.
func (e *Engine) EvaluateTeleologyShift(ctx context.Context, world *types.WorldState, a *types.Act) *types.TeleologyShift {
	var resolved []string
	for _, ts := range world.ThreadStates {
		if ts.Status == types.ThreadResolved {
			resolved = append(resolved, "- "+ts.Thread.Thread)
		}
	}
	threadResolutions := "(no threads resolved yet)"
	if len(resolved) > 0 {
		threadResolutions = strings.Join(resolved, "\n")
	}

	originalTeleology := ""
	if world.TCCN != nil {
		originalTeleology = world.TCCN.Teleology
	}

	prompt, err := e.prompts.Render("generators", "TELEOLOGY_SHIFT_EVALUATOR", map[string]string{
		"original_teleology": originalTeleology,
		"accumulated_events": accumulatedEventsText(world),
		"thread_resolutions": threadResolutions,
		"act_summaries":      actSummariesText(world),
	})
	if err != nil {
		e.logger.Warn("act: teleology shift prompt render failed", "error", err)
		return nil
	}

	var resp teleologyShiftResponse
	if err := e.llm.CompleteStructured(ctx, types.TierStrong, "You are a dramaturgical evaluator assessing teleological shifts.", prompt, "", &resp); err != nil {
		e.logger.Warn("act: teleology shift evaluation failed", "error", err)
		return nil
	}
	if !resp.Shifted {
		return nil
	}

	shift := &types.TeleologyShift{
		Original: originalTeleology,
		Shifted:  resp.NewTeleology,
		Reason:   resp.Reason,
	}
	if world.TCCN != nil {
		world.TCCN.Teleology = shift.Shifted
	}
	a.TeleologyShift = shift
	return shift
}

// UpdateContext evolves the world's context description after an act, via
// a single free-text strong-LLM call (not structured — context is prose).
func (e *Engine) UpdateContext(ctx context.Context, world *types.WorldState, a *types.Act) string {
	worldEventsText := "(no world events)"
	if len(a.WorldEvents) > 0 {
		lines := make([]string, 0, len(a.WorldEvents))
		for _, we := range a.WorldEvents {
			lines = append(lines, fmt.Sprintf("- %s: %s", we.Description, we.ImpactOnContext))
		}
		worldEventsText = strings.Join(lines, "\n")
	}

	currentContext, teleology := "", ""
	if world.TCCN != nil {
		currentContext, teleology = world.TCCN.Context, world.TCCN.Teleology
	}

	prompt, err := e.prompts.Render("updaters", "CONTEXT_UPDATER", map[string]string{
		"current_context": currentContext,
		"act_summary":     recentBeatSummaries(a),
		"world_events":    worldEventsText,
		"thread_changes":  threadStatesText(world.ThreadStates),
		"teleology":       teleology,
	})
	if err != nil {
		e.logger.Warn("act: context updater prompt render failed, context unchanged", "error", err)
		return currentContext
	}

	newContext, err := e.llm.Complete(ctx, types.TierStrong, "You evolve a play's world context after an act.", prompt, llmclient.Options{MaxTokens: 1024})
	if err != nil {
		e.logger.Warn("act: context evolution failed, context unchanged", "error", err)
		return currentContext
	}
	newContext = strings.TrimSpace(newContext)

	if world.TCCN != nil {
		world.TCCN.Context = newContext
	}
	a.ContextEvolution = newContext
	return newContext
}

func accumulatedEventsText(world *types.WorldState) string {
	var lines []string
	for _, a := range world.Acts {
		for _, we := range a.WorldEvents {
			lines = append(lines, "- "+we.Description)
		}
		for _, s := range a.Scenes {
			for _, b := range s.Beats {
				lines = append(lines, "- [Beat] "+b.ActualOutcome)
			}
		}
	}
	if len(lines) == 0 {
		return "(no events yet)"
	}
	start := len(lines) - accumulatedEventsLimit
	if start < 0 {
		start = 0
	}
	return strings.Join(lines[start:], "\n")
}

func actSummariesText(world *types.WorldState) string {
	var parts []string
	for _, a := range world.Acts {
		if a.Status != types.ActStatusCompleted {
			continue
		}
		summary := a.ContextEvolution
		if summary == "" {
			summary = fmt.Sprintf("Act %d: %s", a.Number, a.Title)
		}
		if len(summary) > actSummaryMaxChars {
			summary = summary[:actSummaryMaxChars]
		}
		parts = append(parts, fmt.Sprintf("Act %d — %s", a.Number, summary))
	}
	if len(parts) == 0 {
		return "(no completed acts)"
	}
	return strings.Join(parts, "\n")
}

// CompleteAct runs world events, teleology evaluation, and context
// evolution in sequence, then marks the act completed.
func (e *Engine) CompleteAct(ctx context.Context, world *types.WorldState, a *types.Act) {
	e.GenerateWorldEvents(ctx, world, a)
	e.EvaluateTeleologyShift(ctx, world, a)
	e.UpdateContext(ctx, world, a)
	a.Status = types.ActStatusCompleted
}
