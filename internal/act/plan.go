// Package act implements the large-scale narrative unit: planning an act's
// scenes and thread goals, and completing an act via world events,
// teleology-shift evaluation, and context evolution.
package act

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MrWong99/playwright-engine/internal/promptregistry"
	"github.com/MrWong99/playwright-engine/pkg/llmclient"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

const defaultPlannedScenes = 3
const recentBeatsForSummary = 20
const accumulatedEventsLimit = 30

// tropeSampler is the narrow trope-corpus dependency the act engine needs.
type tropeSampler interface {
	SampleRandom(n int) types.TropeSample
}

// Engine plans and completes acts.
type Engine struct {
	llm     *llmclient.Client
	corpus  tropeSampler
	prompts *promptregistry.Registry
	logger  *slog.Logger
}

// New constructs an act Engine.
func New(llm *llmclient.Client, corpus tropeSampler, prompts *promptregistry.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{llm: llm, corpus: corpus, prompts: prompts, logger: logger}
}

type planResponse struct {
	Title              string            `json:"title"`
	PlannedScenes      []string          `json:"planned_scenes"`
	ThreadGoals        map[string]string `json:"thread_goals"`
	CharacterArcs      map[string]string `json:"character_arcs"`
	WorldEventsPlanned []string          `json:"world_events_planned"`
}

// PlanAct plans the next act: title, planned scene descriptions, thread
// goals, and character arcs, via a single strong-LLM structured call. On
// parse failure it falls back to a bare three-scene plan with no goals, so
// the conductor always has something to compose against.
func (e *Engine) PlanAct(ctx context.Context, world *types.WorldState) *types.Act {
	actNumber := len(world.Acts) + 1

	prevSummary := "(This is the first act)"
	if len(world.Acts) > 0 {
		prev := world.Acts[len(world.Acts)-1]
		if prev.ContextEvolution != "" {
			prevSummary = prev.ContextEvolution
		} else {
			prevSummary = fmt.Sprintf("Act %d completed.", prev.Number)
		}
	}

	teleology, context := "", ""
	if world.TCCN != nil {
		teleology, context = world.TCCN.Teleology, world.TCCN.Context
	}

	prompt, err := e.prompts.Render("generators", "ACT_PLANNER", map[string]string{
		"teleology":            teleology,
		"context":              context,
		"thread_states":        threadStatesText(world.ThreadStates),
		"previous_act_summary": prevSummary,
		"characters_summary":   characterNames(world.Characters),
		"act_number":           fmt.Sprintf("%d", actNumber),
	})

	title := fmt.Sprintf("Act %d", actNumber)
	var plan types.ActPlan

	if err != nil {
		e.logger.Warn("act: plan prompt render failed, using minimal plan", "error", err)
		plan = minimalPlan()
	} else {
		var resp planResponse
		if llmErr := e.llm.CompleteStructured(ctx, types.TierStrong, "You are a master dramaturg planning the next act of a play.", prompt, "", &resp); llmErr != nil {
			e.logger.Warn("act: plan failed, using minimal plan", "act", actNumber, "error", llmErr)
			plan = minimalPlan()
		} else {
			if resp.Title != "" {
				title = resp.Title
			}
			plan = types.ActPlan{
				PlannedScenes:      resp.PlannedScenes,
				ThreadGoals:        resp.ThreadGoals,
				CharacterArcs:      resp.CharacterArcs,
				WorldEventsPlanned: resp.WorldEventsPlanned,
			}
			if len(plan.PlannedScenes) == 0 {
				plan.PlannedScenes = defaultScenes()
			}
		}
	}

	a := types.Act{
		Number: actNumber,
		Title:  title,
		Plan:   &plan,
		Status: types.ActStatusPlanned,
	}
	world.Acts = append(world.Acts, a)
	world.CurrentActIndex = len(world.Acts) - 1
	world.CurrentSceneIndex = 0
	world.CurrentBeatIndex = 0

	return &world.Acts[len(world.Acts)-1]
}

func minimalPlan() types.ActPlan {
	return types.ActPlan{
		PlannedScenes:      defaultScenes(),
		ThreadGoals:        map[string]string{},
		CharacterArcs:      map[string]string{},
		WorldEventsPlanned: []string{},
	}
}

func defaultScenes() []string {
	scenes := make([]string, defaultPlannedScenes)
	for i := range scenes {
		scenes[i] = fmt.Sprintf("Scene %d", i+1)
	}
	return scenes
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

func characterNames(characters map[string]types.Character) string {
	names := make([]string, 0, len(characters))
	for name := range characters {
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func recentBeatSummaries(act *types.Act) string {
	var all []string
	for _, s := range act.Scenes {
		for _, b := range s.Beats {
			all = append(all, fmt.Sprintf("- %s: %s", b.Actor, b.ActualOutcome))
		}
	}
	if len(all) == 0 {
		return "(no beats yet)"
	}
	start := len(all) - recentBeatsForSummary
	if start < 0 {
		start = 0
	}
	return strings.Join(all[start:], "\n")
}
