package scene

import (
	"context"

	"github.com/MrWong99/playwright-engine/pkg/types"
)

// GeneratePlannedActions asks the beat engine for the scene's intended
// actions and stores them for strictly-ordered resolution.
func (e *Engine) GeneratePlannedActions(ctx context.Context, world *types.WorldState, act *types.Act, scn *types.EngineScene) {
	actGoals := map[string]string{}
	if act.Plan != nil {
		actGoals = act.Plan.ThreadGoals
	}
	scn.PlannedActions = e.beats.GenerateActions(ctx, world, scn, actGoals, scn.NarrativeThreads, world.Characters)
	scn.Status = types.SceneStatusInProgress
}

// ResolveNextBeat resolves the next pending planned action in scn, appends
// the resulting Beat, and reports whether a beat was actually resolved
// (false once every planned action has already been consumed).
func (e *Engine) ResolveNextBeat(ctx context.Context, world *types.WorldState, scn *types.EngineScene) (types.Beat, bool) {
	pending := len(scn.Beats)
	if pending >= len(scn.PlannedActions) {
		return types.Beat{}, false
	}
	next := scn.PlannedActions[pending]
	b := e.beats.ResolveBeat(ctx, world, scn, next.Actor, next.Action, nil)
	scn.Beats = append(scn.Beats, b)
	world.CurrentBeatIndex = len(scn.Beats)
	return b, true
}

// HasPendingBeats reports whether scn has planned actions not yet resolved.
func (e *Engine) HasPendingBeats(scn *types.EngineScene) bool {
	return len(scn.Beats) < len(scn.PlannedActions)
}

// ResolveBeatOverride resolves a single director-forced beat outside the
// normal planned-action queue: the dice roll is pinned to forcedRoll rather
// than sampled, and the resulting beat is appended directly without
// consuming a slot from scn.PlannedActions.
func (e *Engine) ResolveBeatOverride(ctx context.Context, world *types.WorldState, scn *types.EngineScene, actor, action string, forcedRoll int) types.Beat {
	b := e.beats.ResolveBeat(ctx, world, scn, actor, action, &forcedRoll)
	scn.Beats = append(scn.Beats, b)
	world.CurrentBeatIndex = len(scn.Beats)
	return b
}
