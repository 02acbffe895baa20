// Package conductor drives the main advance loop: it auto-manages act and
// scene boundaries so a caller can simply ask for N more beats of story and
// get back a typed log of what happened.
package conductor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrWong99/playwright-engine/internal/act"
	"github.com/MrWong99/playwright-engine/internal/scene"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

// ErrLimitReached is returned by AdvanceScene and AdvanceAct when the safety
// limit on beats-per-scene or scenes-per-act is hit before the boundary is
// reached, to guard against a misbehaving plan stalling the loop forever.
var ErrLimitReached = errors.New("conductor: safety limit reached before boundary")

const maxBeatsPerScene = 20
const maxScenesPerAct = 100

// EventType tags the kind of progress event emitted by Advance.
type EventType string

const (
	EventActPlanned     EventType = "act_planned"
	EventSceneComposed  EventType = "scene_composed"
	EventBeatResolved   EventType = "beat_resolved"
	EventSceneCompleted EventType = "scene_completed"
	EventActCompleted   EventType = "act_completed"
)

// Event is a single step emitted while advancing a world.
type Event struct {
	Type        EventType
	ActNumber   int
	ActTitle    string
	SceneNumber int
	Actors      []string
	Setting     string
	BeatCount   int
	Beat        *types.Beat
	WorldEvents []string
}

// Conductor owns the act and scene engines and drives the advance loop.
type Conductor struct {
	acts   *act.Engine
	scenes *scene.Engine
	logger *slog.Logger
}

// New constructs a Conductor.
func New(acts *act.Engine, scenes *scene.Engine, logger *slog.Logger) *Conductor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conductor{acts: acts, scenes: scenes, logger: logger}
}

// Advance drives world forward by up to steps beats, auto-planning acts,
// composing scenes, and completing both as their boundaries are reached.
// Callers must hold the world's per-world lock for the whole call.
func (c *Conductor) Advance(ctx context.Context, world *types.WorldState, steps int) []Event {
	var events []Event

	for i := 0; i < steps; i++ {
		currentAct := c.ensureAct(ctx, world, &events)
		currentScene := c.ensureScene(ctx, world, currentAct, &events)

		if c.scenes.HasPendingBeats(currentScene) {
			b, ok := c.scenes.ResolveNextBeat(ctx, world, currentScene)
			if ok {
				world.Status = types.WorldBeatResolved
				events = append(events, Event{Type: EventBeatResolved, Beat: &b})
				continue
			}
		}

		c.scenes.CompleteScene(ctx, world, currentScene)
		world.Status = types.WorldSceneCompleted
		events = append(events, Event{
			Type:        EventSceneCompleted,
			SceneNumber: currentScene.Number,
			BeatCount:   len(currentScene.Beats),
		})
	}

	return events
}

// ensureAct plans a new act if none exists or the current one is completed.
func (c *Conductor) ensureAct(ctx context.Context, world *types.WorldState, events *[]Event) *types.Act {
	if len(world.Acts) == 0 || currentAct(world).Status == types.ActStatusCompleted {
		a := c.acts.PlanAct(ctx, world)
		world.Status = types.WorldActPlanned
		*events = append(*events, Event{Type: EventActPlanned, ActNumber: a.Number, ActTitle: a.Title})
		return a
	}
	return currentAct(world)
}

// ensureScene composes a new scene if none exists or the current one is
// completed, completing (and replanning) the act first if every planned
// scene has already run.
func (c *Conductor) ensureScene(ctx context.Context, world *types.WorldState, a *types.Act, events *[]Event) *types.EngineScene {
	if len(a.Scenes) == 0 || currentScene(world, a).Status == types.SceneStatusCompleted {
		if a.Plan != nil && len(a.Scenes) >= len(a.Plan.PlannedScenes) {
			c.acts.CompleteAct(ctx, world, a)
			world.Status = types.WorldActCompleted
			descriptions := make([]string, 0, len(a.WorldEvents))
			for _, we := range a.WorldEvents {
				descriptions = append(descriptions, we.Description)
			}
			*events = append(*events, Event{Type: EventActCompleted, ActNumber: a.Number, WorldEvents: descriptions})

			a = c.acts.PlanAct(ctx, world)
			world.Status = types.WorldActPlanned
			*events = append(*events, Event{Type: EventActPlanned, ActNumber: a.Number, ActTitle: a.Title})
		}

		scn := c.scenes.ComposeNextScene(ctx, world, a)
		c.scenes.GeneratePlannedActions(ctx, world, a, scn)
		world.Status = types.WorldSceneComposing
		*events = append(*events, Event{
			Type:        EventSceneComposed,
			SceneNumber: scn.Number,
			Actors:      scn.Actors,
			Setting:     scn.Setting,
			BeatCount:   len(scn.PlannedActions),
		})
		return scn
	}
	return currentScene(world, a)
}

func currentAct(world *types.WorldState) *types.Act {
	return &world.Acts[world.CurrentActIndex]
}

func currentScene(world *types.WorldState, a *types.Act) *types.EngineScene {
	return &a.Scenes[len(a.Scenes)-1]
}

// AdvanceScene drives world forward, one beat at a time, until the current
// scene completes or maxBeatsPerScene beats have resolved without reaching
// that boundary, whichever comes first.
func (c *Conductor) AdvanceScene(ctx context.Context, world *types.WorldState) ([]Event, error) {
	var all []Event
	for i := 0; i < maxBeatsPerScene; i++ {
		batch := c.Advance(ctx, world, 1)
		all = append(all, batch...)
		for _, ev := range batch {
			if ev.Type == EventSceneCompleted {
				return all, nil
			}
		}
	}
	return all, ErrLimitReached
}

// AdvanceAct drives world forward, one scene at a time, until the current
// act completes or maxScenesPerAct scenes have completed without reaching
// that boundary, whichever comes first.
func (c *Conductor) AdvanceAct(ctx context.Context, world *types.WorldState) ([]Event, error) {
	var all []Event
	for i := 0; i < maxScenesPerAct; i++ {
		batch, err := c.AdvanceScene(ctx, world)
		all = append(all, batch...)
		if err != nil {
			return all, err
		}
		for _, ev := range batch {
			if ev.Type == EventActCompleted {
				return all, nil
			}
		}
	}
	return all, ErrLimitReached
}
