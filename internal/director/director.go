// Package director implements the five manual overrides a human director can
// apply between autonomous advance steps. Unlike the conductor, these
// operations have no error firewall: a caller error (unknown character,
// out-of-range thread index) surfaces directly rather than being absorbed
// into a fallback.
package director

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/playwright-engine/internal/scene"
	"github.com/MrWong99/playwright-engine/internal/trope"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

const forceTropeSearchLimit = 3
const chooseThreadTensionBoost = 2

// ErrCharacterNotFound is returned by RedirectCharacter for an unknown name.
var ErrCharacterNotFound = fmt.Errorf("director: character not found")

// ErrThreadIndexOutOfRange is returned by ChooseThread for an invalid index.
var ErrThreadIndexOutOfRange = fmt.Errorf("director: thread index out of range")

// ErrNoCurrentScene is returned when an operation needs a current scene but
// the world has none yet (no act or no scene composed).
var ErrNoCurrentScene = fmt.Errorf("director: world has no current scene")

// Director applies manual interventions to a running world.
type Director struct {
	scenes *scene.Engine
	corpus *trope.Corpus
	logger *slog.Logger
}

// New constructs a Director.
func New(scenes *scene.Engine, corpus *trope.Corpus, logger *slog.Logger) *Director {
	if logger == nil {
		logger = slog.Default()
	}
	return &Director{scenes: scenes, corpus: corpus, logger: logger}
}

func record(world *types.WorldState, kind types.InterventionType, description string, data map[string]any) {
	world.DirectorInterventions = append(world.DirectorInterventions, types.DirectorIntervention{
		Timestamp:        time.Now(),
		InterventionType: kind,
		Description:      description,
		Data:             data,
	})
}

func currentScene(world *types.WorldState) (*types.EngineScene, error) {
	if len(world.Acts) == 0 {
		return nil, ErrNoCurrentScene
	}
	a := &world.Acts[world.CurrentActIndex]
	if len(a.Scenes) == 0 {
		return nil, ErrNoCurrentScene
	}
	return &a.Scenes[len(a.Scenes)-1], nil
}

// OverrideDice forces a specific dice roll for a single action, then
// resolves it as a beat exactly as the autonomous loop would.
func (d *Director) OverrideDice(ctx context.Context, world *types.WorldState, actor, action string, forcedRoll int) (types.Beat, error) {
	scn, err := currentScene(world)
	if err != nil {
		return types.Beat{}, err
	}

	record(world, types.InterventionOverrideDice, fmt.Sprintf("Forced roll %d for %s: %s", forcedRoll, actor, action), map[string]any{
		"actor": actor, "action": action, "forced_roll": forcedRoll,
	})

	b := d.scenes.ResolveBeatOverride(ctx, world, scn, actor, action, forcedRoll)
	return b, nil
}

// InjectEvent adds a director-authored world event to the current act.
func (d *Director) InjectEvent(world *types.WorldState, description string) (types.WorldEvent, error) {
	if len(world.Acts) == 0 {
		return types.WorldEvent{}, ErrNoCurrentScene
	}
	a := &world.Acts[world.CurrentActIndex]

	affected := make([]string, 0, len(world.Characters))
	for name := range world.Characters {
		affected = append(affected, name)
	}

	event := types.WorldEvent{
		Description:        description,
		ImpactOnContext:    "Director-injected: " + description,
		AffectedCharacters: affected,
	}
	a.WorldEvents = append(a.WorldEvents, event)

	record(world, types.InterventionInjectEvent, description, nil)
	return event, nil
}

// RedirectCharacter alters a character's ambitions and logs the redirect as
// a new short-term memory so subsequent beats take it into account.
func (d *Director) RedirectCharacter(world *types.WorldState, characterName, newDirection string) (types.Character, error) {
	char, ok := world.Characters[characterName]
	if !ok {
		return types.Character{}, ErrCharacterNotFound
	}

	char.Ambitions = newDirection
	char.ShortTermMemory = append(char.ShortTermMemory, "[Director] New direction: "+newDirection)
	world.Characters[characterName] = char

	record(world, types.InterventionRedirectCharacter, fmt.Sprintf("Redirected %s: %s", characterName, newDirection), map[string]any{
		"character": characterName,
	})
	return char, nil
}

// ForceTrope searches the corpus for tropes matching query and injects them
// into the world's global trope pool.
func (d *Director) ForceTrope(world *types.WorldState, query string) []types.Trope {
	result := d.corpus.Search(query, forceTropeSearchLimit)
	if len(result.Tropes) == 0 {
		return nil
	}

	world.GlobalTropePool = append(world.GlobalTropePool, result.Tropes...)

	names := make([]string, 0, len(result.Tropes))
	for _, t := range result.Tropes {
		names = append(names, t.Name)
	}
	record(world, types.InterventionForceTrope, "Injected tropes: "+joinNames(names), map[string]any{"query": query})
	return result.Tropes
}

// ChooseThread manually sets a thread's status, bumping its tension when
// moved to advancing.
func (d *Director) ChooseThread(world *types.WorldState, threadIndex int, newStatus types.ThreadStatus) (types.NarrativeThreadState, error) {
	if threadIndex < 0 || threadIndex >= len(world.ThreadStates) {
		return types.NarrativeThreadState{}, ErrThreadIndexOutOfRange
	}

	ts := world.ThreadStates[threadIndex]
	ts.Status = newStatus
	if newStatus == types.ThreadAdvancing {
		ts.TensionLevel += chooseThreadTensionBoost
		if ts.TensionLevel > 10 {
			ts.TensionLevel = 10
		}
	}
	world.ThreadStates[threadIndex] = ts

	record(world, types.InterventionChooseThread, fmt.Sprintf("Set thread %d to %s: %s", threadIndex, newStatus, ts.Thread.Thread), map[string]any{
		"thread_index": threadIndex,
	})
	return ts, nil
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
