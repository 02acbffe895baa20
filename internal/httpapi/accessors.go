package httpapi

import (
	"net/http"

	"github.com/MrWong99/playwright-engine/pkg/types"
)

// sceneSummary is a condensed projection of an EngineScene for the timeline
// accessor: actors, setting and beat count, without the full prose payload.
type sceneSummary struct {
	Number    int      `json:"number"`
	Actors    []string `json:"actors"`
	Setting   string   `json:"setting"`
	BeatCount int      `json:"beat_count"`
	Status    string   `json:"status"`
}

// actSummary is a condensed projection of an Act: title, status, and its
// scenes reduced to sceneSummary.
type actSummary struct {
	Number int            `json:"number"`
	Title  string         `json:"title"`
	Status string         `json:"status"`
	Scenes []sceneSummary `json:"scenes"`
}

// worldSummaryResponse is the full acts -> scenes -> beats timeline
// projection served by getWorldSummary, condensed so a client can render a
// table of contents without pulling the entire WorldState (which includes
// full beat prose and dice history).
type worldSummaryResponse struct {
	WorldID      string       `json:"world_id"`
	Status       string       `json:"status"`
	CurrentAct   int          `json:"current_act_index"`
	CurrentScene int          `json:"current_scene_index"`
	CurrentBeat  int          `json:"current_beat_index"`
	Acts         []actSummary `json:"acts"`
}

func toActSummaries(acts []types.Act) []actSummary {
	summaries := make([]actSummary, 0, len(acts))
	for _, act := range acts {
		scenes := make([]sceneSummary, 0, len(act.Scenes))
		for _, scene := range act.Scenes {
			scenes = append(scenes, sceneSummary{
				Number:    scene.Number,
				Actors:    scene.Actors,
				Setting:   scene.Setting,
				BeatCount: len(scene.Beats),
				Status:    string(scene.Status),
			})
		}
		summaries = append(summaries, actSummary{
			Number: act.Number,
			Title:  act.Title,
			Status: string(act.Status),
			Scenes: scenes,
		})
	}
	return summaries
}

// getWorldSummary handles GET /worlds/{id}/summary.
func (h *Handler) getWorldSummary(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	entry.Lock()
	defer entry.Unlock()

	world := entry.World
	writeJSON(w, http.StatusOK, worldSummaryResponse{
		WorldID:      world.ID,
		Status:       string(world.Status),
		CurrentAct:   world.CurrentActIndex,
		CurrentScene: world.CurrentSceneIndex,
		CurrentBeat:  world.CurrentBeatIndex,
		Acts:         toActSummaries(world.Acts),
	})
}

// getActs handles GET /worlds/{id}/acts.
func (h *Handler) getActs(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	entry.Lock()
	defer entry.Unlock()
	writeJSON(w, http.StatusOK, entry.World.Acts)
}

// getCharacters handles GET /worlds/{id}/characters.
func (h *Handler) getCharacters(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	entry.Lock()
	defer entry.Unlock()
	writeJSON(w, http.StatusOK, entry.World.Characters)
}

// getThreads handles GET /worlds/{id}/threads.
func (h *Handler) getThreads(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	entry.Lock()
	defer entry.Unlock()
	writeJSON(w, http.StatusOK, entry.World.ThreadStates)
}

// getProse handles GET /worlds/{id}/prose, returning the accumulated
// theatrical prose for the entire run so far.
func (h *Handler) getProse(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	entry.Lock()
	defer entry.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"prose": entry.World.AccumulatedProse})
}

// diceHistoryEntry pairs a DiceRoll with the scene/beat coordinates it was
// rolled at, since DiceRoll itself carries no positional information.
type diceHistoryEntry struct {
	ActNumber   int            `json:"act_number"`
	SceneNumber int            `json:"scene_number"`
	BeatID      string         `json:"beat_id"`
	Actor       string         `json:"actor"`
	Roll        types.DiceRoll `json:"roll"`
}

// getDiceHistory handles GET /worlds/{id}/dice-history. It reads live beat
// state out of the in-memory WorldState rather than the optional audit
// sink: the audit sink is a side-channel log for external analysis, not the
// source of truth the API reads back from.
func (h *Handler) getDiceHistory(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	entry.Lock()
	defer entry.Unlock()

	history := make([]diceHistoryEntry, 0)
	for _, act := range entry.World.Acts {
		for _, scene := range act.Scenes {
			for _, beat := range scene.Beats {
				if beat.DiceRoll == nil {
					continue
				}
				history = append(history, diceHistoryEntry{
					ActNumber:   act.Number,
					SceneNumber: scene.Number,
					BeatID:      beat.ID,
					Actor:       beat.Actor,
					Roll:        *beat.DiceRoll,
				})
			}
		}
	}
	writeJSON(w, http.StatusOK, history)
}
