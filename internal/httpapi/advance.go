package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/MrWong99/playwright-engine/internal/conductor"
	"github.com/MrWong99/playwright-engine/internal/progress"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

type advanceRequest struct {
	Steps int `json:"steps"`
}

type eventView struct {
	Type        string      `json:"type"`
	ActNumber   int         `json:"act_number,omitempty"`
	ActTitle    string      `json:"act_title,omitempty"`
	SceneNumber int         `json:"scene_number,omitempty"`
	Actors      []string    `json:"actors,omitempty"`
	Setting     string      `json:"setting,omitempty"`
	BeatCount   int         `json:"beat_count,omitempty"`
	Beat        *types.Beat `json:"beat,omitempty"`
	WorldEvents []string    `json:"world_events,omitempty"`
}

func toEventViews(events []conductor.Event) []eventView {
	views := make([]eventView, 0, len(events))
	for _, ev := range events {
		views = append(views, eventView{
			Type:        string(ev.Type),
			ActNumber:   ev.ActNumber,
			ActTitle:    ev.ActTitle,
			SceneNumber: ev.SceneNumber,
			Actors:      ev.Actors,
			Setting:     ev.Setting,
			BeatCount:   ev.BeatCount,
			Beat:        ev.Beat,
			WorldEvents: ev.WorldEvents,
		})
	}
	return views
}

// advance handles POST /worlds/{id}/advance.
func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	var req advanceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry.Lock()
	events := h.conductor.Advance(r.Context(), entry.World, req.Steps)
	entry.Unlock()

	progress.PublishAll(h.bus, r.PathValue("id"), events)
	h.publishActCompletions(r.Context(), r.PathValue("id"), events)
	writeJSON(w, http.StatusOK, map[string]any{"events": toEventViews(events)})
}

// advanceScene handles POST /worlds/{id}/advance/scene.
func (h *Handler) advanceScene(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}

	entry.Lock()
	events, err := h.conductor.AdvanceScene(r.Context(), entry.World)
	entry.Unlock()

	progress.PublishAll(h.bus, r.PathValue("id"), events)
	h.publishActCompletions(r.Context(), r.PathValue("id"), events)
	resp := map[string]any{"events": toEventViews(events)}
	if err != nil {
		resp["warning"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// advanceAct handles POST /worlds/{id}/advance/act.
func (h *Handler) advanceAct(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}

	entry.Lock()
	events, err := h.conductor.AdvanceAct(r.Context(), entry.World)
	entry.Unlock()

	progress.PublishAll(h.bus, r.PathValue("id"), events)
	h.publishActCompletions(r.Context(), r.PathValue("id"), events)
	resp := map[string]any{"events": toEventViews(events)}
	if err != nil {
		resp["warning"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// advanceStream handles GET /worlds/{id}/stream?steps=N: it advances the
// world N beats one at a time, pushing every event as an SSE frame as soon
// as it's produced, so a client watching the stream sees beats arrive live
// rather than all at once at the end.
//
// The advance loop itself runs on context.Background() in its own goroutine,
// decoupled from the request: a client disconnecting stops the writer loop
// below, but the story keeps advancing against entry.World exactly as if
// someone were still watching. frames is sized to steps so the producer
// never blocks on a reader that stopped early.
func (h *Handler) advanceStream(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}

	steps := 1
	if raw := r.URL.Query().Get("steps"); raw != "" {
		var n int
		if err := json.Unmarshal([]byte(raw), &n); err == nil && n > 0 {
			steps = n
		}
	}

	flusher, flushOK := w.(http.Flusher)
	if !flushOK {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	worldID := r.PathValue("id")

	frames := make(chan []conductor.Event, steps)
	go func() {
		defer close(frames)
		for i := 0; i < steps; i++ {
			entry.Lock()
			events := h.conductor.Advance(context.Background(), entry.World, 1)
			entry.Unlock()
			frames <- events
		}
	}()

	for events := range frames {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		h.publishActCompletions(context.Background(), worldID, events)
		for _, ev := range events {
			frame := progress.Frame{WorldID: worldID, Event: ev}
			body, err := progress.MarshalSSE(frame)
			if err != nil {
				continue
			}
			w.Write(body)
		}
		flusher.Flush()
	}
}
