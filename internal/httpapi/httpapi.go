// Package httpapi exposes the narrative engine over HTTP, JSON bodies
// throughout, under the /api/narrative prefix. Routing uses Go 1.22+
// method-pattern http.ServeMux matching, following the teacher's health
// package idiom.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/MrWong99/playwright-engine/internal/conductor"
	"github.com/MrWong99/playwright-engine/internal/director"
	"github.com/MrWong99/playwright-engine/internal/progress"
	"github.com/MrWong99/playwright-engine/internal/worldinit"
	"github.com/MrWong99/playwright-engine/internal/worldstore"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

// EventPublisher fans out act-completion milestones to an external system
// (e.g. Kafka). It is optional: a nil publisher means advance handlers only
// update in-memory world state and the SSE progress bus.
type EventPublisher interface {
	PublishActCompleted(ctx context.Context, worldID string, event conductor.Event) error
}

// Handler serves the narrative engine's REST and SSE surface.
type Handler struct {
	store     *worldstore.Store
	init      *worldinit.Engine
	conductor *conductor.Conductor
	director  *director.Director
	bus       progress.Bus
	publisher EventPublisher
	logger    *slog.Logger
}

// New constructs a Handler. bus may be nil, in which case progress
// streaming endpoints serve frames from a fresh in-process ChannelBus.
func New(store *worldstore.Store, init *worldinit.Engine, cond *conductor.Conductor, dir *director.Director, bus progress.Bus, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if bus == nil {
		bus = progress.NewChannelBus()
	}
	return &Handler{store: store, init: init, conductor: cond, director: dir, bus: bus, logger: logger}
}

// SetEventPublisher attaches an external event publisher. Called by app
// wiring after New when config.Events.KafkaBrokers is non-empty.
func (h *Handler) SetEventPublisher(p EventPublisher) {
	h.publisher = p
}

// publishActCompletions forwards any EventActCompleted entries in events to
// the configured publisher, if any. Failures are logged by the publisher
// itself and never surfaced to the HTTP caller.
func (h *Handler) publishActCompletions(ctx context.Context, worldID string, events []conductor.Event) {
	if h.publisher == nil {
		return
	}
	for _, ev := range events {
		if ev.Type != conductor.EventActCompleted {
			continue
		}
		if err := h.publisher.PublishActCompleted(ctx, worldID, ev); err != nil {
			h.logger.Warn("httpapi: act-completed publish failed", "world_id", worldID, "err", err)
		}
	}
}

// Register adds every /api/narrative route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	const prefix = "/api/narrative"

	mux.HandleFunc("POST "+prefix+"/worlds", h.createWorld)
	mux.HandleFunc("GET "+prefix+"/worlds/stream", h.createWorldStream)
	mux.HandleFunc("GET "+prefix+"/worlds", h.listWorlds)
	mux.HandleFunc("GET "+prefix+"/worlds/{id}", h.getWorld)
	mux.HandleFunc("GET "+prefix+"/worlds/{id}/summary", h.getWorldSummary)
	mux.HandleFunc("DELETE "+prefix+"/worlds/{id}", h.deleteWorld)
	mux.HandleFunc("POST "+prefix+"/worlds/{id}/advance", h.advance)
	mux.HandleFunc("POST "+prefix+"/worlds/{id}/advance/scene", h.advanceScene)
	mux.HandleFunc("POST "+prefix+"/worlds/{id}/advance/act", h.advanceAct)
	mux.HandleFunc("GET "+prefix+"/worlds/{id}/stream", h.advanceStream)
	mux.HandleFunc("PUT "+prefix+"/worlds/{id}/mode", h.setMode)
	mux.HandleFunc("POST "+prefix+"/worlds/{id}/director/override-dice", h.directorOverrideDice)
	mux.HandleFunc("POST "+prefix+"/worlds/{id}/director/inject-event", h.directorInjectEvent)
	mux.HandleFunc("POST "+prefix+"/worlds/{id}/director/redirect-character", h.directorRedirectCharacter)
	mux.HandleFunc("POST "+prefix+"/worlds/{id}/director/force-trope", h.directorForceTrope)
	mux.HandleFunc("POST "+prefix+"/worlds/{id}/director/choose-thread", h.directorChooseThread)
	mux.HandleFunc("GET "+prefix+"/worlds/{id}/acts", h.getActs)
	mux.HandleFunc("GET "+prefix+"/worlds/{id}/characters", h.getCharacters)
	mux.HandleFunc("GET "+prefix+"/worlds/{id}/threads", h.getThreads)
	mux.HandleFunc("GET "+prefix+"/worlds/{id}/prose", h.getProse)
	mux.HandleFunc("GET "+prefix+"/worlds/{id}/dice-history", h.getDiceHistory)
}

// ─── JSON helpers ──────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// worldEntry looks up the world by path id, writing a 404 on failure.
func (h *Handler) worldEntry(w http.ResponseWriter, r *http.Request) (*worldstore.Entry, bool) {
	id := r.PathValue("id")
	entry, err := h.store.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "world not found: "+id)
		return nil, false
	}
	return entry, true
}

// ─── World lifecycle ────────────────────────────────────────────────────────

type createWorldRequest struct {
	SeedDescription string           `json:"seed_description"`
	Mode            types.EngineMode `json:"mode"`
	TropePoolSize   int              `json:"trope_pool_size"`
	NumCharacters   int              `json:"num_characters"`
}

type createWorldResponse struct {
	WorldID       string   `json:"world_id"`
	Status        string   `json:"status"`
	Characters    []string `json:"characters"`
	ThreadCount   int      `json:"thread_count"`
	TropePoolSize int      `json:"trope_pool_size"`
}

func (h *Handler) buildWorld(ctx context.Context, req createWorldRequest, onProgress worldinit.ProgressFunc) (string, *types.WorldState) {
	world := h.init.Initialize(ctx, req.SeedDescription, worldinit.Options{
		Mode:          req.Mode,
		TropePoolSize: req.TropePoolSize,
		NumCharacters: req.NumCharacters,
		OnProgress:    onProgress,
	})
	id := h.store.Create(world)
	return id, world
}

func summaryResponse(id string, world *types.WorldState) createWorldResponse {
	names := make([]string, 0, len(world.Characters))
	for name := range world.Characters {
		names = append(names, name)
	}
	return createWorldResponse{
		WorldID:       id,
		Status:        string(world.Status),
		Characters:    names,
		ThreadCount:   len(world.ThreadStates),
		TropePoolSize: len(world.GlobalTropePool),
	}
}

// createWorld handles POST /worlds (synchronous).
func (h *Handler) createWorld(w http.ResponseWriter, r *http.Request) {
	var req createWorldRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, world := h.buildWorld(r.Context(), req, nil)
	writeJSON(w, http.StatusCreated, summaryResponse(id, world))
}

// createWorldStream handles GET /worlds/stream, pushing progress frames as
// SSE while the world is built, ending with a terminal {"step":"done", ...}
// frame.
//
// World construction runs on context.Background() in its own goroutine, so a
// client that disconnects mid-build stops the writer loop below but does not
// abort character generation: the world still finishes and lands in the
// store. done signals the background build to stop blocking on frame sends
// once nobody is reading them anymore, without cancelling the build itself.
func (h *Handler) createWorldStream(w http.ResponseWriter, r *http.Request) {
	var req createWorldRequest
	req.SeedDescription = r.URL.Query().Get("seed_description")
	req.Mode = types.EngineMode(r.URL.Query().Get("mode"))

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	frames := make(chan []byte)
	done := make(chan struct{})

	send := func(body []byte) {
		select {
		case frames <- body:
		case <-done:
		}
	}
	onProgress := func(step, detail string) {
		body, err := json.Marshal(map[string]string{"step": step, "detail": detail})
		if err != nil {
			return
		}
		send(body)
	}

	go func() {
		defer close(frames)
		id, world := h.buildWorld(context.Background(), req, onProgress)
		resp := summaryResponse(id, world)
		doneFrame, err := json.Marshal(map[string]any{
			"step": "done", "world_id": resp.WorldID, "status": resp.Status,
			"characters": resp.Characters, "thread_count": resp.ThreadCount, "trope_pool_size": resp.TropePoolSize,
		})
		if err == nil {
			send(doneFrame)
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			close(done)
			return
		case body, ok := <-frames:
			if !ok {
				return
			}
			w.Write([]byte("data: " + string(body) + "\n\n"))
			flusher.Flush()
		}
	}
}

// listWorlds handles GET /worlds.
func (h *Handler) listWorlds(w http.ResponseWriter, r *http.Request) {
	worlds := h.store.List()
	summaries := make([]createWorldResponse, 0, len(worlds))
	for _, world := range worlds {
		summaries = append(summaries, summaryResponse(world.ID, world))
	}
	writeJSON(w, http.StatusOK, summaries)
}

// getWorld handles GET /worlds/{id}.
func (h *Handler) getWorld(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	entry.Lock()
	defer entry.Unlock()
	writeJSON(w, http.StatusOK, entry.World)
}

// deleteWorld handles DELETE /worlds/{id}.
func (h *Handler) deleteWorld(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(id); err != nil {
		writeError(w, http.StatusNotFound, "world not found: "+id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
