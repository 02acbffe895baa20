package httpapi

import (
	"errors"
	"net/http"

	"github.com/MrWong99/playwright-engine/internal/director"
	"github.com/MrWong99/playwright-engine/pkg/types"
)

// setMode handles PUT /worlds/{id}/mode.
func (h *Handler) setMode(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	var req struct {
		Mode types.EngineMode `json:"mode"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode != types.ModeAutonomous && req.Mode != types.ModeDirector {
		writeError(w, http.StatusBadRequest, "mode must be \"autonomous\" or \"director\"")
		return
	}

	entry.Lock()
	entry.World.Mode = req.Mode
	entry.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"mode": string(req.Mode)})
}

// directorError maps a director package sentinel error to an HTTP status.
func directorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, director.ErrNoCurrentScene):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, director.ErrCharacterNotFound), errors.Is(err, director.ErrThreadIndexOutOfRange):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// directorOverrideDice handles POST /worlds/{id}/director/override-dice.
func (h *Handler) directorOverrideDice(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	var req struct {
		Actor      string `json:"actor"`
		Action     string `json:"action"`
		ForcedRoll int    `json:"forced_roll"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ForcedRoll < 1 || req.ForcedRoll > 100 {
		writeError(w, http.StatusBadRequest, "forced_roll must be in [1,100]")
		return
	}

	entry.Lock()
	beat, err := h.director.OverrideDice(r.Context(), entry.World, req.Actor, req.Action, req.ForcedRoll)
	entry.Unlock()
	if err != nil {
		directorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, beat)
}

// directorInjectEvent handles POST /worlds/{id}/director/inject-event.
func (h *Handler) directorInjectEvent(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	var req struct {
		EventDescription string `json:"event_description"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry.Lock()
	event, err := h.director.InjectEvent(entry.World, req.EventDescription)
	entry.Unlock()
	if err != nil {
		directorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// directorRedirectCharacter handles POST /worlds/{id}/director/redirect-character.
func (h *Handler) directorRedirectCharacter(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	var req struct {
		CharacterName string `json:"character_name"`
		NewDirection  string `json:"new_direction"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry.Lock()
	char, err := h.director.RedirectCharacter(entry.World, req.CharacterName, req.NewDirection)
	entry.Unlock()
	if err != nil {
		directorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, char)
}

// directorForceTrope handles POST /worlds/{id}/director/force-trope.
func (h *Handler) directorForceTrope(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	var req struct {
		TropeQuery string `json:"trope_query"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry.Lock()
	tropes := h.director.ForceTrope(entry.World, req.TropeQuery)
	entry.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"tropes": tropes})
}

// directorChooseThread handles POST /worlds/{id}/director/choose-thread.
func (h *Handler) directorChooseThread(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.worldEntry(w, r)
	if !ok {
		return
	}
	var req struct {
		ThreadIndex int                `json:"thread_index"`
		NewStatus   types.ThreadStatus `json:"new_status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry.Lock()
	state, err := h.director.ChooseThread(entry.World, req.ThreadIndex, req.NewStatus)
	entry.Unlock()
	if err != nil {
		directorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
