package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mkarlsen/dayblocks/internal/db"
	apperrors "github.com/mkarlsen/dayblocks/internal/errors"
	"github.com/mkarlsen/dayblocks/internal/models"
)

// SettingsHandler handles runtime configuration.
type SettingsHandler struct {
	repo *db.Repository
	hub  Broadcaster
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(repo *db.Repository, hub Broadcaster) *SettingsHandler {
	return &SettingsHandler{repo: repo, hub: hub}
}

// Handle dispatches /api/settings by method. A patch carries only the
// fields to change; block boundary geometry follows the new value for
// all days, past ones included.
func (h *SettingsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w)
	case http.MethodPost, http.MethodPatch, http.MethodPut:
		h.update(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *SettingsHandler) get(w http.ResponseWriter) {
	settings, err := h.repo.GetSettings()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var patch models.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		badRequest(w, apperrors.ErrInvalidRequest, "invalid request body")
		return
	}

	current, err := h.repo.GetSettings()
	if err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.repo.UpdateSettings(patch.Apply(current))
	if err != nil {
		writeError(w, err)
		return
	}

	h.hub.Publish(EventSettingsUpdated, map[string]interface{}{
		"version":       updated.Version,
		"block_seconds": updated.BlockSeconds,
	})

	writeJSON(w, http.StatusOK, updated)
}
