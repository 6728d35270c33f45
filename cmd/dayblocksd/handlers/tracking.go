package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mkarlsen/dayblocks/internal/db"
	apperrors "github.com/mkarlsen/dayblocks/internal/errors"
)

// TrackingHandler handles the advisory pause switch. Pausing gates
// ingestion only; stored events are never touched.
type TrackingHandler struct {
	repo  *db.Repository
	hub   Broadcaster
	nowFn func() time.Time
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(repo *db.Repository, hub Broadcaster) *TrackingHandler {
	return &TrackingHandler{repo: repo, hub: hub, nowFn: time.Now}
}

// Pause handles POST /api/tracking/pause {minutes?}
func (h *TrackingHandler) Pause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Minutes int64 `json:"minutes"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, apperrors.ErrInvalidRequest, "invalid request body")
			return
		}
	}
	if req.Minutes < 0 {
		badRequest(w, apperrors.ErrInvalidRequest, "minutes must not be negative")
		return
	}

	var until int64
	if req.Minutes > 0 {
		until = h.nowFn().Unix() + req.Minutes*60
	}

	status, err := h.repo.SetTracking(true, until)
	if err != nil {
		writeError(w, err)
		return
	}

	h.hub.Publish(EventTrackingPaused, map[string]interface{}{
		"paused_until_ts": status.PausedUntilTS,
	})

	writeJSON(w, http.StatusOK, status)
}

// Resume handles POST /api/tracking/resume
func (h *TrackingHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	status, err := h.repo.SetTracking(false, 0)
	if err != nil {
		writeError(w, err)
		return
	}

	h.hub.Publish(EventTrackingResumed, nil)

	writeJSON(w, http.StatusOK, status)
}

// Status handles GET /api/tracking/status. A timed pause that has
// expired is persisted back as resumed on first observation.
func (h *TrackingHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	status, err := h.repo.GetTracking()
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.nowFn().Unix()
	if status.Paused && !status.EffectivePaused(now) {
		status, err = h.repo.SetTracking(false, 0)
		if err != nil {
			writeError(w, err)
			return
		}
		h.hub.Publish(EventTrackingResumed, nil)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"paused":          status.EffectivePaused(now),
		"paused_until_ts": status.PausedUntilTS,
		"updated_at":      status.UpdatedAt,
	})
}
