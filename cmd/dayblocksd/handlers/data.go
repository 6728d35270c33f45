package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mkarlsen/dayblocks/internal/db"
	apperrors "github.com/mkarlsen/dayblocks/internal/errors"
	"github.com/mkarlsen/dayblocks/internal/timeline"
)

// DataHandler handles bulk deletion. Deletions remove events and the
// reviews of blocks inside the range in one transaction; derived
// results are recomputed from what remains.
type DataHandler struct {
	repo *db.Repository
	hub  Broadcaster
}

// NewDataHandler creates a new DataHandler.
func NewDataHandler(repo *db.Repository, hub Broadcaster) *DataHandler {
	return &DataHandler{repo: repo, hub: hub}
}

// DeleteRange handles POST /api/data/delete-range {from_ts, to_ts}
func (h *DataHandler) DeleteRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		FromTS int64 `json:"from_ts"`
		ToTS   int64 `json:"to_ts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, apperrors.ErrInvalidRequest, "invalid request body")
		return
	}

	h.deleteRange(w, req.FromTS, req.ToTS, "range")
}

// DeleteDay handles POST /api/data/delete-day {date, tz_offset_minutes}
func (h *DataHandler) DeleteDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req struct {
		Date            string `json:"date"`
		TZOffsetMinutes int    `json:"tz_offset_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, apperrors.ErrInvalidRequest, "invalid request body")
		return
	}

	from, to, err := timeline.DayBounds(req.Date, req.TZOffsetMinutes)
	if err != nil {
		writeError(w, err)
		return
	}

	h.deleteRange(w, from, to, "day")
}

// Wipe handles POST /api/data/wipe. Settings, privacy rules, and the
// tracking state survive a wipe.
func (h *DataHandler) Wipe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	events, reviews, err := h.repo.WipeAll()
	if err != nil {
		writeError(w, err)
		return
	}

	h.hub.Publish(EventDataDeleted, map[string]interface{}{
		"scope":           "all",
		"events_deleted":  events,
		"reviews_deleted": reviews,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events_deleted":  events,
		"reviews_deleted": reviews,
	})
}

func (h *DataHandler) deleteRange(w http.ResponseWriter, from, to int64, scope string) {
	events, reviews, err := h.repo.DeleteRange(from, to)
	if err != nil {
		writeError(w, err)
		return
	}

	h.hub.Publish(EventDataDeleted, map[string]interface{}{
		"scope":           scope,
		"from_ts":         from,
		"to_ts":           to,
		"events_deleted":  events,
		"reviews_deleted": reviews,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events_deleted":  events,
		"reviews_deleted": reviews,
	})
}
