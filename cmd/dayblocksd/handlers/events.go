package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mkarlsen/dayblocks/internal/db"
	apperrors "github.com/mkarlsen/dayblocks/internal/errors"
	"github.com/mkarlsen/dayblocks/internal/models"
	"github.com/mkarlsen/dayblocks/internal/privacy"
)

const maxEventsPerQuery = 10000

// EventHandler handles event ingestion and inspection.
type EventHandler struct {
	repo  *db.Repository
	hub   Broadcaster
	nowFn func() time.Time
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(repo *db.Repository, hub Broadcaster) *EventHandler {
	return &EventHandler{repo: repo, hub: hub, nowFn: time.Now}
}

// eventRequest is the ingestion payload. The timestamp accepts either
// unix seconds or an RFC3339 string so that collectors in different
// runtimes can submit without converting.
type eventRequest struct {
	TS         json.RawMessage   `json:"ts"`
	SourceKind models.SourceKind `json:"source_kind"`
	Entity     string            `json:"entity"`
	Title      string            `json:"title"`
	Origin     string            `json:"origin"`
}

// parseTS accepts a unix-seconds number or an RFC3339 string.
func parseTS(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, apperrors.New(apperrors.ErrInvalidEvent, "ts is required")
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return 0, apperrors.Newf(apperrors.ErrInvalidEvent, "ts is not RFC3339: %q", s)
		}
		return t.Unix(), nil
	}

	return 0, apperrors.New(apperrors.ErrInvalidEvent, "ts must be unix seconds or an RFC3339 string")
}

// Submit handles POST /api/events
func (h *EventHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, apperrors.ErrInvalidEvent, "invalid request body")
		return
	}

	ts, err := parseTS(req.TS)
	if err != nil {
		writeError(w, err)
		return
	}

	tracking, err := h.repo.GetTracking()
	if err != nil {
		writeError(w, err)
		return
	}
	if tracking.EffectivePaused(h.nowFn().Unix()) {
		// Paused tracking discards observations instead of storing them.
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"stored": false,
			"reason": "tracking_paused",
		})
		return
	}

	settings, err := h.repo.GetSettings()
	if err != nil {
		writeError(w, err)
		return
	}

	event := &models.Event{
		TS:         ts,
		SourceKind: req.SourceKind,
		Entity:     strings.TrimSpace(req.Entity),
		Title:      req.Title,
		Origin:     req.Origin,
	}

	// Capture granularity is enforced at ingest: what is never stored
	// can never leak through a later settings change.
	if !settings.StoreTitles {
		event.Title = ""
	}
	if !settings.StoreExePath && event.SourceKind.EntityKind() == models.ItemApp {
		event.Entity = filepath.Base(event.Entity)
	}

	if err := h.repo.AppendEvent(event); err != nil {
		writeError(w, err)
		return
	}

	h.hub.Publish(EventStored, map[string]interface{}{
		"id":          event.ID,
		"ts":          event.TS,
		"source_kind": string(event.SourceKind),
	})

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"stored": true,
		"event":  event,
	})
}

// List handles GET /api/events?from=&to=&limit=
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	from, err := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
	if err != nil {
		badRequest(w, apperrors.ErrInvalidRange, "from must be unix seconds")
		return
	}
	to, err := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
	if err != nil {
		badRequest(w, apperrors.ErrInvalidRange, "to must be unix seconds")
		return
	}
	if to <= from {
		badRequest(w, apperrors.ErrInvalidRange, "to must be after from")
		return
	}

	limit := maxEventsPerQuery
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			badRequest(w, apperrors.ErrInvalidRange, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	events, err := h.repo.EventsInRange(from, to, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	// Redaction applies to reads, not storage: rules added after the
	// fact still hide historical events.
	filter, err := privacy.Load(h.repo)
	if err != nil {
		writeError(w, err)
		return
	}
	events = filter.FilterEvents(events)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
