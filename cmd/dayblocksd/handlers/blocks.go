package handlers

import (
	"net/http"
	"strconv"

	apperrors "github.com/mkarlsen/dayblocks/internal/errors"
	"github.com/mkarlsen/dayblocks/internal/timeline"
)

const defaultTopLimit = 5

// BlockHandler serves derived blocks, the day timeline, and the live
// now snapshot.
type BlockHandler struct {
	svc *timeline.Service
}

// NewBlockHandler creates a new BlockHandler.
func NewBlockHandler(svc *timeline.Service) *BlockHandler {
	return &BlockHandler{svc: svc}
}

// tzOffset parses the tz_offset query parameter (minutes east of UTC).
// Missing means UTC.
func tzOffset(r *http.Request) (int, error) {
	s := r.URL.Query().Get("tz_offset")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < -14*60 || n > 14*60 {
		return 0, apperrors.New(apperrors.ErrInvalidRange, "tz_offset must be minutes in [-840, 840]")
	}
	return n, nil
}

// topLimit parses the top query parameter.
func topLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("top")
	if s == "" {
		return defaultTopLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 100 {
		return 0, apperrors.New(apperrors.ErrInvalidRange, "top must be in [1, 100]")
	}
	return n, nil
}

// Day handles GET /api/blocks/day?date&tz_offset&top
func (h *BlockHandler) Day(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	tz, err := tzOffset(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := topLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	blocks, err := h.svc.BlocksForDay(r.URL.Query().Get("date"), tz, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"blocks": blocks,
		"count":  len(blocks),
	})
}

// Today handles GET /api/blocks/today?tz_offset&top
func (h *BlockHandler) Today(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	tz, err := tzOffset(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := topLimit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	blocks, err := h.svc.BlocksForToday(tz, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"blocks": blocks,
		"count":  len(blocks),
	})
}

// Timeline handles GET /api/timeline/day?date&tz_offset
func (h *BlockHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	tz, err := tzOffset(r)
	if err != nil {
		writeError(w, err)
		return
	}

	segments, err := h.svc.TimelineForDay(r.URL.Query().Get("date"), tz)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"segments": segments,
		"count":    len(segments),
	})
}

// Now handles GET /api/now?lookback
func (h *BlockHandler) Now(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	lookback := int64(timeline.DefaultLookbackSeconds)
	if s := r.URL.Query().Get("lookback"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 1 || n > 86400 {
			badRequest(w, apperrors.ErrInvalidRange, "lookback must be seconds in [1, 86400]")
			return
		}
		lookback = n
	}

	snapshot, err := h.svc.Now(lookback)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}
