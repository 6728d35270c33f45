package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mkarlsen/dayblocks/internal/db"
	apperrors "github.com/mkarlsen/dayblocks/internal/errors"
	"github.com/mkarlsen/dayblocks/internal/models"
)

// ReviewHandler handles block review annotations.
type ReviewHandler struct {
	repo *db.Repository
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(repo *db.Repository) *ReviewHandler {
	return &ReviewHandler{repo: repo}
}

// blockIDFromPath extracts the block id path suffix.
func blockIDFromPath(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}

// Handle dispatches /api/reviews/{block_id} by method.
func (h *ReviewHandler) Handle(w http.ResponseWriter, r *http.Request) {
	blockID := blockIDFromPath(r.URL.Path, "/api/reviews/")
	if blockID == "" || strings.Contains(blockID, "/") {
		badRequest(w, apperrors.ErrInvalidBlockID, "block id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, blockID)
	case http.MethodPut, http.MethodPost:
		h.upsert(w, r, blockID)
	default:
		methodNotAllowed(w)
	}
}

func (h *ReviewHandler) get(w http.ResponseWriter, blockID string) {
	review, err := h.repo.GetReview(blockID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *ReviewHandler) upsert(w http.ResponseWriter, r *http.Request, blockID string) {
	var req struct {
		Skipped    bool     `json:"skipped"`
		SkipReason string   `json:"skip_reason"`
		Doing      string   `json:"doing"`
		Output     string   `json:"output"`
		Next       string   `json:"next"`
		Tags       []string `json:"tags"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, apperrors.ErrInvalidRequest, "invalid request body")
		return
	}

	review := &models.Review{
		BlockID:    blockID,
		Skipped:    req.Skipped,
		SkipReason: req.SkipReason,
		Doing:      req.Doing,
		Output:     req.Output,
		Next:       req.Next,
		Tags:       req.Tags,
	}
	review.Touch()

	if err := h.repo.UpsertReview(review); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, review)
}
