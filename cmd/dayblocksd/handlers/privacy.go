package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mkarlsen/dayblocks/internal/db"
	apperrors "github.com/mkarlsen/dayblocks/internal/errors"
	"github.com/mkarlsen/dayblocks/internal/models"
)

// PrivacyHandler handles redaction rule management.
type PrivacyHandler struct {
	repo *db.Repository
	hub  Broadcaster
}

// NewPrivacyHandler creates a new PrivacyHandler.
func NewPrivacyHandler(repo *db.Repository, hub Broadcaster) *PrivacyHandler {
	return &PrivacyHandler{repo: repo, hub: hub}
}

// Rules dispatches /api/privacy/rules by method.
func (h *PrivacyHandler) Rules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodPost:
		h.create(w, r)
	default:
		methodNotAllowed(w)
	}
}

// Delete handles DELETE /api/privacy/rules/{id}
func (h *PrivacyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/privacy/rules/")
	if id == "" || strings.Contains(id, "/") {
		badRequest(w, apperrors.ErrInvalidRule, "rule id is required")
		return
	}

	if err := h.repo.DeleteRule(id); err != nil {
		writeError(w, err)
		return
	}

	h.hub.Publish(EventRulesUpdated, map[string]interface{}{
		"action": "deleted",
		"id":     id,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true})
}

func (h *PrivacyHandler) list(w http.ResponseWriter) {
	rules, err := h.repo.ListRules()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

func (h *PrivacyHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind   models.RuleKind   `json:"kind"`
		Value  string            `json:"value"`
		Action models.RuleAction `json:"action"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, apperrors.ErrInvalidRequest, "invalid request body")
		return
	}

	rule := &models.PrivacyRule{
		Kind:   req.Kind,
		Value:  strings.TrimSpace(req.Value),
		Action: req.Action,
	}

	if err := h.repo.CreateRule(rule); err != nil {
		writeError(w, err)
		return
	}

	h.hub.Publish(EventRulesUpdated, map[string]interface{}{
		"action": "created",
		"id":     rule.ID,
	})

	writeJSON(w, http.StatusCreated, rule)
}
