// Package handlers provides REST API handlers for the dayblocks service.
package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/mkarlsen/dayblocks/internal/errors"
	"github.com/mkarlsen/dayblocks/internal/logging"
)

// Broadcaster pushes state-change notifications to connected UI clients.
type Broadcaster interface {
	Publish(messageType string, data map[string]interface{})
}

// Message types published on state changes.
const (
	EventStored          = "event.stored"
	EventTrackingPaused  = "tracking.paused"
	EventTrackingResumed = "tracking.resumed"
	EventSettingsUpdated = "settings.updated"
	EventRulesUpdated    = "rules.updated"
	EventDataDeleted     = "data.deleted"
)

// noopBroadcaster is used when no WebSocket hub is wired (tests).
type noopBroadcaster struct{}

func (noopBroadcaster) Publish(string, map[string]interface{}) {}

// NoopBroadcaster returns a Broadcaster that discards all messages.
func NoopBroadcaster() Broadcaster { return noopBroadcaster{} }

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("encode response", err)
	}
}

// writeError maps an error to the JSON error envelope and HTTP status.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.Code(err)
	status := http.StatusInternalServerError

	switch code {
	case apperrors.ErrInvalidRequest, apperrors.ErrInvalidEvent, apperrors.ErrInvalidRange,
		apperrors.ErrInvalidSettings, apperrors.ErrInvalidRule,
		apperrors.ErrInvalidBlockID:
		status = http.StatusBadRequest
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		logging.Error("request failed", err)
	}

	message := err.Error()
	if appErr, ok := err.(*apperrors.AppError); ok {
		message = appErr.Message
	}

	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    string(code),
			"message": message,
		},
	})
}

// badRequest writes a 400 with the given code and message.
func badRequest(w http.ResponseWriter, code apperrors.ErrorCode, message string) {
	writeError(w, apperrors.New(code, message))
}

// methodNotAllowed rejects requests with an unexpected method.
func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    "METHOD_NOT_ALLOWED",
			"message": "method not allowed",
		},
	})
}
