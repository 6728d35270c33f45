package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/dayblocks/internal/db"
	"github.com/mkarlsen/dayblocks/internal/models"
)

func setupRepo(t *testing.T) *db.Repository {
	t.Helper()

	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.NewMigrator(database.DB).Up())

	repo := db.NewRepository(database.DB)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %s", rec.Body.String())
	code, _ := errObj["code"].(string)
	return code
}

func TestSubmitEventStores(t *testing.T) {
	repo := setupRepo(t)
	h := NewEventHandler(repo, NoopBroadcaster())

	rec := postJSON(t, h.Submit, "/api/events", map[string]interface{}{
		"ts":          1710460800,
		"source_kind": "focus",
		"entity":      "code.exe",
		"title":       "main.go",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["stored"])

	events, err := repo.EventsInRange(0, 1800000000, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "code.exe", events[0].Entity)
	assert.Equal(t, "main.go", events[0].Title)
}

func TestSubmitEventAcceptsRFC3339(t *testing.T) {
	repo := setupRepo(t)
	h := NewEventHandler(repo, NoopBroadcaster())

	rec := postJSON(t, h.Submit, "/api/events", map[string]interface{}{
		"ts":          "2024-03-15T09:00:00Z",
		"source_kind": "tab_focus",
		"entity":      "github.com",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	events, err := repo.EventsInRange(0, 1800000000, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC).Unix(), events[0].TS)
}

func TestSubmitEventValidation(t *testing.T) {
	repo := setupRepo(t)
	h := NewEventHandler(repo, NoopBroadcaster())

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing ts", map[string]interface{}{"source_kind": "focus", "entity": "x"}},
		{"bad ts string", map[string]interface{}{"ts": "yesterday", "source_kind": "focus", "entity": "x"}},
		{"empty entity", map[string]interface{}{"ts": 1000, "source_kind": "focus"}},
		{"bad kind", map[string]interface{}{"ts": 1000, "source_kind": "mouse", "entity": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.Submit, "/api/events", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "INVALID_EVENT", errorCode(t, rec))
		})
	}
}

func TestSubmitEventPausedDiscards(t *testing.T) {
	repo := setupRepo(t)
	h := NewEventHandler(repo, NoopBroadcaster())

	_, err := repo.SetTracking(true, 0)
	require.NoError(t, err)

	rec := postJSON(t, h.Submit, "/api/events", map[string]interface{}{
		"ts": 1000, "source_kind": "focus", "entity": "code.exe",
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["stored"])

	events, err := repo.EventsInRange(0, 10000, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSubmitEventExpiredPauseStores(t *testing.T) {
	repo := setupRepo(t)
	h := NewEventHandler(repo, NoopBroadcaster())
	h.nowFn = func() time.Time { return time.Unix(5000, 0) }

	_, err := repo.SetTracking(true, 4000)
	require.NoError(t, err)

	rec := postJSON(t, h.Submit, "/api/events", map[string]interface{}{
		"ts": 4500, "source_kind": "focus", "entity": "code.exe",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSubmitEventCaptureGranularity(t *testing.T) {
	repo := setupRepo(t)
	h := NewEventHandler(repo, NoopBroadcaster())

	// Defaults: store_titles on, store_exe_path off.
	rec := postJSON(t, h.Submit, "/api/events", map[string]interface{}{
		"ts": 1000, "source_kind": "focus",
		"entity": "/usr/bin/code", "title": "main.go",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	s, err := repo.GetSettings()
	require.NoError(t, err)
	s.StoreTitles = false
	_, err = repo.UpdateSettings(s)
	require.NoError(t, err)

	rec = postJSON(t, h.Submit, "/api/events", map[string]interface{}{
		"ts": 2000, "source_kind": "focus",
		"entity": "/usr/bin/code", "title": "secret.go",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	events, err := repo.EventsInRange(0, 10000, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	// Paths are reduced to the executable name while store_exe_path is
	// off; the title survives only while store_titles is on.
	assert.Equal(t, "code", events[0].Entity)
	assert.Equal(t, "main.go", events[0].Title)
	assert.Equal(t, "code", events[1].Entity)
	assert.Empty(t, events[1].Title)

	// Domains are untouched by the exe-path setting.
	rec = postJSON(t, h.Submit, "/api/events", map[string]interface{}{
		"ts": 3000, "source_kind": "tab_focus", "entity": "docs.github.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	events, err = repo.EventsInRange(3000, 3001, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "docs.github.com", events[0].Entity)
}

func TestListEventsAppliesPrivacy(t *testing.T) {
	repo := setupRepo(t)
	h := NewEventHandler(repo, NoopBroadcaster())

	require.NoError(t, repo.AppendEvent(&models.Event{TS: 1000, SourceKind: models.SourceTabFocus, Entity: "bank.com"}))
	require.NoError(t, repo.AppendEvent(&models.Event{TS: 2000, SourceKind: models.SourceFocus, Entity: "code.exe"}))
	require.NoError(t, repo.CreateRule(&models.PrivacyRule{
		Kind: models.RuleDomain, Value: "bank.com", Action: models.ActionDrop,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/events?from=0&to=10000", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestListEventsInvalidRange(t *testing.T) {
	repo := setupRepo(t)
	h := NewEventHandler(repo, NoopBroadcaster())

	req := httptest.NewRequest(http.MethodGet, "/api/events?from=2000&to=1000", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_RANGE", errorCode(t, rec))
}

func TestReviewLifecycle(t *testing.T) {
	repo := setupRepo(t)
	h := NewReviewHandler(repo)

	rec := postJSON(t, h.Handle, "/api/reviews/b1710460800", map[string]interface{}{
		"doing": "code review",
		"tags":  []string{"work"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/reviews/b1710460800", nil)
	getRec := httptest.NewRecorder()
	h.Handle(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)
	body := decodeBody(t, getRec)
	assert.Equal(t, "code review", body["doing"])
}

func TestReviewMalformedBlockID(t *testing.T) {
	repo := setupRepo(t)
	h := NewReviewHandler(repo)

	rec := postJSON(t, h.Handle, "/api/reviews/1710460800", map[string]interface{}{
		"doing": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_BLOCK_ID", errorCode(t, rec))
}

func TestReviewNotFound(t *testing.T) {
	repo := setupRepo(t)
	h := NewReviewHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/reviews/b999", nil)
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestPrivacyRuleLifecycle(t *testing.T) {
	repo := setupRepo(t)
	h := NewPrivacyHandler(repo, NoopBroadcaster())

	rec := postJSON(t, h.Rules, "/api/privacy/rules", map[string]interface{}{
		"kind": "domain", "value": "bank.com", "action": "drop",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	listReq := httptest.NewRequest(http.MethodGet, "/api/privacy/rules", nil)
	listRec := httptest.NewRecorder()
	h.Rules(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)
	assert.Equal(t, float64(1), decodeBody(t, listRec)["count"])

	delReq := httptest.NewRequest(http.MethodDelete, "/api/privacy/rules/"+id, nil)
	delRec := httptest.NewRecorder()
	h.Delete(delRec, delReq)
	require.Equal(t, http.StatusOK, delRec.Code)

	delRec = httptest.NewRecorder()
	h.Delete(delRec, httptest.NewRequest(http.MethodDelete, "/api/privacy/rules/"+id, nil))
	assert.Equal(t, http.StatusNotFound, delRec.Code)
}

func TestPrivacyRuleValidation(t *testing.T) {
	repo := setupRepo(t)
	h := NewPrivacyHandler(repo, NoopBroadcaster())

	rec := postJSON(t, h.Rules, "/api/privacy/rules", map[string]interface{}{
		"kind": "regex", "value": "x", "action": "drop",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_RULE", errorCode(t, rec))
}

func TestSettingsPatch(t *testing.T) {
	repo := setupRepo(t)
	h := NewSettingsHandler(repo, NoopBroadcaster())

	req := httptest.NewRequest(http.MethodPatch, "/api/settings",
		bytes.NewReader([]byte(`{"block_seconds": 900}`)))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(900), body["block_seconds"])
	// Untouched fields keep their values.
	assert.Equal(t, float64(300), body["idle_cutoff_seconds"])
	assert.Equal(t, float64(2), body["version"])
}

func TestSettingsPatchRejectsBounds(t *testing.T) {
	repo := setupRepo(t)
	h := NewSettingsHandler(repo, NoopBroadcaster())

	req := httptest.NewRequest(http.MethodPatch, "/api/settings",
		bytes.NewReader([]byte(`{"block_seconds": 10}`)))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SETTINGS", errorCode(t, rec))
}

func TestTrackingPauseResumeStatus(t *testing.T) {
	repo := setupRepo(t)
	h := NewTrackingHandler(repo, NoopBroadcaster())
	h.nowFn = func() time.Time { return time.Unix(10000, 0) }

	rec := postJSON(t, h.Pause, "/api/tracking/pause", map[string]interface{}{"minutes": 30})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(10000+1800), body["paused_until_ts"])

	statusRec := httptest.NewRecorder()
	h.Status(statusRec, httptest.NewRequest(http.MethodGet, "/api/tracking/status", nil))
	require.Equal(t, http.StatusOK, statusRec.Code)
	assert.Equal(t, true, decodeBody(t, statusRec)["paused"])

	resumeRec := httptest.NewRecorder()
	h.Resume(resumeRec, httptest.NewRequest(http.MethodPost, "/api/tracking/resume", nil))
	require.Equal(t, http.StatusOK, resumeRec.Code)

	statusRec = httptest.NewRecorder()
	h.Status(statusRec, httptest.NewRequest(http.MethodGet, "/api/tracking/status", nil))
	assert.Equal(t, false, decodeBody(t, statusRec)["paused"])
}

func TestTrackingExpiredPauseAutoResumes(t *testing.T) {
	repo := setupRepo(t)
	h := NewTrackingHandler(repo, NoopBroadcaster())
	h.nowFn = func() time.Time { return time.Unix(20000, 0) }

	_, err := repo.SetTracking(true, 15000)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/tracking/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["paused"])

	// The expiry is persisted, not just reported.
	status, err := repo.GetTracking()
	require.NoError(t, err)
	assert.False(t, status.Paused)
}

func TestDataDeleteRange(t *testing.T) {
	repo := setupRepo(t)
	h := NewDataHandler(repo, NoopBroadcaster())

	require.NoError(t, repo.AppendEvent(&models.Event{TS: 1000, SourceKind: models.SourceFocus, Entity: "a"}))
	require.NoError(t, repo.AppendEvent(&models.Event{TS: 5000, SourceKind: models.SourceFocus, Entity: "b"}))

	rec := postJSON(t, h.DeleteRange, "/api/data/delete-range", map[string]interface{}{
		"from_ts": 0, "to_ts": 2000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["events_deleted"])
}

func TestDataDeleteRangeInvalid(t *testing.T) {
	repo := setupRepo(t)
	h := NewDataHandler(repo, NoopBroadcaster())

	rec := postJSON(t, h.DeleteRange, "/api/data/delete-range", map[string]interface{}{
		"from_ts": 2000, "to_ts": 2000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_RANGE", errorCode(t, rec))
}

func TestDataDeleteDay(t *testing.T) {
	repo := setupRepo(t)
	h := NewDataHandler(repo, NoopBroadcaster())

	dayStart := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC).Unix()
	require.NoError(t, repo.AppendEvent(&models.Event{TS: dayStart + 100, SourceKind: models.SourceFocus, Entity: "a"}))
	require.NoError(t, repo.AppendEvent(&models.Event{TS: dayStart - 100, SourceKind: models.SourceFocus, Entity: "b"}))

	rec := postJSON(t, h.DeleteDay, "/api/data/delete-day", map[string]interface{}{
		"date": "2024-03-15", "tz_offset_minutes": 0,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["events_deleted"])
}

func TestDataWipe(t *testing.T) {
	repo := setupRepo(t)
	h := NewDataHandler(repo, NoopBroadcaster())

	require.NoError(t, repo.AppendEvent(&models.Event{TS: 1000, SourceKind: models.SourceFocus, Entity: "a"}))

	rec := postJSON(t, h.Wipe, "/api/data/wipe", map[string]interface{}{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["events_deleted"])
}

func TestMethodNotAllowed(t *testing.T) {
	repo := setupRepo(t)
	h := NewEventHandler(repo, NoopBroadcaster())

	req := httptest.NewRequest(http.MethodDelete, "/api/events", nil)
	rec := httptest.NewRecorder()
	h.Submit(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
