// Package db provides CRUD repository operations for dayblocks data models.
package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/mkarlsen/dayblocks/internal/errors"
	"github.com/mkarlsen/dayblocks/internal/models"
	"github.com/mkarlsen/dayblocks/internal/uuid"
)

// Repository provides CRUD operations for all models.
// Statements are prepared on first use and cached for reuse, keeping
// the hot append path free of SQL parsing overhead.
type Repository struct {
	db *sql.DB

	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from cache.
// Key is the query string, value is the prepared statement.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
// Should be called when the Repository is no longer needed.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// Event Operations
// =====================================================

// AppendEvent validates and stores a collector event, assigning its
// store id. Events are never mutated afterwards.
func (r *Repository) AppendEvent(e *models.Event) error {
	if e.Entity == "" {
		return apperrors.New(apperrors.ErrInvalidEvent, "entity must not be empty")
	}
	if !e.SourceKind.Valid() {
		return apperrors.Newf(apperrors.ErrInvalidEvent, "unknown source_kind %q", e.SourceKind)
	}
	if e.TS <= 0 {
		return apperrors.New(apperrors.ErrInvalidEvent, "timestamp must be positive")
	}

	query := `
	INSERT INTO events (ts, source_kind, entity, title, origin)
	VALUES (?, ?, ?, ?, ?)
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to prepare event insert", err)
	}

	res, err := stmt.Exec(e.TS, e.SourceKind, e.Entity, e.Title, e.Origin)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to insert event", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to read event id", err)
	}
	return nil
}

// EventsInRange returns events with ts in [from, to), ordered by
// timestamp ascending with the store id as tiebreak, so arrival order
// never influences processing order. limit <= 0 means no limit.
func (r *Repository) EventsInRange(from, to int64, limit int) ([]models.Event, error) {
	query := `
	SELECT id, ts, source_kind, entity, title, origin
	FROM events WHERE ts >= ? AND ts < ?
	ORDER BY ts ASC, id ASC
	`
	args := []interface{}{from, to}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to query events", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.SourceKind, &e.Entity, &e.Title, &e.Origin); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan event", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to iterate events", err)
	}
	return events, nil
}

// LastEventBefore returns the most recent event with ts < before whose
// source kind is one of kinds, or nil when no such event exists. Used
// to prime cursor state entering a derivation window.
func (r *Repository) LastEventBefore(before int64, kinds ...models.SourceKind) (*models.Event, error) {
	if len(kinds) == 0 {
		return nil, nil
	}

	query := `
	SELECT id, ts, source_kind, entity, title, origin
	FROM events WHERE ts < ? AND source_kind IN (`
	args := []interface{}{before}
	for i, k := range kinds {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, k)
	}
	query += ") ORDER BY ts DESC, id DESC LIMIT 1"

	var e models.Event
	err := r.db.QueryRow(query, args...).Scan(&e.ID, &e.TS, &e.SourceKind, &e.Entity, &e.Title, &e.Origin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to query priming event", err)
	}
	return &e, nil
}

// NextEventAfter returns the earliest event with ts >= after whose
// source kind is one of kinds, or nil when no such event exists. Used
// as lookahead evidence when closing cursors at a window boundary.
func (r *Repository) NextEventAfter(after int64, kinds ...models.SourceKind) (*models.Event, error) {
	if len(kinds) == 0 {
		return nil, nil
	}

	query := `
	SELECT id, ts, source_kind, entity, title, origin
	FROM events WHERE ts >= ? AND source_kind IN (`
	args := []interface{}{after}
	for i, k := range kinds {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, k)
	}
	query += ") ORDER BY ts ASC, id ASC LIMIT 1"

	var e models.Event
	err := r.db.QueryRow(query, args...).Scan(&e.ID, &e.TS, &e.SourceKind, &e.Entity, &e.Title, &e.Origin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to query lookahead event", err)
	}
	return &e, nil
}

// EventStatsInRange returns the max event id and row count for
// [from, to). The pair changes whenever events in the range change,
// which makes it a cheap cache invalidation key.
func (r *Repository) EventStatsInRange(from, to int64) (maxID int64, count int64, err error) {
	query := `SELECT COALESCE(MAX(id), 0), COUNT(*) FROM events WHERE ts >= ? AND ts < ?`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare event stats", err)
	}
	if err := stmt.QueryRow(from, to).Scan(&maxID, &count); err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrStorage, "failed to query event stats", err)
	}
	return maxID, count, nil
}

// =====================================================
// Privacy Rule Operations
// =====================================================

// CreateRule validates and stores a privacy rule, assigning its id and
// creation time. The rule-set version is bumped in the same transaction.
func (r *Repository) CreateRule(rule *models.PrivacyRule) error {
	if !rule.Kind.Valid() {
		return apperrors.Newf(apperrors.ErrInvalidRule, "unknown rule kind %q", rule.Kind)
	}
	if !rule.Action.Valid() {
		return apperrors.Newf(apperrors.ErrInvalidRule, "unknown rule action %q", rule.Action)
	}
	if rule.Value == "" {
		return apperrors.New(apperrors.ErrInvalidRule, "rule value must not be empty")
	}

	rule.ID = uuid.New()
	rule.CreatedAt = time.Now().Unix()

	tx, err := r.db.Begin()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(
		"INSERT INTO privacy_rules (id, kind, value, action, created_at) VALUES (?, ?, ?, ?, ?)",
		rule.ID, rule.Kind, rule.Value, rule.Action, rule.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to insert privacy rule", err)
	}
	if _, err := tx.Exec("UPDATE meta SET value = value + 1 WHERE key = 'rules_version'"); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to bump rules version", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to commit privacy rule", err)
	}
	return nil
}

// ListRules returns all privacy rules, newest first.
func (r *Repository) ListRules() ([]models.PrivacyRule, error) {
	rows, err := r.db.Query(
		"SELECT id, kind, value, action, created_at FROM privacy_rules ORDER BY created_at DESC, id",
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to query privacy rules", err)
	}
	defer rows.Close()

	rules := []models.PrivacyRule{}
	for rows.Next() {
		var rule models.PrivacyRule
		if err := rows.Scan(&rule.ID, &rule.Kind, &rule.Value, &rule.Action, &rule.CreatedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan privacy rule", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// DeleteRule removes a privacy rule by id and bumps the rule-set
// version.
func (r *Repository) DeleteRule(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec("DELETE FROM privacy_rules WHERE id = ?", id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to delete privacy rule", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to read affected rows", err)
	}
	if n == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "privacy rule %s not found", id)
	}
	if _, err := tx.Exec("UPDATE meta SET value = value + 1 WHERE key = 'rules_version'"); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to bump rules version", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to commit rule deletion", err)
	}
	return nil
}

// RulesVersion returns the monotonic rule-set version.
func (r *Repository) RulesVersion() (int64, error) {
	stmt, err := r.PrepareStmt("SELECT value FROM meta WHERE key = 'rules_version'")
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare rules version query", err)
	}
	var version int64
	if err := stmt.QueryRow().Scan(&version); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorage, "failed to query rules version", err)
	}
	return version, nil
}

// =====================================================
// Review Operations
// =====================================================

// UpsertReview stores or replaces the review for a block. The block id
// is validated syntactically; blocks without events are reviewable.
func (r *Repository) UpsertReview(rev *models.Review) error {
	if _, err := models.ParseBlockID(rev.BlockID); err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidBlockID, "malformed block id", err)
	}

	if rev.Tags == nil {
		rev.Tags = []string{}
	}
	tags, err := json.Marshal(rev.Tags)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to encode tags", err)
	}
	rev.Touch()

	query := `
	INSERT INTO reviews (block_id, skipped, skip_reason, doing, output, next, tags, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(block_id) DO UPDATE SET
		skipped = excluded.skipped,
		skip_reason = excluded.skip_reason,
		doing = excluded.doing,
		output = excluded.output,
		next = excluded.next,
		tags = excluded.tags,
		updated_at = excluded.updated_at
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to prepare review upsert", err)
	}
	_, err = stmt.Exec(rev.BlockID, rev.Skipped, rev.SkipReason, rev.Doing, rev.Output, rev.Next, string(tags), rev.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorage, "failed to upsert review", err)
	}
	return nil
}

// GetReview retrieves the review for a block id.
func (r *Repository) GetReview(blockID string) (*models.Review, error) {
	query := `
	SELECT block_id, skipped, skip_reason, doing, output, next, tags, updated_at
	FROM reviews WHERE block_id = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare review query", err)
	}

	rev, err := scanReview(stmt.QueryRow(blockID))
	if err == sql.ErrNoRows {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "no review for block %s", blockID)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan review", err)
	}
	return rev, nil
}

// ReviewsInRange returns reviews whose block start falls in [from, to),
// keyed by block id.
func (r *Repository) ReviewsInRange(from, to int64) (map[string]*models.Review, error) {
	query := `
	SELECT block_id, skipped, skip_reason, doing, output, next, tags, updated_at
	FROM reviews
	WHERE CAST(substr(block_id, 2) AS INTEGER) >= ? AND CAST(substr(block_id, 2) AS INTEGER) < ?
	`
	rows, err := r.db.Query(query, from, to)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to query reviews", err)
	}
	defer rows.Close()

	reviews := make(map[string]*models.Review)
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorage, "failed to scan review", err)
		}
		reviews[rev.BlockID] = rev
	}
	return reviews, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanReview.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReview(row rowScanner) (*models.Review, error) {
	var rev models.Review
	var tags string
	err := row.Scan(&rev.BlockID, &rev.Skipped, &rev.SkipReason, &rev.Doing, &rev.Output, &rev.Next, &tags, &rev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &rev.Tags); err != nil {
		rev.Tags = []string{}
	}
	if rev.Tags == nil {
		rev.Tags = []string{}
	}
	return &rev, nil
}

// =====================================================
// Settings Operations
// =====================================================

// GetSettings returns the current settings.
func (r *Repository) GetSettings() (models.Settings, error) {
	query := `
	SELECT block_seconds, idle_cutoff_seconds, store_titles, store_exe_path, version
	FROM settings WHERE id = 1
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return models.Settings{}, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare settings query", err)
	}

	var s models.Settings
	err = stmt.QueryRow().Scan(&s.BlockSeconds, &s.IdleCutoffSeconds, &s.StoreTitles, &s.StoreExePath, &s.Version)
	if err != nil {
		return models.Settings{}, apperrors.Wrap(apperrors.ErrStorage, "failed to query settings", err)
	}
	return s, nil
}

// UpdateSettings validates bounds, persists the new settings, and
// bumps the settings version. A no-op update keeps the current
// version so derived blocks stay cacheable. Block identities derived
// under the previous configuration are not migrated.
func (r *Repository) UpdateSettings(s models.Settings) (models.Settings, error) {
	if s.BlockSeconds < models.MinBlockSeconds {
		return models.Settings{}, apperrors.Newf(apperrors.ErrInvalidSettings,
			"block_seconds must be >= %d", models.MinBlockSeconds)
	}
	if s.IdleCutoffSeconds < models.MinIdleCutoffSeconds {
		return models.Settings{}, apperrors.Newf(apperrors.ErrInvalidSettings,
			"idle_cutoff_seconds must be >= %d", models.MinIdleCutoffSeconds)
	}

	current, err := r.GetSettings()
	if err != nil {
		return models.Settings{}, err
	}
	if s.BlockSeconds == current.BlockSeconds &&
		s.IdleCutoffSeconds == current.IdleCutoffSeconds &&
		s.StoreTitles == current.StoreTitles &&
		s.StoreExePath == current.StoreExePath {
		return current, nil
	}

	query := `
	UPDATE settings SET
		block_seconds = ?,
		idle_cutoff_seconds = ?,
		store_titles = ?,
		store_exe_path = ?,
		version = version + 1
	WHERE id = 1
	`
	if _, err := r.db.Exec(query, s.BlockSeconds, s.IdleCutoffSeconds, s.StoreTitles, s.StoreExePath); err != nil {
		return models.Settings{}, apperrors.Wrap(apperrors.ErrStorage, "failed to update settings", err)
	}
	return r.GetSettings()
}

// =====================================================
// Tracking Operations
// =====================================================

// GetTracking returns the current tracking status.
func (r *Repository) GetTracking() (models.TrackingStatus, error) {
	stmt, err := r.PrepareStmt("SELECT paused, paused_until, updated_at FROM tracking WHERE id = 1")
	if err != nil {
		return models.TrackingStatus{}, apperrors.Wrap(apperrors.ErrStorage, "failed to prepare tracking query", err)
	}

	var t models.TrackingStatus
	err = stmt.QueryRow().Scan(&t.Paused, &t.PausedUntilTS, &t.UpdatedAt)
	if err != nil {
		return models.TrackingStatus{}, apperrors.Wrap(apperrors.ErrStorage, "failed to query tracking status", err)
	}
	return t, nil
}

// SetTracking persists a new pause state. until = 0 means an
// indefinite pause when paused is true.
func (r *Repository) SetTracking(paused bool, until int64) (models.TrackingStatus, error) {
	_, err := r.db.Exec(
		"UPDATE tracking SET paused = ?, paused_until = ?, updated_at = ? WHERE id = 1",
		paused, until, time.Now().Unix(),
	)
	if err != nil {
		return models.TrackingStatus{}, apperrors.Wrap(apperrors.ErrStorage, "failed to update tracking status", err)
	}
	return r.GetTracking()
}

// =====================================================
// Deletion Operations
// =====================================================

// DeleteRange removes events and reviews for [from, to) in a single
// transaction. Readers never observe a partially deleted span.
func (r *Repository) DeleteRange(from, to int64) (eventsDeleted, reviewsDeleted int64, err error) {
	if to <= from {
		return 0, 0, apperrors.New(apperrors.ErrInvalidRange, "end must be after start")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec("DELETE FROM events WHERE ts >= ? AND ts < ?", from, to)
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrStorage, "failed to delete events", err)
	}
	eventsDeleted, _ = res.RowsAffected()

	res, err = tx.Exec(
		"DELETE FROM reviews WHERE CAST(substr(block_id, 2) AS INTEGER) >= ? AND CAST(substr(block_id, 2) AS INTEGER) < ?",
		from, to,
	)
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrStorage, "failed to delete reviews", err)
	}
	reviewsDeleted, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrStorage, "failed to commit deletion", err)
	}
	return eventsDeleted, reviewsDeleted, nil
}

// WipeAll removes all events and reviews. Settings, privacy rules and
// tracking state are kept.
func (r *Repository) WipeAll() (eventsDeleted, reviewsDeleted int64, err error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec("DELETE FROM events")
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrStorage, "failed to wipe events", err)
	}
	eventsDeleted, _ = res.RowsAffected()

	res, err = tx.Exec("DELETE FROM reviews")
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrStorage, "failed to wipe reviews", err)
	}
	reviewsDeleted, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrStorage, "failed to commit wipe", err)
	}
	return eventsDeleted, reviewsDeleted, nil
}
