// Package db provides database schema migration management.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version     int
	AppliedAt   time.Time
	Description string
	Checksum    string
}

// migrationStep is one in-code schema migration.
type migrationStep struct {
	version     int
	description string
	sql         string
}

// migrations is the ordered list of schema migrations. Never edit an
// entry once released; append a new version instead (checksums of
// applied migrations are verified on startup).
var migrations = []migrationStep{
	{
		version:     1,
		description: "initial schema",
		sql: `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL CHECK(ts > 0),
	source_kind TEXT NOT NULL,
	entity TEXT NOT NULL CHECK(length(entity) > 0),
	title TEXT NOT NULL DEFAULT '',
	origin TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_kind_ts ON events(source_kind, ts);

CREATE TABLE IF NOT EXISTS privacy_rules (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL CHECK(kind IN ('domain','app')),
	value TEXT NOT NULL CHECK(length(value) > 0),
	action TEXT NOT NULL CHECK(action IN ('drop','mask')),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reviews (
	block_id TEXT PRIMARY KEY,
	skipped INTEGER NOT NULL DEFAULT 0,
	skip_reason TEXT NOT NULL DEFAULT '',
	doing TEXT NOT NULL DEFAULT '',
	output TEXT NOT NULL DEFAULT '',
	next TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY CHECK(id = 1),
	block_seconds INTEGER NOT NULL,
	idle_cutoff_seconds INTEGER NOT NULL,
	store_titles INTEGER NOT NULL,
	store_exe_path INTEGER NOT NULL,
	version INTEGER NOT NULL
);
INSERT OR IGNORE INTO settings (id, block_seconds, idle_cutoff_seconds, store_titles, store_exe_path, version)
VALUES (1, 1800, 300, 1, 0, 1);

CREATE TABLE IF NOT EXISTS tracking (
	id INTEGER PRIMARY KEY CHECK(id = 1),
	paused INTEGER NOT NULL DEFAULT 0,
	paused_until INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO tracking (id, paused, paused_until, updated_at) VALUES (1, 0, 0, 0);

CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
INSERT OR IGNORE INTO meta (key, value) VALUES ('rules_version', 1);
`,
	},
}

// Migrator handles database schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations() ([]Migration, error) {
	rows, err := m.db.Query("SELECT version, applied_at, description, checksum FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applied []Migration
	for rows.Next() {
		var mig Migration
		var appliedAt int64
		if err := rows.Scan(&mig.Version, &appliedAt, &mig.Description, &mig.Checksum); err != nil {
			return nil, err
		}
		mig.AppliedAt = time.Unix(appliedAt, 0)
		applied = append(applied, mig)
	}
	return applied, rows.Err()
}

// Up applies all pending migrations and verifies checksums of the
// already-applied ones.
func (m *Migrator) Up() error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations table: %w", err)
	}

	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}
	appliedByVersion := make(map[int]Migration, len(applied))
	for _, mig := range applied {
		appliedByVersion[mig.Version] = mig
	}

	for _, step := range migrations {
		checksum := checksumSQL(step.sql)
		if prev, ok := appliedByVersion[step.version]; ok {
			if prev.Checksum != checksum {
				return fmt.Errorf("migration V%d checksum mismatch: applied %s, code %s",
					step.version, prev.Checksum, checksum)
			}
			continue
		}

		if err := m.apply(step, checksum); err != nil {
			return fmt.Errorf("migration V%d (%s) failed: %w", step.version, step.description, err)
		}
	}
	return nil
}

// apply runs one migration and records it in a single transaction.
func (m *Migrator) apply(step migrationStep, checksum string) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(step.sql); err != nil {
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
		step.version, time.Now().Unix(), step.description, checksum,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// checksumSQL returns the hex SHA-256 of a migration body.
func checksumSQL(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}
