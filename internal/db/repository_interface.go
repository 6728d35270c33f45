// Package db provides repository interfaces for dayblocks data models.
package db

import (
	"github.com/mkarlsen/dayblocks/internal/models"
)

// EventRepository defines operations for the append-only event log.
type EventRepository interface {
	// AppendEvent validates and stores a collector event.
	AppendEvent(e *models.Event) error

	// EventsInRange returns events with ts in [from, to) ordered by timestamp.
	EventsInRange(from, to int64, limit int) ([]models.Event, error)

	// LastEventBefore returns the most recent event before a timestamp
	// matching one of the given kinds, or nil.
	LastEventBefore(before int64, kinds ...models.SourceKind) (*models.Event, error)

	// NextEventAfter returns the earliest event at or after a timestamp
	// matching one of the given kinds, or nil.
	NextEventAfter(after int64, kinds ...models.SourceKind) (*models.Event, error)

	// EventStatsInRange returns (max id, count) for a range.
	EventStatsInRange(from, to int64) (int64, int64, error)
}

// RuleRepository defines operations for privacy rule persistence.
type RuleRepository interface {
	CreateRule(rule *models.PrivacyRule) error
	ListRules() ([]models.PrivacyRule, error)
	DeleteRule(id string) error
	RulesVersion() (int64, error)
}

// ReviewRepository defines operations for block review persistence.
type ReviewRepository interface {
	UpsertReview(rev *models.Review) error
	GetReview(blockID string) (*models.Review, error)
	ReviewsInRange(from, to int64) (map[string]*models.Review, error)
}

// ConfigRepository defines operations for settings and tracking state.
type ConfigRepository interface {
	GetSettings() (models.Settings, error)
	UpdateSettings(s models.Settings) (models.Settings, error)
	GetTracking() (models.TrackingStatus, error)
	SetTracking(paused bool, until int64) (models.TrackingStatus, error)
}

// DeletionRepository defines the bulk deletion operations.
type DeletionRepository interface {
	DeleteRange(from, to int64) (int64, int64, error)
	WipeAll() (int64, int64, error)
}

// Ensure *Repository implements the interfaces at compile time.
var (
	_ EventRepository    = (*Repository)(nil)
	_ RuleRepository     = (*Repository)(nil)
	_ ReviewRepository   = (*Repository)(nil)
	_ ConfigRepository   = (*Repository)(nil)
	_ DeletionRepository = (*Repository)(nil)
)
