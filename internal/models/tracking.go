package models

// TrackingStatus is the advisory pause state. It gates ingestion of
// new events only; it never deletes or reinterprets stored events.
type TrackingStatus struct {
	Paused        bool  `db:"paused" json:"paused"`
	PausedUntilTS int64 `db:"paused_until" json:"paused_until_ts,omitempty"`
	UpdatedAt     int64 `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for TrackingStatus.
func (TrackingStatus) TableName() string {
	return "tracking"
}

// EffectivePaused reports whether tracking is paused at the given
// instant, accounting for a timed pause that has expired.
func (t TrackingStatus) EffectivePaused(now int64) bool {
	if !t.Paused {
		return false
	}
	if t.PausedUntilTS > 0 && now >= t.PausedUntilTS {
		return false
	}
	return true
}
