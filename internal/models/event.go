// Package models provides data model definitions for the dayblocks engine.
package models

import "time"

// SourceKind identifies which collector stream produced an event.
type SourceKind string

const (
	SourceFocus        SourceKind = "focus"
	SourceTabFocus     SourceKind = "tab_focus"
	SourceTabAudio     SourceKind = "tab_audio"
	SourceTabAudioStop SourceKind = "tab_audio_stop"
	SourceAppAudio     SourceKind = "app_audio"
	SourceAppAudioStop SourceKind = "app_audio_stop"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceFocus, SourceTabFocus, SourceTabAudio, SourceTabAudioStop,
		SourceAppAudio, SourceAppAudioStop:
		return true
	}
	return false
}

// Foreground reports whether k belongs to the foreground focus track.
func (k SourceKind) Foreground() bool {
	return k == SourceFocus || k == SourceTabFocus
}

// AudioStart reports whether k starts background audio attribution.
func (k SourceKind) AudioStart() bool {
	return k == SourceTabAudio || k == SourceAppAudio
}

// AudioStop reports whether k ends background audio attribution.
func (k SourceKind) AudioStop() bool {
	return k == SourceTabAudioStop || k == SourceAppAudioStop
}

// StopKind returns the stop kind that closes an audio start kind.
// Returns the zero value for non-start kinds.
func (k SourceKind) StopKind() SourceKind {
	switch k {
	case SourceTabAudio:
		return SourceTabAudioStop
	case SourceAppAudio:
		return SourceAppAudioStop
	}
	return ""
}

// EntityKind returns the item kind implied by the source stream:
// tab streams carry domains, everything else carries app identities.
func (k SourceKind) EntityKind() ItemKind {
	switch k {
	case SourceTabFocus, SourceTabAudio, SourceTabAudioStop:
		return ItemDomain
	}
	return ItemApp
}

// Event represents a single activity observation from a collector.
// Events are immutable once stored; processing order is by TS, never
// by insertion order.
type Event struct {
	ID         int64      `db:"id" json:"id"`
	TS         int64      `db:"ts" json:"ts"` // unix seconds, source-supplied
	SourceKind SourceKind `db:"source_kind" json:"source_kind"`
	Entity     string     `db:"entity" json:"entity"`
	Title      string     `db:"title" json:"title,omitempty"`
	Origin     string     `db:"origin" json:"origin,omitempty"`
}

// TableName returns the table name for Event.
func (Event) TableName() string {
	return "events"
}

// Time returns the event timestamp as time.Time.
func (e *Event) Time() time.Time {
	return time.Unix(e.TS, 0)
}
