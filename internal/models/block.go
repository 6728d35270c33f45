package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ItemKind classifies a ranked usage entity.
type ItemKind string

const (
	ItemApp     ItemKind = "app"
	ItemDomain  ItemKind = "domain"
	ItemUnknown ItemKind = "unknown"
)

// HiddenEntity is the sentinel identity that replaces entities matched
// by a mask privacy rule. All masked entities in a block collapse into
// this single bucket.
const HiddenEntity = "(hidden)"

// Track identifies an independent activity channel.
type Track string

const (
	TrackForeground Track = "foreground"
	TrackBackground Track = "background"
)

// TopItem is one ranked (entity, duration) pair within a block.
type TopItem struct {
	Kind    ItemKind `json:"kind"`
	Entity  string   `json:"entity"`
	Title   string   `json:"title,omitempty"`
	Seconds int64    `json:"seconds"`
}

// Block is a fixed-width, timezone-aligned interval with its derived
// usage summary. Blocks are derived on demand, never stored.
type Block struct {
	ID                 string    `json:"id"`
	StartTS            int64     `json:"start_ts"`
	EndTS              int64     `json:"end_ts"`
	TotalSeconds       int64     `json:"total_seconds"`
	TopItems           []TopItem `json:"top_items"`
	BackgroundTopItems []TopItem `json:"background_top_items"`
	BackgroundSeconds  int64     `json:"background_seconds"`
	SettingsVersion    int64     `json:"settings_version"`
	RulesVersion       int64     `json:"rules_version"`
	Review             *Review   `json:"review,omitempty"`
}

// Segment is a contiguous attributed interval on one track, used by
// the timeline view (same attribution logic as blocks, no fixed-width
// grouping).
type Segment struct {
	Track   Track    `json:"track"`
	Kind    ItemKind `json:"kind"`
	Entity  string   `json:"entity"`
	Title   string   `json:"title,omitempty"`
	StartTS int64    `json:"start_ts"`
	EndTS   int64    `json:"end_ts"`
	Seconds int64    `json:"seconds"`
}

// NowEntry describes the currently active entity on one track.
type NowEntry struct {
	Kind    ItemKind `json:"kind"`
	Entity  string   `json:"entity"`
	Title   string   `json:"title,omitempty"`
	SinceTS int64    `json:"since_ts"`
}

// NowSnapshot is the best-effort live view over a short lookback
// window. Both entries are nil when no recent activity qualifies.
type NowSnapshot struct {
	Foreground  *NowEntry `json:"foreground,omitempty"`
	Background  *NowEntry `json:"background,omitempty"`
	GeneratedAt int64     `json:"generated_at"`
}

// BlockID derives the deterministic block identity from its start
// timestamp. Block identity depends only on boundary computation.
func BlockID(startTS int64) string {
	return "b" + strconv.FormatInt(startTS, 10)
}

// ParseBlockID validates a block id and returns its start timestamp.
func ParseBlockID(id string) (int64, error) {
	rest, ok := strings.CutPrefix(id, "b")
	if !ok || rest == "" {
		return 0, fmt.Errorf("malformed block id %q", id)
	}
	ts, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || ts < 0 {
		return 0, fmt.Errorf("malformed block id %q", id)
	}
	return ts, nil
}
