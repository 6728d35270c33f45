package timeline

import (
	"github.com/mkarlsen/dayblocks/internal/models"
	"github.com/mkarlsen/dayblocks/internal/privacy"
)

// DefaultLookbackSeconds bounds how far back the now resolver scans
// when the caller doesn't say.
const DefaultLookbackSeconds = 600

// resolveNow computes the live snapshot from the events inside the
// lookback window (sorted by ts). It needs no block alignment: the
// latest foreground observation wins, and the latest audio start
// counts only while no matching stop follows it.
func resolveNow(events []models.Event, f *privacy.Filter, now int64) models.NowSnapshot {
	snap := models.NowSnapshot{GeneratedAt: now}

	// Foreground: latest focus observation, with SinceTS stretched back
	// over the trailing run of the same entity. When that observation
	// is suppressed by a drop rule, the snapshot reports no foreground
	// rather than resurrecting an older entity still in the window.
	for i := len(events) - 1; i >= 0; i-- {
		e := &events[i]
		if !e.SourceKind.Foreground() {
			continue
		}
		entity, kind, keep := f.Apply(e.SourceKind.EntityKind(), e.Entity)
		if !keep {
			break
		}
		entry := &models.NowEntry{Kind: kind, Entity: entity, SinceTS: e.TS}
		if entity == e.Entity {
			entry.Title = e.Title
		}
		for j := i - 1; j >= 0; j-- {
			p := &events[j]
			if !p.SourceKind.Foreground() {
				continue
			}
			if p.Entity != e.Entity || p.SourceKind != e.SourceKind {
				break
			}
			entry.SinceTS = p.TS
		}
		snap.Foreground = entry
		break
	}

	// Background: latest audio start not superseded by a matching stop.
	// When the active stream is suppressed by a drop rule, the snapshot
	// reports no background rather than resurrecting an older stream.
	stopped := make(map[models.SourceKind]map[string]bool)
scan:
	for i := len(events) - 1; i >= 0; i-- {
		e := &events[i]
		switch {
		case e.SourceKind.AudioStop():
			byEntity := stopped[e.SourceKind]
			if byEntity == nil {
				byEntity = make(map[string]bool)
				stopped[e.SourceKind] = byEntity
			}
			byEntity[e.Entity] = true
		case e.SourceKind.AudioStart():
			if stopped[e.SourceKind.StopKind()][e.Entity] {
				continue
			}
			entity, kind, keep := f.Apply(e.SourceKind.EntityKind(), e.Entity)
			if !keep {
				break scan
			}
			entry := &models.NowEntry{Kind: kind, Entity: entity, SinceTS: e.TS}
			if entity == e.Entity {
				entry.Title = e.Title
			}
			snap.Background = entry
			break scan
		}
	}

	return snap
}
