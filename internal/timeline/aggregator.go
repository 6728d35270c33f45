package timeline

import (
	"sort"

	"github.com/mkarlsen/dayblocks/internal/models"
	"github.com/mkarlsen/dayblocks/internal/privacy"
)

// accumulate sums attributed seconds per entity for one track, with
// the privacy filter applied first so dropped entities vanish and all
// masked entities share the hidden bucket.
func accumulate(intervals []Interval, track models.Track, f *privacy.Filter) []models.TopItem {
	type bucket struct {
		kind    models.ItemKind
		title   string
		seconds int64
	}
	buckets := make(map[string]*bucket)

	for _, iv := range intervals {
		if iv.Track != track {
			continue
		}
		entity, kind, keep := f.Apply(iv.Kind, iv.Entity)
		if !keep {
			continue
		}
		b, ok := buckets[entity]
		if !ok {
			b = &bucket{kind: kind}
			buckets[entity] = b
		}
		b.seconds += iv.Seconds()
		if entity == iv.Entity && iv.Title != "" {
			b.title = iv.Title
		}
	}

	items := make([]models.TopItem, 0, len(buckets))
	for entity, b := range buckets {
		items = append(items, models.TopItem{
			Kind:    b.kind,
			Entity:  entity,
			Title:   b.title,
			Seconds: b.seconds,
		})
	}

	// Rank by seconds descending; ties break by entity ascending so
	// repeated derivations are byte-identical.
	sort.Slice(items, func(i, j int) bool {
		if items[i].Seconds != items[j].Seconds {
			return items[i].Seconds > items[j].Seconds
		}
		return items[i].Entity < items[j].Entity
	})
	return items
}

// topN truncates a ranking. n <= 0 keeps everything.
func topN(items []models.TopItem, n int) []models.TopItem {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

// sumSeconds totals a ranking.
func sumSeconds(items []models.TopItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Seconds
	}
	return total
}

// mergeSegments converts attributed intervals into the contiguous
// timeline view: privacy-filtered, ordered by start, with adjacent
// same-entity intervals on the same track coalesced.
func mergeSegments(intervals []Interval, f *privacy.Filter) []models.Segment {
	segs := make([]models.Segment, 0, len(intervals))
	for _, iv := range intervals {
		entity, kind, keep := f.Apply(iv.Kind, iv.Entity)
		if !keep {
			continue
		}
		title := iv.Title
		if entity != iv.Entity {
			title = ""
		}
		segs = append(segs, models.Segment{
			Track:   iv.Track,
			Kind:    kind,
			Entity:  entity,
			Title:   title,
			StartTS: iv.Start,
			EndTS:   iv.End,
			Seconds: iv.End - iv.Start,
		})
	}

	sort.Slice(segs, func(i, j int) bool {
		if segs[i].StartTS != segs[j].StartTS {
			return segs[i].StartTS < segs[j].StartTS
		}
		if segs[i].Track != segs[j].Track {
			return segs[i].Track == models.TrackForeground
		}
		return segs[i].Entity < segs[j].Entity
	})

	merged := segs[:0]
	for _, seg := range segs {
		if n := len(merged); n > 0 {
			prev := &merged[n-1]
			if prev.Track == seg.Track && prev.Entity == seg.Entity && prev.EndTS == seg.StartTS {
				prev.EndTS = seg.EndTS
				prev.Seconds = prev.EndTS - prev.StartTS
				continue
			}
		}
		merged = append(merged, seg)
	}
	return merged
}
