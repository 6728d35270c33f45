package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkarlsen/dayblocks/internal/models"
	"github.com/mkarlsen/dayblocks/internal/privacy"
)

func noRules() *privacy.Filter {
	return privacy.New(nil, 1)
}

func TestAccumulateRanksBySeconds(t *testing.T) {
	intervals := []Interval{
		{Track: models.TrackForeground, Kind: models.ItemApp, Entity: "code.exe", Start: 0, End: 600},
		{Track: models.TrackForeground, Kind: models.ItemDomain, Entity: "github.com", Start: 600, End: 1500},
		{Track: models.TrackForeground, Kind: models.ItemApp, Entity: "code.exe", Start: 1500, End: 1700},
	}

	items := accumulate(intervals, models.TrackForeground, noRules())
	assert.Len(t, items, 2)
	assert.Equal(t, "github.com", items[0].Entity)
	assert.Equal(t, int64(900), items[0].Seconds)
	assert.Equal(t, "code.exe", items[1].Entity)
	assert.Equal(t, int64(800), items[1].Seconds)
}

func TestAccumulateTieBreaksByEntity(t *testing.T) {
	intervals := []Interval{
		{Track: models.TrackForeground, Kind: models.ItemApp, Entity: "zsh", Start: 0, End: 100},
		{Track: models.TrackForeground, Kind: models.ItemApp, Entity: "awk", Start: 100, End: 200},
	}

	items := accumulate(intervals, models.TrackForeground, noRules())
	assert.Equal(t, "awk", items[0].Entity)
	assert.Equal(t, "zsh", items[1].Entity)
}

func TestAccumulateIgnoresOtherTrack(t *testing.T) {
	intervals := []Interval{
		{Track: models.TrackForeground, Kind: models.ItemApp, Entity: "code.exe", Start: 0, End: 600},
		{Track: models.TrackBackground, Kind: models.ItemDomain, Entity: "youtube.com", Start: 0, End: 900},
	}

	fg := accumulate(intervals, models.TrackForeground, noRules())
	bg := accumulate(intervals, models.TrackBackground, noRules())
	assert.Len(t, fg, 1)
	assert.Len(t, bg, 1)
	assert.Equal(t, int64(900), bg[0].Seconds)
}

func TestAccumulateMaskedEntitiesShareBucket(t *testing.T) {
	f := privacy.New([]models.PrivacyRule{
		{Kind: models.RuleDomain, Value: "bank.com", Action: models.ActionMask},
		{Kind: models.RuleDomain, Value: "clinic.org", Action: models.ActionMask},
	}, 1)

	intervals := []Interval{
		{Track: models.TrackForeground, Kind: models.ItemDomain, Entity: "bank.com", Title: "Account", Start: 0, End: 300},
		{Track: models.TrackForeground, Kind: models.ItemDomain, Entity: "clinic.org", Title: "Portal", Start: 300, End: 700},
		{Track: models.TrackForeground, Kind: models.ItemDomain, Entity: "github.com", Start: 700, End: 900},
	}

	items := accumulate(intervals, models.TrackForeground, f)
	assert.Len(t, items, 2)
	assert.Equal(t, models.HiddenEntity, items[0].Entity)
	assert.Equal(t, models.ItemUnknown, items[0].Kind)
	assert.Equal(t, int64(700), items[0].Seconds)
	assert.Empty(t, items[0].Title)
}

func TestAccumulateDropRemovesDuration(t *testing.T) {
	f := privacy.New([]models.PrivacyRule{
		{Kind: models.RuleDomain, Value: "bank.com", Action: models.ActionDrop},
	}, 1)

	intervals := []Interval{
		{Track: models.TrackForeground, Kind: models.ItemDomain, Entity: "online.bank.com", Start: 0, End: 600},
		{Track: models.TrackForeground, Kind: models.ItemApp, Entity: "code.exe", Start: 600, End: 900},
	}

	items := accumulate(intervals, models.TrackForeground, f)
	assert.Len(t, items, 1)
	assert.Equal(t, "code.exe", items[0].Entity)
	assert.Equal(t, int64(300), sumSeconds(items))
}

func TestTopN(t *testing.T) {
	items := []models.TopItem{{Entity: "a"}, {Entity: "b"}, {Entity: "c"}}

	assert.Len(t, topN(items, 2), 2)
	assert.Len(t, topN(items, 0), 3)
	assert.Len(t, topN(items, 10), 3)
}

func TestMergeSegmentsCoalescesAdjacent(t *testing.T) {
	intervals := []Interval{
		{Track: models.TrackForeground, Kind: models.ItemApp, Entity: "code.exe", Start: 0, End: 300},
		{Track: models.TrackForeground, Kind: models.ItemApp, Entity: "code.exe", Start: 300, End: 600},
		{Track: models.TrackForeground, Kind: models.ItemApp, Entity: "chrome.exe", Start: 600, End: 700},
		{Track: models.TrackForeground, Kind: models.ItemApp, Entity: "code.exe", Start: 900, End: 1000},
	}

	segs := mergeSegments(intervals, noRules())
	assert.Len(t, segs, 3)
	assert.Equal(t, int64(0), segs[0].StartTS)
	assert.Equal(t, int64(600), segs[0].EndTS)
	assert.Equal(t, int64(600), segs[0].Seconds)
	// A gap prevents coalescing even for the same entity.
	assert.Equal(t, int64(900), segs[2].StartTS)
}

func TestMergeSegmentsKeepsTracksApart(t *testing.T) {
	intervals := []Interval{
		{Track: models.TrackForeground, Kind: models.ItemApp, Entity: "x", Start: 0, End: 300},
		{Track: models.TrackBackground, Kind: models.ItemApp, Entity: "x", Start: 300, End: 600},
	}

	segs := mergeSegments(intervals, noRules())
	assert.Len(t, segs, 2)
}
