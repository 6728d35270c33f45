package timeline

import (
	"time"

	"github.com/mkarlsen/dayblocks/internal/db"
	apperrors "github.com/mkarlsen/dayblocks/internal/errors"
	"github.com/mkarlsen/dayblocks/internal/models"
	"github.com/mkarlsen/dayblocks/internal/privacy"
)

// DateFormat is the wire format for day parameters.
const DateFormat = "2006-01-02"

// defaultCacheEntries bounds the derivation cache: a couple of weeks
// of half-hour blocks.
const defaultCacheEntries = 1024

// Store is the persistence surface the derivation service reads from.
type Store interface {
	db.EventRepository
	db.RuleRepository
	db.ReviewRepository
	db.ConfigRepository
}

// Service derives blocks, timelines and live snapshots on demand.
// It holds no mutable aggregate state; every read recomputes from the
// event log and the current configuration, with a keyed cache as a
// pure optimization.
type Service struct {
	store Store
	cache *blockCache

	// nowFn is replaceable in tests.
	nowFn func() time.Time
}

// NewService creates a derivation service over a store.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		cache: newBlockCache(defaultCacheEntries),
		nowFn: time.Now,
	}
}

// DayBounds returns the unix range [start, end) of a local day. The
// caller's timezone offset is always explicit; server-local time is
// never inferred.
func DayBounds(date string, tzOffsetMinutes int) (int64, int64, error) {
	loc := time.FixedZone("client", tzOffsetMinutes*60)
	t, err := time.ParseInLocation(DateFormat, date, loc)
	if err != nil {
		return 0, 0, apperrors.Newf(apperrors.ErrInvalidRange, "invalid date %q, want YYYY-MM-DD", date)
	}
	start := t.Unix()
	return start, start + 24*60*60, nil
}

// blockBounds partitions a day into half-open block intervals
// dayStart + k*blockSeconds; the final block is clamped to midnight
// when the width doesn't divide the day evenly.
func blockBounds(dayStart, dayEnd, blockSeconds int64) [][2]int64 {
	bounds := make([][2]int64, 0, (dayEnd-dayStart)/blockSeconds+1)
	for start := dayStart; start < dayEnd; start += blockSeconds {
		end := start + blockSeconds
		if end > dayEnd {
			end = dayEnd
		}
		bounds = append(bounds, [2]int64{start, end})
	}
	return bounds
}

// BlocksForDay derives every materializable block of a local day.
// Blocks are never partially open to the future: only intervals whose
// end has passed are returned. topLimit <= 0 keeps full rankings.
func (s *Service) BlocksForDay(date string, tzOffsetMinutes, topLimit int) ([]models.Block, error) {
	dayStart, dayEnd, err := DayBounds(date, tzOffsetMinutes)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetSettings()
	if err != nil {
		return nil, err
	}
	filter, err := privacy.Load(s.store)
	if err != nil {
		return nil, err
	}

	now := s.nowFn().Unix()
	blocks := []models.Block{}
	for _, b := range blockBounds(dayStart, dayEnd, settings.BlockSeconds) {
		if b[1] > now {
			break
		}
		block, err := s.deriveBlock(b[0], b[1], settings, filter, topLimit)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	// Reviews overlay the derived identities and are never cached.
	reviews, err := s.store.ReviewsInRange(dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		blocks[i].Review = reviews[blocks[i].ID]
	}
	return blocks, nil
}

// BlocksForToday derives blocks for the caller's current local day.
func (s *Service) BlocksForToday(tzOffsetMinutes, topLimit int) ([]models.Block, error) {
	loc := time.FixedZone("client", tzOffsetMinutes*60)
	date := s.nowFn().In(loc).Format(DateFormat)
	return s.BlocksForDay(date, tzOffsetMinutes, topLimit)
}

// deriveBlock computes one block, consulting the derivation cache
// first. The cache key covers the configuration versions, the events
// inside the window and the boundary evidence around it. Cached
// blocks always hold the full rankings; the caller's limit is applied
// after lookup so callers with different limits share one entry.
func (s *Service) deriveBlock(start, end int64, settings models.Settings, filter *privacy.Filter, topLimit int) (models.Block, error) {
	in, err := s.loadInput(start, end)
	if err != nil {
		return models.Block{}, err
	}

	maxID, count, err := s.store.EventStatsInRange(start, end)
	if err != nil {
		return models.Block{}, err
	}
	key := blockKey{
		start:           start,
		end:             end,
		settingsVersion: settings.Version,
		rulesVersion:    filter.Version(),
		maxEventID:      maxID,
		eventCount:      count,
		primeFGID:       eventID(in.PrimeForeground),
		primeBGID:       eventID(in.PrimeBackground),
		nextFGID:        eventID(in.NextForeground),
		nextBGID:        eventID(in.NextBackground),
	}
	if block, ok := s.cache.get(key); ok {
		return limitRankings(block, topLimit), nil
	}

	intervals := NewSegmenter(settings.IdleCutoffSeconds).Attribute(in)
	top := accumulate(intervals, models.TrackForeground, filter)
	bg := accumulate(intervals, models.TrackBackground, filter)

	block := models.Block{
		ID:                 models.BlockID(start),
		StartTS:            start,
		EndTS:              end,
		TotalSeconds:       end - start,
		TopItems:           top,
		BackgroundTopItems: bg,
		BackgroundSeconds:  sumSeconds(bg),
		SettingsVersion:    settings.Version,
		RulesVersion:       filter.Version(),
	}
	s.cache.put(key, block)
	return limitRankings(block, topLimit), nil
}

// limitRankings applies a caller's ranking limit to a copy of a
// derived block. The rankings are never truncated in place.
func limitRankings(b models.Block, topLimit int) models.Block {
	b.TopItems = topN(b.TopItems, topLimit)
	b.BackgroundTopItems = topN(b.BackgroundTopItems, topLimit)
	return b
}

// loadInput gathers the events of a window plus the priming and
// lookahead events at its boundaries.
func (s *Service) loadInput(start, end int64) (Input, error) {
	events, err := s.store.EventsInRange(start, end, 0)
	if err != nil {
		return Input{}, err
	}
	primeFG, err := s.store.LastEventBefore(start, foregroundKinds...)
	if err != nil {
		return Input{}, err
	}
	primeBG, err := s.store.LastEventBefore(start, audioKinds...)
	if err != nil {
		return Input{}, err
	}
	nextFG, err := s.store.NextEventAfter(end, foregroundKinds...)
	if err != nil {
		return Input{}, err
	}
	nextBG, err := s.store.NextEventAfter(end, audioKinds...)
	if err != nil {
		return Input{}, err
	}
	return Input{
		Start:           start,
		End:             end,
		Events:          events,
		PrimeForeground: primeFG,
		PrimeBackground: primeBG,
		NextForeground:  nextFG,
		NextBackground:  nextBG,
	}, nil
}

// TimelineForDay derives the contiguous-segment view of a local day:
// same attribution logic as blocks, no fixed-width grouping. The
// horizon is clamped to now for the current day.
func (s *Service) TimelineForDay(date string, tzOffsetMinutes int) ([]models.Segment, error) {
	dayStart, dayEnd, err := DayBounds(date, tzOffsetMinutes)
	if err != nil {
		return nil, err
	}

	now := s.nowFn().Unix()
	horizon := dayEnd
	if now < horizon {
		horizon = now
	}
	if horizon <= dayStart {
		return []models.Segment{}, nil
	}

	settings, err := s.store.GetSettings()
	if err != nil {
		return nil, err
	}
	filter, err := privacy.Load(s.store)
	if err != nil {
		return nil, err
	}

	in, err := s.loadInput(dayStart, horizon)
	if err != nil {
		return nil, err
	}
	intervals := NewSegmenter(settings.IdleCutoffSeconds).Attribute(in)
	return mergeSegments(intervals, filter), nil
}

// Now resolves the best-effort live snapshot over a lookback window.
// An empty snapshot is a valid answer, not an error.
func (s *Service) Now(lookbackSeconds int64) (models.NowSnapshot, error) {
	if lookbackSeconds <= 0 {
		lookbackSeconds = DefaultLookbackSeconds
	}

	filter, err := privacy.Load(s.store)
	if err != nil {
		return models.NowSnapshot{}, err
	}

	now := s.nowFn().Unix()
	events, err := s.store.EventsInRange(now-lookbackSeconds, now+1, 0)
	if err != nil {
		return models.NowSnapshot{}, err
	}
	return resolveNow(events, filter, now), nil
}

func eventID(e *models.Event) int64 {
	if e == nil {
		return 0
	}
	return e.ID
}
