package timeline

import (
	"github.com/mkarlsen/dayblocks/internal/models"
)

// Segmenter walks a time-ordered event sequence and produces
// attributed intervals for the foreground and background tracks. The
// two tracks are independent state machines: a focus change never
// touches the audio cursor and vice versa.
type Segmenter struct {
	// IdleCutoff is the maximum silent gap, in seconds, still
	// attributable to the entity holding a cursor. Foreground gaps
	// beyond it are idle and belong to nobody. Audio intervals closed
	// by an explicit lifecycle event are exempt: a stop at t asserts
	// playback ran until t.
	IdleCutoff int64
}

// NewSegmenter creates a Segmenter with the given idle cutoff.
func NewSegmenter(idleCutoffSeconds int64) *Segmenter {
	return &Segmenter{IdleCutoff: idleCutoffSeconds}
}

// cursor is the current holder of one track.
type cursor struct {
	entity string
	kind   models.ItemKind
	title  string
	source models.SourceKind
}

func cursorFor(e *models.Event) *cursor {
	return &cursor{
		entity: e.Entity,
		kind:   e.SourceKind.EntityKind(),
		title:  e.Title,
		source: e.SourceKind,
	}
}

// Attribute derives the attributed intervals for one window. The
// result is ordered by interval start within each track, foreground
// first.
func (s *Segmenter) Attribute(in Input) []Interval {
	out := s.foreground(in, nil)
	out = s.background(in, out)
	return out
}

// foreground runs the focus-track state machine. The cursor is set by
// focus and tab_focus events; the interval between two observations is
// attributed to the earlier holder only when the gap stays within the
// idle cutoff.
func (s *Segmenter) foreground(in Input, out []Interval) []Interval {
	var cur *cursor
	var lastSeen int64

	if p := in.PrimeForeground; p != nil {
		cur = cursorFor(p)
		lastSeen = p.TS
	}

	emit := func(until int64) {
		start := maxInt64(lastSeen, in.Start)
		if until > start {
			out = append(out, Interval{
				Track:  models.TrackForeground,
				Kind:   cur.kind,
				Entity: cur.entity,
				Title:  cur.title,
				Start:  start,
				End:    until,
			})
		}
	}

	for i := range in.Events {
		e := &in.Events[i]
		if !e.SourceKind.Foreground() {
			continue
		}
		if cur != nil && e.TS-lastSeen <= s.IdleCutoff {
			emit(e.TS)
		}
		cur = cursorFor(e)
		lastSeen = e.TS
	}

	if cur != nil {
		// Close against the window end. The lookahead event decides
		// whether the user was still around; without one, the window
		// end itself must fall inside the cutoff.
		boundary := in.End
		if n := in.NextForeground; n != nil {
			boundary = n.TS
		}
		if boundary-lastSeen <= s.IdleCutoff {
			emit(in.End)
		}
	}
	return out
}

// background runs the audio-track state machine. Audio starts set the
// cursor, the matching stop (same stream family and entity) clears
// it, and another start supersedes it. Intervals closed by either are
// attributed in full: the closing event asserts playback ran until
// then. Only a trailing cursor with no closing evidence is subject to
// the idle cutoff.
func (s *Segmenter) background(in Input, out []Interval) []Interval {
	var cur *cursor
	var lastSeen int64

	if p := in.PrimeBackground; p != nil && p.SourceKind.AudioStart() {
		cur = cursorFor(p)
		lastSeen = p.TS
	}

	emit := func(until int64) {
		start := maxInt64(lastSeen, in.Start)
		if until > start {
			out = append(out, Interval{
				Track:  models.TrackBackground,
				Kind:   cur.kind,
				Entity: cur.entity,
				Title:  cur.title,
				Start:  start,
				End:    until,
			})
		}
	}

	for i := range in.Events {
		e := &in.Events[i]
		switch {
		case e.SourceKind.AudioStart():
			if cur != nil {
				emit(e.TS)
			}
			cur = cursorFor(e)
			lastSeen = e.TS
		case e.SourceKind.AudioStop():
			if cur != nil && stopMatches(cur, e) {
				emit(e.TS)
				cur = nil
			}
		}
	}

	if cur != nil {
		closes := false
		switch n := in.NextBackground; {
		case n == nil:
			closes = in.End-lastSeen <= s.IdleCutoff
		case n.SourceKind.AudioStart(), stopMatches(cur, n):
			// Playback demonstrably continued past the window end.
			closes = true
		default:
			closes = in.End-lastSeen <= s.IdleCutoff
		}
		if closes {
			emit(in.End)
		}
	}
	return out
}

// stopMatches reports whether a stop event closes the current audio
// cursor: same stream family, and the same entity when the stop
// carries one.
func stopMatches(cur *cursor, e *models.Event) bool {
	if !e.SourceKind.AudioStop() {
		return false
	}
	if cur.source.StopKind() != e.SourceKind {
		return false
	}
	return e.Entity == "" || e.Entity == cur.entity
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
