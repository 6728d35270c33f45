// Package timeline derives blocks, timelines and live status from the
// stored event log. Derivation is pure: the same events, settings and
// rule set always produce byte-identical output.
package timeline

import (
	"github.com/mkarlsen/dayblocks/internal/models"
)

// Interval is one attributed span on a single track. Intervals never
// overlap within a track and never include idle time.
type Interval struct {
	Track  models.Track
	Kind   models.ItemKind
	Entity string
	Title  string
	Start  int64
	End    int64
}

// Seconds returns the interval length.
func (iv Interval) Seconds() int64 {
	return iv.End - iv.Start
}

// Input carries everything the segmenter needs for one window. Events
// must be sorted by timestamp and lie inside [Start, End); the prime
// and lookahead events supply cursor state at the boundaries.
type Input struct {
	Start int64
	End   int64

	// Events inside [Start, End), sorted by ts.
	Events []models.Event

	// PrimeForeground is the last foreground event before Start, or nil.
	PrimeForeground *models.Event
	// PrimeBackground is the last audio-family event before Start, or
	// nil. A stop event means no audio was active entering the window.
	PrimeBackground *models.Event

	// NextForeground is the first foreground event at or after End, or nil.
	NextForeground *models.Event
	// NextBackground is the first audio-family event at or after End, or nil.
	NextBackground *models.Event
}

var (
	foregroundKinds = []models.SourceKind{models.SourceFocus, models.SourceTabFocus}
	audioKinds      = []models.SourceKind{
		models.SourceTabAudio, models.SourceTabAudioStop,
		models.SourceAppAudio, models.SourceAppAudioStop,
	}
)
