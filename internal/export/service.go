// Package export renders day summaries for external consumption.
// Both formats are pure projections over the derived block/review
// model; nothing here touches storage directly.
package export

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mkarlsen/dayblocks/internal/models"
	"github.com/mkarlsen/dayblocks/internal/timeline"
)

// BlockSource yields the derived blocks for a local day.
type BlockSource interface {
	BlocksForDay(date string, tzOffsetMinutes, topLimit int) ([]models.Block, error)
}

// Service renders markdown and CSV exports.
type Service struct {
	blocks BlockSource
}

// NewService creates an export service over a block source.
func NewService(blocks BlockSource) *Service {
	return &Service{blocks: blocks}
}

// Markdown renders a reviewable day report.
func (s *Service) Markdown(date string, tzOffsetMinutes int) (string, error) {
	blocks, err := s.blocks.BlocksForDay(date, tzOffsetMinutes, 0)
	if err != nil {
		return "", err
	}
	loc := time.FixedZone("client", tzOffsetMinutes*60)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", date)

	for _, block := range blocks {
		fmt.Fprintf(&b, "\n## %s – %s\n\n",
			time.Unix(block.StartTS, 0).In(loc).Format("15:04"),
			time.Unix(block.EndTS, 0).In(loc).Format("15:04"))

		if block.Review != nil && block.Review.Skipped {
			if block.Review.SkipReason != "" {
				fmt.Fprintf(&b, "_Skipped: %s_\n", block.Review.SkipReason)
			} else {
				b.WriteString("_Skipped_\n")
			}
			continue
		}

		if len(block.TopItems) == 0 {
			b.WriteString("_No activity_\n")
		}
		for _, item := range block.TopItems {
			fmt.Fprintf(&b, "- %s — %s\n", item.Entity, formatDuration(item.Seconds))
		}
		if len(block.BackgroundTopItems) > 0 {
			b.WriteString("\nBackground:\n")
			for _, item := range block.BackgroundTopItems {
				fmt.Fprintf(&b, "- %s — %s\n", item.Entity, formatDuration(item.Seconds))
			}
		}

		if r := block.Review; r != nil {
			b.WriteString("\n")
			if r.Doing != "" {
				fmt.Fprintf(&b, "**Doing:** %s\n", r.Doing)
			}
			if r.Output != "" {
				fmt.Fprintf(&b, "**Output:** %s\n", r.Output)
			}
			if r.Next != "" {
				fmt.Fprintf(&b, "**Next:** %s\n", r.Next)
			}
			if len(r.Tags) > 0 {
				fmt.Fprintf(&b, "**Tags:** %s\n", strings.Join(r.Tags, ", "))
			}
		}
	}
	return b.String(), nil
}

// CSV renders one row per ranked item, with the review columns
// repeated on each row of its block.
func (s *Service) CSV(date string, tzOffsetMinutes int) (string, error) {
	blocks, err := s.blocks.BlocksForDay(date, tzOffsetMinutes, 0)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	w := csv.NewWriter(&b)

	headers := []string{
		"block_id", "block_start", "block_end", "track", "rank",
		"kind", "entity", "seconds", "skipped", "doing", "output", "next", "tags",
	}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	for _, block := range blocks {
		writeTrack := func(track models.Track, items []models.TopItem) error {
			for rank, item := range items {
				record := []string{
					block.ID,
					strconv.FormatInt(block.StartTS, 10),
					strconv.FormatInt(block.EndTS, 10),
					string(track),
					strconv.Itoa(rank + 1),
					string(item.Kind),
					item.Entity,
					strconv.FormatInt(item.Seconds, 10),
				}
				record = append(record, reviewColumns(block.Review)...)
				if err := w.Write(record); err != nil {
					return err
				}
			}
			return nil
		}
		if err := writeTrack(models.TrackForeground, block.TopItems); err != nil {
			return "", err
		}
		if err := writeTrack(models.TrackBackground, block.BackgroundTopItems); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func reviewColumns(r *models.Review) []string {
	if r == nil {
		return []string{"", "", "", "", ""}
	}
	return []string{
		strconv.FormatBool(r.Skipped),
		r.Doing,
		r.Output,
		r.Next,
		strings.Join(r.Tags, "|"),
	}
}

// formatDuration renders seconds as a compact human duration.
func formatDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// Compile-time check that the timeline service satisfies BlockSource.
var _ BlockSource = (*timeline.Service)(nil)
