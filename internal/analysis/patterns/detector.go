// Package patterns provides swing point detection and chart pattern detectors.
package patterns

import (
	"fmt"
	"sort"
	"strings"

	"chartlab/internal/analysis/series"
	apperrors "chartlab/internal/errors"
	"chartlab/internal/models"
)

// Detector names used in configuration and reports.
const (
	NameMACross       = "ma_cross"
	NameTriangle      = "triangle"
	NameHeadShoulders = "head_shoulders"
	NameDouble        = "double"
	NameLevelTouch    = "level_touch"
	NameTrendBreakout = "trend_breakout"
)

// Names lists every detector name in the order reports present them.
var Names = []string{
	NameMACross,
	NameTriangle,
	NameHeadShoulders,
	NameDouble,
	NameLevelTouch,
	NameTrendBreakout,
}

// NormalizeNames lower-cases and trims detector names and drops repeats and
// blanks, keeping first-seen order.
func NormalizeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func invalidParam(detector, field, rule string) error {
	return fmt.Errorf("%s.%s %s: %w", detector, field, rule, apperrors.ErrConfigInvalid)
}

// Detector scans a candle series and emits zero or more pattern events.
// Detectors hold no mutable state and may run concurrently on separate slices.
type Detector interface {
	Name() string
	Detect(candles []models.Candle) ([]models.PatternEvent, error)
}

// eventKey identifies an event for deduplication.
type eventKey struct {
	kind models.EventKind
	time int64
}

// dedupe drops repeated (kind, time) events keeping the first and returns the
// rest sorted by time.
func dedupe(events []models.PatternEvent) []models.PatternEvent {
	seen := make(map[eventKey]bool, len(events))
	out := make([]models.PatternEvent, 0, len(events))
	for _, e := range events {
		key := eventKey{kind: e.Kind, time: e.Time}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	SortEvents(out)
	return out
}

// SortEvents orders events by time, then kind.
func SortEvents(events []models.PatternEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return events[i].Kind < events[j].Kind
	})
}

// averageVolume returns the mean volume of candles, 0 when empty.
func averageVolume(candles []models.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var total float64
	for _, c := range candles {
		total += c.Volume
	}
	return total / float64(len(candles))
}

// localPeaks returns the indices whose field is a strict extremum per cmp over
// [i-lookback, i+lookback]. Only indices with a full window qualify.
func localPeaks(candles []models.Candle, lookback int, field series.Field, cmp series.Compare) []int {
	var idx []int
	for i := lookback; i < len(candles)-lookback; i++ {
		if series.WindowExtremum(candles, i, lookback, field, cmp) {
			idx = append(idx, i)
		}
	}
	return idx
}
