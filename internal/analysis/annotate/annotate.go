// Package annotate maps analysis output to renderer-neutral annotation records.
package annotate

import (
	"fmt"
	"sort"

	"chartlab/internal/models"
)

// Positions relative to the candle.
const (
	PositionAbove = "above"
	PositionBelow = "below"
)

var eventLabels = map[models.EventKind]string{
	models.EventGoldenCross:             "Golden Cross",
	models.EventDeadCross:               "Dead Cross",
	models.EventSupportTouch:            "Support Touch",
	models.EventResistanceTouch:         "Resistance Touch",
	models.EventTrendBreakout:           "Trend Breakout",
	models.EventTriangleBreakout:        "Triangle Breakout",
	models.EventHeadAndShoulders:        "Head and Shoulders",
	models.EventInverseHeadAndShoulders: "Inverse Head and Shoulders",
	models.EventDoubleTop:               "Double Top",
	models.EventDoubleBottom:            "Double Bottom",
}

// Label returns the display label of an event kind.
func Label(kind models.EventKind) string {
	if l, ok := eventLabels[kind]; ok {
		return l
	}
	return string(kind)
}

// Formatter converts events, levels and trend lines into annotations.
// PricePrecision controls the digits used in level and line labels.
type Formatter struct {
	PricePrecision int
}

// NewFormatter creates a formatter with two-digit prices.
func NewFormatter() *Formatter {
	return &Formatter{PricePrecision: 2}
}

// Events annotates pattern events. Bullish markers sit below the candle,
// bearish ones above.
func (f *Formatter) Events(events []models.PatternEvent) []models.Annotation {
	out := make([]models.Annotation, 0, len(events))
	for _, e := range events {
		label := Label(e.Kind)
		if e.VolumeSpike {
			label += " (volume spike)"
		}
		out = append(out, models.Annotation{
			Time:      e.Time,
			Price:     e.Price,
			Kind:      string(e.Kind),
			Label:     label,
			Direction: string(e.Direction),
			Position:  position(e.Direction),
		})
	}
	return out
}

// Levels annotates support/resistance levels at their most recent touch.
// Levels without touches have no anchor on the time axis and are skipped.
func (f *Formatter) Levels(levels []models.Level) []models.Annotation {
	out := make([]models.Annotation, 0, len(levels))
	for _, lvl := range levels {
		if len(lvl.Touches) == 0 {
			continue
		}
		ts := lvl.Touches[0].Time
		for _, t := range lvl.Touches[1:] {
			if t.Time > ts {
				ts = t.Time
			}
		}
		dir, pos := models.DirectionUp, PositionBelow
		name := "Support"
		if lvl.Kind == models.LevelResistance {
			dir, pos, name = models.DirectionDown, PositionAbove, "Resistance"
		}
		out = append(out, models.Annotation{
			Time:      ts,
			Price:     lvl.Price,
			Kind:      string(lvl.Kind),
			Label:     fmt.Sprintf("%s %.*f (%d touches)", name, f.PricePrecision, lvl.Price, lvl.TouchCount),
			Direction: string(dir),
			Position:  pos,
		})
	}
	return out
}

// TrendLines annotates each line at its second anchor.
func (f *Formatter) TrendLines(lines []models.TrendLine) []models.Annotation {
	out := make([]models.Annotation, 0, len(lines))
	for _, l := range lines {
		dir, pos, name := models.DirectionUp, PositionBelow, "Uptrend"
		if l.Kind == models.TrendDownward {
			dir, pos, name = models.DirectionDown, PositionAbove, "Downtrend"
		}
		out = append(out, models.Annotation{
			Time:      l.Anchor2.Time,
			Price:     l.Anchor2.Price,
			Kind:      string(l.Kind) + "_trend",
			Label:     fmt.Sprintf("%s (%d touches, reliability %.*f)", name, l.TouchCount, f.PricePrecision, l.Reliability),
			Direction: string(dir),
			Position:  pos,
		})
	}
	return out
}

// Merge concatenates annotation sets ordered by time, then kind.
func Merge(sets ...[]models.Annotation) []models.Annotation {
	var out []models.Annotation
	for _, s := range sets {
		out = append(out, s...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func position(d models.Direction) string {
	if d == models.DirectionDown {
		return PositionAbove
	}
	return PositionBelow
}
