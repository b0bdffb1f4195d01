// Package levels aggregates swing points into horizontal support/resistance
// levels and sloped trend lines.
package levels

import (
	"math"
	"sort"

	"chartlab/internal/analysis/patterns"
	"chartlab/internal/models"
)

// DefaultTolerance is the relative price distance within which swing points
// share a level.
const DefaultTolerance = 0.02

// minTouches is the number of same-kind swings that confirm a level.
const minTouches = 2

type priceGroup struct {
	rep    float64
	points []models.SwingPoint
}

// GroupLevels clusters swing points by price. Each point joins the first group
// whose representative price (its first point) is within tolerance, else it
// starts a new group. A group yields a resistance level for two or more highs
// and a support level for two or more lows, priced at the mean of those
// touches. The result is sorted by price.
func GroupLevels(swings []models.SwingPoint, tolerance float64) []models.Level {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	var groups []*priceGroup
	for _, p := range swings {
		var target *priceGroup
		for _, g := range groups {
			if g.rep != 0 && math.Abs(p.Price-g.rep)/g.rep <= tolerance {
				target = g
				break
			}
		}
		if target == nil {
			target = &priceGroup{rep: p.Price}
			groups = append(groups, target)
		}
		target.points = append(target.points, p)
	}

	levels := []models.Level{}
	for _, g := range groups {
		if lvl, ok := levelOf(g.points, models.SwingHigh, models.LevelResistance); ok {
			levels = append(levels, lvl)
		}
		if lvl, ok := levelOf(g.points, models.SwingLow, models.LevelSupport); ok {
			levels = append(levels, lvl)
		}
	}

	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	return levels
}

func levelOf(points []models.SwingPoint, swing models.SwingKind, kind models.LevelKind) (models.Level, bool) {
	touches := patterns.FilterSwings(points, swing)
	if len(touches) < minTouches {
		return models.Level{}, false
	}
	var sum float64
	for _, t := range touches {
		sum += t.Price
	}
	return models.Level{
		Price:      sum / float64(len(touches)),
		Kind:       kind,
		TouchCount: len(touches),
		Touches:    touches,
	}, true
}

// Detect finds swing points with lookback and groups them.
func Detect(candles []models.Candle, lookback int, tolerance float64) []models.Level {
	return GroupLevels(patterns.DetectSwingPoints(candles, lookback), tolerance)
}

// Touches flattens the touches of every level back into swing points, ordered
// by index.
func Touches(levels []models.Level) []models.SwingPoint {
	var out []models.SwingPoint
	for _, lvl := range levels {
		out = append(out, lvl.Touches...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
