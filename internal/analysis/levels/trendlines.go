package levels

import (
	"fmt"
	"math"
	"sort"

	"chartlab/internal/analysis/patterns"
	apperrors "chartlab/internal/errors"
	"chartlab/internal/models"
)

const secondsPerYear = 365 * 24 * 60 * 60

// TrendConfig configures trend-line fitting.
type TrendConfig struct {
	SwingLookback  int     `mapstructure:"swing_lookback" yaml:"swing_lookback"`
	TouchTolerance float64 `mapstructure:"touch_tolerance" yaml:"touch_tolerance"`
	MinTouches     int     `mapstructure:"min_touches" yaml:"min_touches"`
	SlopeDedup     float64 `mapstructure:"slope_dedup" yaml:"slope_dedup"`
	KeepFraction   float64 `mapstructure:"keep_fraction" yaml:"keep_fraction"`
}

// DefaultTrendConfig returns the default trend-line parameters.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		SwingLookback:  patterns.DefaultSwingLookback,
		TouchTolerance: 0.06,
		MinTouches:     3,
		SlopeDedup:     0.10,
		KeepFraction:   0.25,
	}
}

// Validate checks the trend-line parameters. A zero SwingLookback means the
// caller's lookback is used.
func (c TrendConfig) Validate() error {
	var msg string
	switch {
	case c.SwingLookback < 0:
		msg = "swing_lookback must not be negative"
	case c.TouchTolerance <= 0 || c.TouchTolerance >= 1:
		msg = "touch_tolerance must be between 0 and 1"
	case c.MinTouches < 2:
		msg = "min_touches must be at least 2"
	case c.SlopeDedup < 0:
		msg = "slope_dedup must not be negative"
	case c.KeepFraction <= 0 || c.KeepFraction > 1:
		msg = "keep_fraction must be in (0, 1]"
	default:
		return nil
	}
	return fmt.Errorf("trend.%s: %w", msg, apperrors.ErrConfigInvalid)
}

// DetectTrendLines fits upward lines through swing lows and downward lines
// through swing highs. Each family is scored, deduplicated and trimmed on its
// own; upward lines come first.
func DetectTrendLines(candles []models.Candle, cfg TrendConfig) []models.TrendLine {
	swings := patterns.DetectSwingPoints(candles, cfg.SwingLookback)

	lines := fitLines(patterns.FilterSwings(swings, models.SwingLow), models.TrendUpward, cfg)
	return append(lines, fitLines(patterns.FilterSwings(swings, models.SwingHigh), models.TrendDownward, cfg)...)
}

// fitLines tries every anchor pair. A candidate needs a slope matching kind
// and at least MinTouches anchors, counting both endpoints, within
// TouchTolerance of the larger endpoint price.
func fitLines(anchors []models.SwingPoint, kind models.TrendKind, cfg TrendConfig) []models.TrendLine {
	var candidates []models.TrendLine
	for i := 0; i < len(anchors)-1; i++ {
		for j := i + 1; j < len(anchors); j++ {
			p1, p2 := anchors[i], anchors[j]
			dt := p2.Time - p1.Time
			if dt <= 0 {
				continue
			}
			slope := (p2.Price - p1.Price) / float64(dt)
			if (kind == models.TrendUpward && slope <= 0) || (kind == models.TrendDownward && slope >= 0) {
				continue
			}

			line := models.TrendLine{Kind: kind, Anchor1: p1, Anchor2: p2, Slope: slope, TouchCount: 2}
			tolerance := math.Max(p1.Price, p2.Price) * cfg.TouchTolerance
			for k, other := range anchors {
				if k == i || k == j {
					continue
				}
				if math.Abs(other.Price-line.PriceAt(other.Time)) <= tolerance {
					line.TouchCount++
				}
			}
			if line.TouchCount < cfg.MinTouches || p1.Price == 0 {
				continue
			}

			line.Reliability = float64(line.TouchCount) *
				(float64(dt) / secondsPerYear) *
				(math.Abs(p2.Price-p1.Price) / p1.Price)
			candidates = append(candidates, line)
		}
	}

	unique := RemoveDuplicateLines(candidates, cfg.SlopeDedup)
	sort.SliceStable(unique, func(i, j int) bool { return unique[i].Reliability > unique[j].Reliability })

	keep := int(math.Ceil(float64(len(unique)) * cfg.KeepFraction))
	if keep > len(unique) {
		keep = len(unique)
	}
	return unique[:keep]
}

// RemoveDuplicateLines collapses same-kind lines whose slopes differ by less
// than tolerance relative to their mean magnitude. The more reliable line
// takes the earlier line's slot.
func RemoveDuplicateLines(lines []models.TrendLine, tolerance float64) []models.TrendLine {
	unique := make([]models.TrendLine, 0, len(lines))
	for _, line := range lines {
		dup := -1
		for j, kept := range unique {
			if kept.Kind != line.Kind {
				continue
			}
			avg := (math.Abs(line.Slope) + math.Abs(kept.Slope)) / 2
			if avg > 0 && math.Abs(line.Slope-kept.Slope)/avg < tolerance {
				dup = j
				break
			}
		}
		if dup < 0 {
			unique = append(unique, line)
			continue
		}
		if line.Reliability > unique[dup].Reliability {
			unique[dup] = line
		}
	}
	return unique
}
