package patterns

import (
	"chartlab/internal/analysis/series"
	"chartlab/internal/models"
)

// DefaultSwingLookback is the half-width of the swing detection window.
const DefaultSwingLookback = 5

// DetectSwingPoints finds swing highs and lows. Index i is a swing high when
// its high is strictly greater than every other high in [i-lookback,
// i+lookback]; lows are symmetric. An index may yield both, high first.
func DetectSwingPoints(candles []models.Candle, lookback int) []models.SwingPoint {
	if lookback <= 0 {
		lookback = DefaultSwingLookback
	}

	var swings []models.SwingPoint
	for i := lookback; i < len(candles)-lookback; i++ {
		c := candles[i]
		if series.WindowExtremum(candles, i, lookback, series.FieldHigh, series.Greater) {
			swings = append(swings, models.SwingPoint{Time: c.Time, Price: c.High, Kind: models.SwingHigh, Index: i})
		}
		if series.WindowExtremum(candles, i, lookback, series.FieldLow, series.Less) {
			swings = append(swings, models.SwingPoint{Time: c.Time, Price: c.Low, Kind: models.SwingLow, Index: i})
		}
	}
	return swings
}

// FilterSwings returns the swing points of the given kind.
func FilterSwings(swings []models.SwingPoint, kind models.SwingKind) []models.SwingPoint {
	out := make([]models.SwingPoint, 0, len(swings))
	for _, s := range swings {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}
