package indicators

import (
	"math"

	"chartlab/internal/analysis/series"
	apperrors "chartlab/internal/errors"
	"chartlab/internal/models"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = apperrors.ErrInsufficientData
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = apperrors.ErrInvalidPeriod
)

// validPeriods returns ErrInvalidPeriod if any period is not positive.
func validPeriods(periods ...int) error {
	for _, p := range periods {
		if p <= 0 {
			return ErrInvalidPeriod
		}
	}
	return nil
}

// ratio divides num by den, yielding NaN on a zero denominator so the point
// is dropped instead of poisoning the series.
func ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// masked copies talib output into an index-aligned series whose first
// lookback entries are undefined. talib leaves them as zero.
func masked(values []float64, lookback int) []float64 {
	result := series.NaNs(len(values))
	for i := lookback; i < len(values); i++ {
		result[i] = values[i]
	}
	return result
}

// points converts index-aligned values to indicator points.
func points(candles []models.Candle, values []float64) []models.IndicatorPoint {
	return series.ToPoints(candles, values)
}
