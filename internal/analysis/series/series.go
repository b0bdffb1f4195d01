// Package series provides rolling-window primitives shared by the indicator
// engine and the pattern detectors.
package series

import (
	"math"

	"chartlab/internal/models"
)

// Field selects a candle attribute.
type Field int

const (
	FieldOpen Field = iota
	FieldHigh
	FieldLow
	FieldClose
	FieldVolume
)

// Value returns the selected attribute of c.
func (f Field) Value(c models.Candle) float64 {
	switch f {
	case FieldOpen:
		return c.Open
	case FieldHigh:
		return c.High
	case FieldLow:
		return c.Low
	case FieldVolume:
		return c.Volume
	default:
		return c.Close
	}
}

// Compare decides whether a is strictly better than b.
type Compare func(a, b float64) bool

// Greater and Less are the two extremum orderings.
var (
	Greater Compare = func(a, b float64) bool { return a > b }
	Less    Compare = func(a, b float64) bool { return a < b }
)

// Point is a (time, price) pair used for slope fitting.
type Point struct {
	Time  int64
	Price float64
}

// MovingAverage returns the simple moving average of closes, one point per
// index i >= period-1. Empty if the series is shorter than period.
func MovingAverage(candles []models.Candle, period int) []models.IndicatorPoint {
	if period <= 0 || len(candles) < period {
		return []models.IndicatorPoint{}
	}

	points := make([]models.IndicatorPoint, 0, len(candles)-period+1)
	var sum float64
	for i, c := range candles {
		sum += c.Close
		if i >= period {
			sum -= candles[i-period].Close
		}
		if i >= period-1 {
			points = append(points, models.IndicatorPoint{
				Time:  c.Time,
				Value: sum / float64(period),
			})
		}
	}
	return points
}

// SMA returns an index-aligned simple moving average; undefined entries are NaN.
func SMA(values []float64, period int) []float64 {
	result := NaNs(len(values))
	if period <= 0 || len(values) < period {
		return result
	}
	for i := period - 1; i < len(values); i++ {
		result[i] = Mean(values[i-period+1 : i+1])
	}
	return result
}

// LinearSlope returns the least-squares slope of price over time.
func LinearSlope(points []Point) float64 {
	n := float64(len(points))
	if len(points) < 2 {
		return 0
	}
	// Center time on the first point to keep the sums well conditioned.
	t0 := points[0].Time
	var sumX, sumY, sumXY, sumXX float64
	for _, p := range points {
		x := float64(p.Time - t0)
		sumX += x
		sumY += p.Price
		sumXY += x * p.Price
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// EndpointSlope returns the slope of the line through the first and last point.
func EndpointSlope(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	first, last := points[0], points[len(points)-1]
	if last.Time == first.Time {
		return 0
	}
	return (last.Price - first.Price) / float64(last.Time-first.Time)
}

// WindowExtremum reports whether field at index i is strictly better, per cmp,
// than every other value in [i-lookback, i+lookback]. The window is clamped
// to the series bounds.
func WindowExtremum(candles []models.Candle, i, lookback int, field Field, cmp Compare) bool {
	if i < 0 || i >= len(candles) {
		return false
	}
	current := field.Value(candles[i])
	lo, hi := i-lookback, i+lookback
	if lo < 0 {
		lo = 0
	}
	if hi > len(candles)-1 {
		hi = len(candles) - 1
	}
	for j := lo; j <= hi; j++ {
		if j == i {
			continue
		}
		if !cmp(current, field.Value(candles[j])) {
			return false
		}
	}
	return true
}

// Points extracts (time, field) pairs from candles.
func Points(candles []models.Candle, field Field) []Point {
	points := make([]Point, len(candles))
	for i, c := range candles {
		points[i] = Point{Time: c.Time, Price: field.Value(c)}
	}
	return points
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	return values
}

// ToPoints zips index-aligned values with candle times, dropping NaN entries.
func ToPoints(candles []models.Candle, values []float64) []models.IndicatorPoint {
	points := make([]models.IndicatorPoint, 0, len(values))
	for i, v := range values {
		if i >= len(candles) || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		points = append(points, models.IndicatorPoint{Time: candles[i].Time, Value: v})
	}
	return points
}
