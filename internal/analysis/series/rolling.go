package series

import (
	"math"

	"chartlab/internal/models"
)

// Sum calculates the sum of a slice of float64.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean calculates the arithmetic mean of a slice of float64.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// Variance returns the population variance.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	var variance float64
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	return variance / float64(len(values))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// MeanAbsDeviation returns the mean absolute deviation around the mean.
func MeanAbsDeviation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	var dev float64
	for _, v := range values {
		dev += math.Abs(v - m)
	}
	return dev / float64(len(values))
}

// Highest returns the highest value in a slice.
func Highest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	h := values[0]
	for _, v := range values[1:] {
		if v > h {
			h = v
		}
	}
	return h
}

// Lowest returns the lowest value in a slice.
func Lowest(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	l := values[0]
	for _, v := range values[1:] {
		if v < l {
			l = v
		}
	}
	return l
}

// Closes extracts close prices from candles.
func Closes(candles []models.Candle) []float64 {
	return extract(candles, FieldClose)
}

// Highs extracts high prices from candles.
func Highs(candles []models.Candle) []float64 {
	return extract(candles, FieldHigh)
}

// Lows extracts low prices from candles.
func Lows(candles []models.Candle) []float64 {
	return extract(candles, FieldLow)
}

// Volumes extracts volumes from candles.
func Volumes(candles []models.Candle) []float64 {
	return extract(candles, FieldVolume)
}

// TypicalPrices returns (high+low+close)/3 per candle.
func TypicalPrices(highs, lows, closes []float64) []float64 {
	n := MinLen(highs, lows, closes)
	tp := make([]float64, n)
	for i := 0; i < n; i++ {
		tp[i] = (highs[i] + lows[i] + closes[i]) / 3
	}
	return tp
}

func extract(candles []models.Candle, field Field) []float64 {
	values := make([]float64, len(candles))
	for i, c := range candles {
		values[i] = field.Value(c)
	}
	return values
}

// MinLen returns the length of the shortest slice.
func MinLen(slices ...[]float64) int {
	if len(slices) == 0 {
		return 0
	}
	n := len(slices[0])
	for _, s := range slices[1:] {
		if len(s) < n {
			n = len(s)
		}
	}
	return n
}
