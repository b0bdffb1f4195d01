package models

import (
	"fmt"
	"math"
	"sort"

	apperrors "chartlab/internal/errors"
)

// ValidateSeries checks ordering and OHLC invariants of a candle series.
// Every price and volume must be finite.
func ValidateSeries(candles []Candle) error {
	for i, c := range candles {
		if err := CheckFinite(i, c); err != nil {
			return err
		}
		if c.Low > c.High {
			return apperrors.NewValidationError(fmt.Sprintf("candles[%d].low", i), c.Low, "low above high")
		}
		body := c.Open
		if c.Close < body {
			body = c.Close
		}
		if c.Low > body {
			return apperrors.NewValidationError(fmt.Sprintf("candles[%d].low", i), c.Low, "low above candle body")
		}
		body = c.Open
		if c.Close > body {
			body = c.Close
		}
		if c.High < body {
			return apperrors.NewValidationError(fmt.Sprintf("candles[%d].high", i), c.High, "high below candle body")
		}
		if c.Volume < 0 {
			return apperrors.NewValidationError(fmt.Sprintf("candles[%d].volume", i), c.Volume, "negative volume")
		}
		if i > 0 && c.Time <= candles[i-1].Time {
			return apperrors.NewValidationError(fmt.Sprintf("candles[%d].time", i), c.Time, "timestamps must be strictly increasing")
		}
	}
	return nil
}

// CheckFinite rejects a candle with a NaN or infinite price or volume.
// i is the candle's index, used in the error's field name.
func CheckFinite(i int, c Candle) error {
	fields := [...]struct {
		name  string
		value float64
	}{
		{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close}, {"volume", c.Volume},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return apperrors.NewValidationError(fmt.Sprintf("candles[%d].%s", i, f.name), f.value, "not a finite number")
		}
	}
	return nil
}

// SortCandles orders candles by time and drops duplicate timestamps,
// keeping the last occurrence.
func SortCandles(candles []Candle) []Candle {
	sorted := make([]Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time < sorted[j].Time
	})

	out := sorted[:0]
	for _, c := range sorted {
		if len(out) > 0 && out[len(out)-1].Time == c.Time {
			out[len(out)-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// Since returns the suffix of candles whose time is at or after from.
// The returned slice shares the backing array.
func Since(candles []Candle, from int64) []Candle {
	idx := sort.Search(len(candles), func(i int) bool {
		return candles[i].Time >= from
	})
	return candles[idx:]
}
