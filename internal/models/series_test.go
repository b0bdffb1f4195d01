package models

import (
	"math"
	"testing"

	apperrors "chartlab/internal/errors"
)

func TestValidateSeries(t *testing.T) {
	good := func() []Candle {
		return []Candle{
			{Time: 1, Open: 10, High: 12, Low: 9, Close: 11, Volume: 100},
			{Time: 2, Open: 11, High: 13, Low: 10, Close: 12, Volume: 120},
		}
	}
	if err := ValidateSeries(good()); err != nil {
		t.Fatalf("valid series rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c []Candle)
	}{
		{"nan close", func(c []Candle) { c[1].Close = math.NaN() }},
		{"nan open", func(c []Candle) { c[0].Open = math.NaN() }},
		{"infinite high", func(c []Candle) { c[0].High = math.Inf(1) }},
		{"negative infinite low", func(c []Candle) { c[1].Low = math.Inf(-1) }},
		{"nan volume", func(c []Candle) { c[0].Volume = math.NaN() }},
		{"low above high", func(c []Candle) { c[0].Low = 13 }},
		{"high below body", func(c []Candle) { c[1].High = 11.5 }},
		{"negative volume", func(c []Candle) { c[1].Volume = -1 }},
		{"unordered", func(c []Candle) { c[1].Time = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := good()
			tt.mutate(candles)
			if err := ValidateSeries(candles); !apperrors.Is(err, apperrors.ErrInvalidSeries) {
				t.Errorf("expected ErrInvalidSeries, got %v", err)
			}
		})
	}
}

func TestSortCandlesKeepsLastDuplicate(t *testing.T) {
	got := SortCandles([]Candle{{Time: 3, Close: 1}, {Time: 1, Close: 2}, {Time: 3, Close: 5}})
	if len(got) != 2 || got[0].Time != 1 || got[1].Close != 5 {
		t.Errorf("unexpected candles %+v", got)
	}
}

func TestSince(t *testing.T) {
	candles := []Candle{{Time: 10}, {Time: 20}, {Time: 30}}
	if got := Since(candles, 15); len(got) != 2 || got[0].Time != 20 {
		t.Errorf("Since(15) = %+v", got)
	}
	if got := Since(candles, 31); len(got) != 0 {
		t.Errorf("Since(31) = %+v", got)
	}
}
