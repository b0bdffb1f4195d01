package indicators

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"chartlab/internal/analysis/series"
	"chartlab/internal/models"
)

// Property: for any valid candle data, bounded indicators stay inside their
// mathematical range and derived series agree with their definitions.

// candleGen generates valid candle data with realistic OHLCV values
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Open":   gen.Float64Range(100.0, 1000.0),
		"High":   gen.Float64Range(100.0, 1000.0),
		"Low":    gen.Float64Range(100.0, 1000.0),
		"Close":  gen.Float64Range(100.0, 1000.0),
		"Volume": gen.Float64Range(1000, 10000000),
	}).Map(func(c models.Candle) models.Candle {
		return normalizeCandle(c)
	})
}

// normalizeCandle enforces Low <= min(Open, Close) <= max(Open, Close) <= High
// with a non-zero range.
func normalizeCandle(c models.Candle) models.Candle {
	c.High = math.Max(c.High, math.Max(c.Open, c.Close))
	c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
	if c.High <= c.Low {
		c.High = c.Low + 1.0
	}
	return c
}

// candleSliceGen generates a slice of valid candles one day apart
func candleSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, candleGen()).Map(func(candles []models.Candle) []models.Candle {
		for len(candles) < minLen {
			if len(candles) == 0 {
				candles = append(candles, models.Candle{Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000})
				continue
			}
			candles = append(candles, candles[len(candles)-1])
		}
		start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
		for i := range candles {
			candles[i] = normalizeCandle(candles[i])
			candles[i].Time = start + int64(i)*86400
		}
		return candles
	})
}

func newProperties() *gopter.Properties {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	return gopter.NewProperties(parameters)
}

func withinBounds(points []models.IndicatorPoint, lo, hi float64) bool {
	for _, p := range points {
		if p.Value < lo || p.Value > hi {
			return false
		}
	}
	return true
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	properties := newProperties()

	properties.Property("RSI values are within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			values, err := NewRSI(14).Calculate(candles)
			if err != nil {
				return false
			}
			return len(values) == len(candles)-14 && withinBounds(values, 0, 100)
		},
		candleSliceGen(20, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_StochasticWithinBounds(t *testing.T) {
	properties := newProperties()

	properties.Property("Stochastic %K values are within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			values, err := NewStochastic(14).Calculate(candles)
			if err != nil {
				return false
			}
			return withinBounds(values, 0, 100)
		},
		candleSliceGen(20, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_ADXIsNonNegative(t *testing.T) {
	properties := newProperties()

	properties.Property("simplified ADX is non-negative for valid candles", prop.ForAll(
		func(candles []models.Candle) bool {
			values, err := NewADX(14).Calculate(candles)
			if err != nil {
				return false
			}
			return withinBounds(values, 0, math.Inf(1))
		},
		candleSliceGen(20, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_BollingerBandsOrdering(t *testing.T) {
	properties := newProperties()

	properties.Property("Bollinger Bands: Lower <= Middle <= Upper", prop.ForAll(
		func(candles []models.Candle) bool {
			res, err := CalculateBollinger(series.Closes(candles), 20, 2.0)
			if err != nil {
				return false
			}
			for i := 19; i < len(candles); i++ {
				if res.Lower[i] > res.Middle[i] || res.Middle[i] > res.Upper[i] {
					return false
				}
			}
			return true
		},
		candleSliceGen(25, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_SMAIsAverageOfPrices(t *testing.T) {
	properties := newProperties()

	properties.Property("SMA is the arithmetic mean of closing prices over the period", prop.ForAll(
		func(candles []models.Candle) bool {
			period := 10
			values, err := NewSMA(period).Calculate(candles)
			if err != nil || len(values) != len(candles)-period+1 {
				return false
			}

			closes := series.Closes(candles)
			for k, v := range values {
				i := k + period - 1
				if v.Time != candles[i].Time {
					return false
				}
				if math.Abs(v.Value-series.Mean(closes[i-period+1:i+1])) > 1e-6 {
					return false
				}
			}
			return true
		},
		candleSliceGen(15, 50),
	))

	properties.TestingRun(t)
}

func TestProperty_OBVReconstructsVolume(t *testing.T) {
	properties := newProperties()

	properties.Property("OBV deltas equal signed volume", prop.ForAll(
		func(candles []models.Candle) bool {
			obv := CalculateOBV(series.Closes(candles), series.Volumes(candles))
			if obv[0] != candles[0].Volume {
				return false
			}
			for i := 1; i < len(candles); i++ {
				delta := obv[i] - obv[i-1]
				want := 0.0
				switch {
				case candles[i].Close > candles[i-1].Close:
					want = candles[i].Volume
				case candles[i].Close < candles[i-1].Close:
					want = -candles[i].Volume
				}
				if math.Abs(delta-want) > 1e-6*math.Max(1, math.Abs(obv[i])) {
					return false
				}
			}
			return true
		},
		candleSliceGen(2, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_ShortInputYieldsNoPoints(t *testing.T) {
	properties := newProperties()

	properties.Property("series shorter than the period produce no points", prop.ForAll(
		func(candles []models.Candle) bool {
			for _, name := range Names() {
				ind, err := Lookup(name)
				if err != nil {
					return false
				}
				if name == "obv" {
					continue
				}
				values, err := ind.Calculate(candles[:ind.Period()-1])
				if err != nil || len(values) != 0 {
					return false
				}
			}
			return true
		},
		candleSliceGen(60, 60),
	))

	properties.TestingRun(t)
}
