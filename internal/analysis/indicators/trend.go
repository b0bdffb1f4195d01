package indicators

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"chartlab/internal/analysis/series"
	"chartlab/internal/models"
)

// CalculateSMA calculates a simple moving average on raw values.
func CalculateSMA(values []float64, period int) ([]float64, error) {
	if err := validPeriods(period); err != nil {
		return nil, err
	}
	if len(values) < period {
		return series.NaNs(len(values)), nil
	}
	return masked(talib.Sma(values, period), period-1), nil
}

// CalculateEMA calculates EMA on raw values. The first defined value, at
// index period-1, is the SMA seed.
func CalculateEMA(values []float64, period int) ([]float64, error) {
	if err := validPeriods(period); err != nil {
		return nil, err
	}
	if len(values) < period {
		return series.NaNs(len(values)), nil
	}
	return masked(talib.Ema(values, period), period-1), nil
}

// MACDResult holds the three MACD series, index-aligned with the input.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// CalculateMACD calculates MACD line, signal and histogram.
func CalculateMACD(closes []float64, fast, slow, signal int) (*MACDResult, error) {
	if err := validPeriods(fast, slow, signal); err != nil {
		return nil, err
	}
	n := len(closes)
	res := &MACDResult{
		Line:      series.NaNs(n),
		Signal:    series.NaNs(n),
		Histogram: series.NaNs(n),
	}

	start := slow - 1
	if fast > slow {
		start = fast - 1
	}
	if n <= start {
		return res, nil
	}

	fastEMA, _ := CalculateEMA(closes, fast)
	slowEMA, _ := CalculateEMA(closes, slow)
	for i := start; i < n; i++ {
		res.Line[i] = fastEMA[i] - slowEMA[i]
	}

	signalEMA, _ := CalculateEMA(res.Line[start:], signal)
	for i, v := range signalEMA {
		if math.IsNaN(v) {
			continue
		}
		res.Signal[start+i] = v
		res.Histogram[start+i] = res.Line[start+i] - v
	}
	return res, nil
}

// CalculateADX is the simplified trend-strength proxy used by the charting
// front end: over the trailing period+1 candles, (avgHigh-avgLow)/avgLow*100.
// It is not Wilder's ADX.
func CalculateADX(highs, lows []float64, period int) ([]float64, error) {
	if err := validPeriods(period); err != nil {
		return nil, err
	}
	n := series.MinLen(highs, lows)
	result := series.NaNs(n)
	if n < period+1 {
		return result, nil
	}

	for i := period; i < n; i++ {
		avgHigh := series.Mean(highs[i-period : i+1])
		avgLow := series.Mean(lows[i-period : i+1])
		result[i] = ratio(avgHigh-avgLow, avgLow) * 100
	}
	return result, nil
}

// SMA calculates Simple Moving Average.
type SMA struct {
	period int
}

// NewSMA creates a new SMA indicator.
func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Name() string {
	return fmt.Sprintf("SMA_%d", s.period)
}

func (s *SMA) Period() int {
	return s.period
}

func (s *SMA) Calculate(candles []models.Candle) ([]models.IndicatorPoint, error) {
	if err := validPeriods(s.period); err != nil {
		return nil, err
	}
	return series.MovingAverage(candles, s.period), nil
}

// EMA calculates Exponential Moving Average.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator.
func NewEMA(period int) *EMA {
	return &EMA{period: period}
}

func (e *EMA) Name() string {
	return fmt.Sprintf("EMA_%d", e.period)
}

func (e *EMA) Period() int {
	return e.period
}

func (e *EMA) Calculate(candles []models.Candle) ([]models.IndicatorPoint, error) {
	values, err := CalculateEMA(series.Closes(candles), e.period)
	if err != nil {
		return nil, err
	}
	return points(candles, values), nil
}

// MACD calculates Moving Average Convergence Divergence.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator; the usual periods are 12, 26, 9.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

func (m *MACD) Period() int {
	return m.slowPeriod
}

// Calculate returns the MACD line only; that is the series charts consume.
func (m *MACD) Calculate(candles []models.Candle) ([]models.IndicatorPoint, error) {
	res, err := CalculateMACD(series.Closes(candles), m.fastPeriod, m.slowPeriod, m.signalPeriod)
	if err != nil {
		return nil, err
	}
	return points(candles, res.Line), nil
}

// CalculateMulti returns line, signal and histogram.
func (m *MACD) CalculateMulti(candles []models.Candle) (map[string][]models.IndicatorPoint, error) {
	res, err := CalculateMACD(series.Closes(candles), m.fastPeriod, m.slowPeriod, m.signalPeriod)
	if err != nil {
		return nil, err
	}
	return map[string][]models.IndicatorPoint{
		"macd":      points(candles, res.Line),
		"signal":    points(candles, res.Signal),
		"histogram": points(candles, res.Histogram),
	}, nil
}

// ADX calculates the simplified trend-strength proxy.
type ADX struct {
	period int
}

// NewADX creates a new ADX indicator.
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string {
	return fmt.Sprintf("ADX_%d", a.period)
}

func (a *ADX) Period() int {
	return a.period + 1
}

func (a *ADX) Calculate(candles []models.Candle) ([]models.IndicatorPoint, error) {
	values, err := CalculateADX(series.Highs(candles), series.Lows(candles), a.period)
	if err != nil {
		return nil, err
	}
	return points(candles, values), nil
}
