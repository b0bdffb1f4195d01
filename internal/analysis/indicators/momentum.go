package indicators

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"chartlab/internal/analysis/series"
	"chartlab/internal/models"
)

// CalculateRSI computes RSI from simple averages of gains and losses over the
// trailing period changes. The first value sits at index period.
func CalculateRSI(closes []float64, period int) ([]float64, error) {
	if err := validPeriods(period); err != nil {
		return nil, err
	}
	n := len(closes)
	result := series.NaNs(n)
	if n < period+1 {
		return result, nil
	}

	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	for i := period; i < n; i++ {
		avgGain := series.Mean(gains[i-period+1 : i+1])
		avgLoss := series.Mean(losses[i-period+1 : i+1])
		if avgLoss == 0 {
			result[i] = 100
			continue
		}
		result[i] = 100 - 100/(1+avgGain/avgLoss)
	}
	return result, nil
}

// CalculateStochasticK computes %K. A window with zero range yields no value.
func CalculateStochasticK(highs, lows, closes []float64, period int) ([]float64, error) {
	if err := validPeriods(period); err != nil {
		return nil, err
	}
	n := series.MinLen(highs, lows, closes)
	result := series.NaNs(n)
	for i := period - 1; i < n; i++ {
		highest := series.Highest(highs[i-period+1 : i+1])
		lowest := series.Lowest(lows[i-period+1 : i+1])
		result[i] = ratio(closes[i]-lowest, highest-lowest) * 100
	}
	return result, nil
}

// CalculateCCI computes the Commodity Channel Index on typical prices.
func CalculateCCI(highs, lows, closes []float64, period int) ([]float64, error) {
	if err := validPeriods(period); err != nil {
		return nil, err
	}
	n := series.MinLen(highs, lows, closes)
	if n < period {
		return series.NaNs(n), nil
	}
	result := masked(talib.Cci(highs[:n], lows[:n], closes[:n], period), period-1)

	// A flat window has no mean deviation; talib reports 0 there.
	tp := series.TypicalPrices(highs, lows, closes)
	for i := period - 1; i < n; i++ {
		window := tp[i-period+1 : i+1]
		if series.Highest(window) == series.Lowest(window) {
			result[i] = math.NaN()
		}
	}
	return result, nil
}

// CalculateROC computes the percent rate of change over period candles.
func CalculateROC(closes []float64, period int) ([]float64, error) {
	if err := validPeriods(period); err != nil {
		return nil, err
	}
	result := masked(talib.Roc(closes, period), period)
	for i := period; i < len(closes); i++ {
		if closes[i-period] == 0 {
			result[i] = math.NaN()
		}
	}
	return result, nil
}

// RSI calculates the Relative Strength Index.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

func (r *RSI) Period() int {
	return r.period + 1
}

func (r *RSI) Calculate(candles []models.Candle) ([]models.IndicatorPoint, error) {
	values, err := CalculateRSI(series.Closes(candles), r.period)
	if err != nil {
		return nil, err
	}
	return points(candles, values), nil
}

// Stochastic calculates the Stochastic Oscillator %K.
type Stochastic struct {
	period int
}

// NewStochastic creates a new Stochastic indicator.
func NewStochastic(period int) *Stochastic {
	return &Stochastic{period: period}
}

func (s *Stochastic) Name() string {
	return fmt.Sprintf("STOCH_%d", s.period)
}

func (s *Stochastic) Period() int {
	return s.period
}

func (s *Stochastic) Calculate(candles []models.Candle) ([]models.IndicatorPoint, error) {
	values, err := CalculateStochasticK(series.Highs(candles), series.Lows(candles), series.Closes(candles), s.period)
	if err != nil {
		return nil, err
	}
	return points(candles, values), nil
}

// CCI calculates the Commodity Channel Index.
type CCI struct {
	period int
}

// NewCCI creates a new CCI indicator.
func NewCCI(period int) *CCI {
	return &CCI{period: period}
}

func (c *CCI) Name() string {
	return fmt.Sprintf("CCI_%d", c.period)
}

func (c *CCI) Period() int {
	return c.period
}

func (c *CCI) Calculate(candles []models.Candle) ([]models.IndicatorPoint, error) {
	values, err := CalculateCCI(series.Highs(candles), series.Lows(candles), series.Closes(candles), c.period)
	if err != nil {
		return nil, err
	}
	return points(candles, values), nil
}

// ROC calculates the Rate of Change.
type ROC struct {
	period int
}

// NewROC creates a new ROC indicator.
func NewROC(period int) *ROC {
	return &ROC{period: period}
}

func (r *ROC) Name() string {
	return fmt.Sprintf("ROC_%d", r.period)
}

func (r *ROC) Period() int {
	return r.period + 1
}

func (r *ROC) Calculate(candles []models.Candle) ([]models.IndicatorPoint, error) {
	values, err := CalculateROC(series.Closes(candles), r.period)
	if err != nil {
		return nil, err
	}
	return points(candles, values), nil
}
