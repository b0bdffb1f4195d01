package indicators

import (
	"fmt"

	talib "github.com/markcheno/go-talib"

	"chartlab/internal/analysis/series"
	"chartlab/internal/models"
)

// BollingerResult holds the band series, index-aligned with the input.
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// CalculateBollinger computes Bollinger Bands with population standard deviation.
func CalculateBollinger(closes []float64, period int, stdDev float64) (*BollingerResult, error) {
	if err := validPeriods(period); err != nil {
		return nil, err
	}
	n := len(closes)
	if n < period {
		return &BollingerResult{
			Upper:  series.NaNs(n),
			Middle: series.NaNs(n),
			Lower:  series.NaNs(n),
		}, nil
	}
	upper, middle, lower := talib.BBands(closes, period, stdDev, stdDev, talib.SMA)
	return &BollingerResult{
		Upper:  masked(upper, period-1),
		Middle: masked(middle, period-1),
		Lower:  masked(lower, period-1),
	}, nil
}

// Bollinger calculates Bollinger Bands. Calculate yields the upper band.
type Bollinger struct {
	period int
	stdDev float64
}

// NewBollinger creates a new Bollinger Bands indicator.
func NewBollinger(period int, stdDev float64) *Bollinger {
	return &Bollinger{period: period, stdDev: stdDev}
}

func (b *Bollinger) Name() string {
	return fmt.Sprintf("BB_%d_%.1f", b.period, b.stdDev)
}

func (b *Bollinger) Period() int {
	return b.period
}

func (b *Bollinger) Calculate(candles []models.Candle) ([]models.IndicatorPoint, error) {
	res, err := CalculateBollinger(series.Closes(candles), b.period, b.stdDev)
	if err != nil {
		return nil, err
	}
	return points(candles, res.Upper), nil
}

func (b *Bollinger) CalculateMulti(candles []models.Candle) (map[string][]models.IndicatorPoint, error) {
	res, err := CalculateBollinger(series.Closes(candles), b.period, b.stdDev)
	if err != nil {
		return nil, err
	}
	return map[string][]models.IndicatorPoint{
		"upper":  points(candles, res.Upper),
		"middle": points(candles, res.Middle),
		"lower":  points(candles, res.Lower),
	}, nil
}
