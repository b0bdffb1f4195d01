package indicators

import (
	talib "github.com/markcheno/go-talib"

	"chartlab/internal/analysis/series"
	"chartlab/internal/models"
)

// CalculateOBV computes On-Balance Volume. Mismatched input lengths yield an
// empty series.
func CalculateOBV(closes, volumes []float64) []float64 {
	if len(closes) != len(volumes) || len(closes) == 0 {
		return []float64{}
	}
	return talib.Obv(closes, volumes)
}

// OBV calculates On-Balance Volume.
type OBV struct{}

// NewOBV creates a new OBV indicator.
func NewOBV() *OBV {
	return &OBV{}
}

func (o *OBV) Name() string {
	return "OBV"
}

func (o *OBV) Period() int {
	return 1
}

func (o *OBV) Calculate(candles []models.Candle) ([]models.IndicatorPoint, error) {
	return points(candles, CalculateOBV(series.Closes(candles), series.Volumes(candles))), nil
}
