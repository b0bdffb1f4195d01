package patterns

import (
	"fmt"

	"chartlab/internal/analysis/series"
	apperrors "chartlab/internal/errors"
	"chartlab/internal/models"
)

// MACrossConfig configures the moving-average cross detector.
type MACrossConfig struct {
	Short int `mapstructure:"short" yaml:"short"`
	Long  int `mapstructure:"long" yaml:"long"`
}

// DefaultMACrossConfig returns the classic 50/200 pair.
func DefaultMACrossConfig() MACrossConfig {
	return MACrossConfig{Short: 50, Long: 200}
}

// Validate checks both periods are positive.
func (c MACrossConfig) Validate() error {
	if c.Short <= 0 {
		return invalidParam(NameMACross, "short", "must be positive")
	}
	if c.Long <= 0 {
		return invalidParam(NameMACross, "long", "must be positive")
	}
	return nil
}

// MACrossDetector emits golden and dead crosses of two simple moving averages.
type MACrossDetector struct {
	cfg MACrossConfig
}

// NewMACrossDetector creates a new MA cross detector.
func NewMACrossDetector(cfg MACrossConfig) *MACrossDetector {
	return &MACrossDetector{cfg: cfg}
}

func (d *MACrossDetector) Name() string {
	return NameMACross
}

// Detect walks both averages from the first index where the long one is
// defined. A cross fires whenever the sign of short-long differs from the last
// non-zero sign, so touching without crossing emits nothing.
func (d *MACrossDetector) Detect(candles []models.Candle) ([]models.PatternEvent, error) {
	if d.cfg.Short <= 0 || d.cfg.Long <= 0 {
		return nil, apperrors.ErrInvalidPeriod
	}
	if len(candles) < d.cfg.Long {
		return nil, fmt.Errorf("ma cross needs %d candles, got %d: %w", d.cfg.Long, len(candles), apperrors.ErrInsufficientData)
	}

	closes := series.Closes(candles)
	short := series.SMA(closes, d.cfg.Short)
	long := series.SMA(closes, d.cfg.Long)

	start := d.cfg.Long - 1
	if d.cfg.Short > d.cfg.Long {
		start = d.cfg.Short - 1
	}

	events := []models.PatternEvent{}
	lastSign := 0
	for i := start; i < len(candles); i++ {
		sign := signOf(short[i] - long[i])
		if sign == 0 {
			continue
		}
		if lastSign != 0 && sign != lastSign {
			kind, dir := models.EventGoldenCross, models.DirectionUp
			if sign < 0 {
				kind, dir = models.EventDeadCross, models.DirectionDown
			}
			events = append(events, models.PatternEvent{
				Kind:      kind,
				Time:      candles[i].Time,
				Price:     candles[i].Close,
				Direction: dir,
				Metrics: map[string]float64{
					"ma_short":      short[i],
					"ma_long":       long[i],
					"prev_ma_short": short[i-1],
					"prev_ma_long":  long[i-1],
				},
			})
		}
		lastSign = sign
	}
	return events, nil
}

func signOf(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
