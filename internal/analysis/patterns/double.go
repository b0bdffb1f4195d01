package patterns

import (
	"math"

	"chartlab/internal/analysis/series"
	"chartlab/internal/models"
)

// DoubleConfig configures the double top/bottom detector.
type DoubleConfig struct {
	History        int     `mapstructure:"history" yaml:"history"`
	Lookahead      int     `mapstructure:"lookahead" yaml:"lookahead"`
	PeakLookback   int     `mapstructure:"peak_lookback" yaml:"peak_lookback"`
	PriceTolerance float64 `mapstructure:"price_tolerance" yaml:"price_tolerance"`
}

// DefaultDoubleConfig returns the default parameters.
func DefaultDoubleConfig() DoubleConfig {
	return DoubleConfig{
		History:        20,
		Lookahead:      5,
		PeakLookback:   2,
		PriceTolerance: 0.05,
	}
}

// Validate checks the window sizes and the price tolerance.
func (c DoubleConfig) Validate() error {
	switch {
	case c.History <= 0:
		return invalidParam(NameDouble, "history", "must be positive")
	case c.Lookahead < 0:
		return invalidParam(NameDouble, "lookahead", "must not be negative")
	case c.PeakLookback <= 0:
		return invalidParam(NameDouble, "peak_lookback", "must be positive")
	case c.PriceTolerance < 0 || c.PriceTolerance >= 1:
		return invalidParam(NameDouble, "price_tolerance", "must be between 0 and 1")
	}
	return nil
}

// minDoublePeakWindow is the fewest candles a peak search runs on.
const minDoublePeakWindow = 10

// DoubleDetector finds two similar peaks (troughs) and reports the first
// close through the horizontal neckline between them.
type DoubleDetector struct {
	cfg DoubleConfig
}

// NewDoubleDetector creates a new double top/bottom detector.
func NewDoubleDetector(cfg DoubleConfig) *DoubleDetector {
	return &DoubleDetector{cfg: cfg}
}

func (d *DoubleDetector) Name() string {
	return NameDouble
}

func (d *DoubleDetector) Detect(candles []models.Candle) ([]models.PatternEvent, error) {
	var events []models.PatternEvent
	if d.cfg.History <= 0 || d.cfg.Lookahead < 0 {
		return dedupe(events), nil
	}

	for i := d.cfg.History; i < len(candles)-d.cfg.Lookahead; i++ {
		if e := d.detectWindow(candles[i-d.cfg.History : i+d.cfg.Lookahead]); e != nil {
			events = append(events, *e)
		}
	}
	return dedupe(events), nil
}

// detectWindow checks for a double top first; a window holding a double top
// formation is not searched for a bottom.
func (d *DoubleDetector) detectWindow(window []models.Candle) *models.PatternEvent {
	if len(window) < d.cfg.History {
		return nil
	}
	if p1, p2, ok := d.similarPair(window, series.FieldHigh, series.Greater); ok {
		return d.breakout(window, p1, p2, models.EventDoubleTop)
	}
	if v1, v2, ok := d.similarPair(window, series.FieldLow, series.Less); ok {
		return d.breakout(window, v1, v2, models.EventDoubleBottom)
	}
	return nil
}

// similarPair returns the last two extrema of field whose prices lie within
// PriceTolerance of their mean.
func (d *DoubleDetector) similarPair(window []models.Candle, field series.Field, cmp series.Compare) (int, int, bool) {
	if len(window) < minDoublePeakWindow {
		return 0, 0, false
	}
	idx := localPeaks(window, d.cfg.PeakLookback, field, cmp)
	if len(idx) < 2 {
		return 0, 0, false
	}
	a, b := idx[len(idx)-2], idx[len(idx)-1]
	pa, pb := field.Value(window[a]), field.Value(window[b])
	avg := (pa + pb) / 2
	if avg == 0 || math.Abs(pa-pb)/avg > d.cfg.PriceTolerance {
		return 0, 0, false
	}
	return a, b, true
}

// breakout finds the neckline between the two extrema and the first later
// close strictly beyond it.
func (d *DoubleDetector) breakout(window []models.Candle, first, second int, kind models.EventKind) *models.PatternEvent {
	top := kind == models.EventDoubleTop

	neck := window[first].Low
	if !top {
		neck = window[first].High
	}
	for _, c := range window[first : second+1] {
		if top && c.Low < neck {
			neck = c.Low
		}
		if !top && c.High > neck {
			neck = c.High
		}
	}

	for _, c := range window[second+1:] {
		if top && c.Close < neck {
			return d.event(kind, models.DirectionDown, c, window[first], window[second], neck)
		}
		if !top && c.Close > neck {
			return d.event(kind, models.DirectionUp, c, window[first], window[second], neck)
		}
	}
	return nil
}

func (d *DoubleDetector) event(kind models.EventKind, dir models.Direction, c, first, second models.Candle, neck float64) *models.PatternEvent {
	field := series.FieldHigh
	if kind == models.EventDoubleBottom {
		field = series.FieldLow
	}
	return &models.PatternEvent{
		Kind:      kind,
		Time:      c.Time,
		Price:     c.Close,
		Direction: dir,
		Metrics: map[string]float64{
			"first_extreme":  field.Value(first),
			"second_extreme": field.Value(second),
			"neckline":       neck,
		},
	}
}
