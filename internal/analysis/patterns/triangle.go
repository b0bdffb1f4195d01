package patterns

import (
	"math"

	"chartlab/internal/analysis/series"
	"chartlab/internal/models"
)

// TriangleConfig configures the symmetric triangle detector.
type TriangleConfig struct {
	History           int     `mapstructure:"history" yaml:"history"`
	Lookahead         int     `mapstructure:"lookahead" yaml:"lookahead"`
	BreakoutTolerance float64 `mapstructure:"breakout_tolerance" yaml:"breakout_tolerance"`
	VolumeSpikeFactor float64 `mapstructure:"volume_spike_factor" yaml:"volume_spike_factor"`
	VolumeLookback    int     `mapstructure:"volume_lookback" yaml:"volume_lookback"`
	MinProgress       float64 `mapstructure:"min_progress" yaml:"min_progress"`
	MaxProgress       float64 `mapstructure:"max_progress" yaml:"max_progress"`
}

// DefaultTriangleConfig returns the default triangle parameters.
func DefaultTriangleConfig() TriangleConfig {
	return TriangleConfig{
		History:           15,
		Lookahead:         5,
		BreakoutTolerance: 0.02,
		VolumeSpikeFactor: 1.5,
		VolumeLookback:    7,
		MinProgress:       0.5,
		MaxProgress:       0.8,
	}
}

// Validate checks the window sizes and ratios.
func (c TriangleConfig) Validate() error {
	switch {
	case c.History <= 0:
		return invalidParam(NameTriangle, "history", "must be positive")
	case c.Lookahead < 0:
		return invalidParam(NameTriangle, "lookahead", "must not be negative")
	case c.VolumeLookback <= 0:
		return invalidParam(NameTriangle, "volume_lookback", "must be positive")
	case c.VolumeSpikeFactor <= 0:
		return invalidParam(NameTriangle, "volume_spike_factor", "must be positive")
	case c.BreakoutTolerance < 0 || c.BreakoutTolerance >= 1:
		return invalidParam(NameTriangle, "breakout_tolerance", "must be between 0 and 1")
	case c.MinProgress < 0 || c.MaxProgress > 1 || c.MinProgress > c.MaxProgress:
		return invalidParam(NameTriangle, "min_progress/max_progress", "must satisfy 0 <= min <= max <= 1")
	}
	return nil
}

// minTriangleWindow is the smallest window worth fitting.
const minTriangleWindow = 10

// volumeRecentSkip is how many trailing candles are excluded from the volume
// baseline.
const volumeRecentSkip = 3

// Line is a boundary anchored at a point with a slope in price per second.
type Line struct {
	StartTime  int64
	StartPrice float64
	Slope      float64
}

// PriceAt projects the line to time t.
func (l Line) PriceAt(t float64) float64 {
	return l.StartPrice + l.Slope*(t-float64(l.StartTime))
}

// Convergence is where two boundaries meet. Time may fall between candles.
type Convergence struct {
	Time  float64
	Price float64
}

// FindUpperTrend fits the endpoint slope through highs and returns the line
// only when it is falling. At least three points are required.
func FindUpperTrend(highs []series.Point) *Line {
	return fitBoundary(highs, func(slope float64) bool { return slope < 0 })
}

// FindLowerTrend fits the endpoint slope through lows and returns the line
// only when it is rising.
func FindLowerTrend(lows []series.Point) *Line {
	return fitBoundary(lows, func(slope float64) bool { return slope > 0 })
}

func fitBoundary(points []series.Point, accept func(float64) bool) *Line {
	if len(points) < 3 {
		return nil
	}
	slope := series.EndpointSlope(points)
	if !accept(slope) {
		return nil
	}
	return &Line{StartTime: points[0].Time, StartPrice: points[0].Price, Slope: slope}
}

// ConvergencePoint intersects upper and lower. Parallel lines yield nil.
func ConvergencePoint(upper, lower *Line) *Convergence {
	if upper == nil || lower == nil {
		return nil
	}
	slopeDiff := upper.Slope - lower.Slope
	if math.Abs(slopeDiff) < 1e-12 {
		return nil
	}
	// Both lines expressed relative to the upper anchor time.
	timeDiff := float64(lower.StartTime - upper.StartTime)
	priceDiff := lower.StartPrice - upper.StartPrice
	t := float64(upper.StartTime) + (priceDiff-lower.Slope*timeDiff)/slopeDiff
	return &Convergence{Time: t, Price: upper.PriceAt(t)}
}

// TriangleDetector finds converging high/low boundaries and reports the
// breakout candle when it closes outside the band.
type TriangleDetector struct {
	cfg TriangleConfig
}

// NewTriangleDetector creates a new triangle detector.
func NewTriangleDetector(cfg TriangleConfig) *TriangleDetector {
	return &TriangleDetector{cfg: cfg}
}

func (d *TriangleDetector) Name() string {
	return NameTriangle
}

// Detect slides a History+Lookahead window one candle at a time.
func (d *TriangleDetector) Detect(candles []models.Candle) ([]models.PatternEvent, error) {
	var events []models.PatternEvent
	if d.cfg.History <= 0 || d.cfg.Lookahead < 0 {
		return dedupe(events), nil
	}
	for i := d.cfg.History; i < len(candles)-d.cfg.Lookahead; i++ {
		window := candles[i-d.cfg.History : i+d.cfg.Lookahead]
		if e := d.detectWindow(window); e != nil {
			events = append(events, *e)
		}
	}
	return dedupe(events), nil
}

func (d *TriangleDetector) detectWindow(window []models.Candle) *models.PatternEvent {
	if len(window) < minTriangleWindow {
		return nil
	}

	// Boundaries are fitted on the history part only; the lookahead candles
	// are where a breakout can show.
	fit := window
	if len(fit) > d.cfg.History {
		fit = fit[:d.cfg.History]
	}
	highs, lows := series.Points(fit, series.FieldHigh), series.Points(fit, series.FieldLow)
	upper := FindUpperTrend(highs)
	if upper == nil {
		return nil
	}
	lower := FindLowerTrend(lows)
	if lower == nil {
		return nil
	}
	conv := ConvergencePoint(upper, lower)
	if conv == nil {
		return nil
	}

	first, last := window[0], window[len(window)-1]
	span := conv.Time - float64(first.Time)
	if span <= 0 {
		return nil
	}
	progress := float64(last.Time-first.Time) / span
	if progress < d.cfg.MinProgress || progress > d.cfg.MaxProgress {
		return nil
	}

	upperPrice := upper.PriceAt(float64(last.Time))
	lowerPrice := lower.PriceAt(float64(last.Time))
	tolerance := math.Max(upperPrice, lowerPrice) * d.cfg.BreakoutTolerance

	var dir models.Direction
	switch {
	case last.Close > upperPrice+tolerance:
		dir = models.DirectionUp
	case last.Close < lowerPrice-tolerance:
		dir = models.DirectionDown
	default:
		return nil
	}

	return &models.PatternEvent{
		Kind:        models.EventTriangleBreakout,
		Time:        last.Time,
		Price:       last.Close,
		Direction:   dir,
		VolumeSpike: d.volumeSpike(window),
		Metrics: map[string]float64{
			"upper_slope":       upper.Slope,
			"lower_slope":       lower.Slope,
			"upper_fit_slope":   series.LinearSlope(highs),
			"lower_fit_slope":   series.LinearSlope(lows),
			"convergence_time":  conv.Time,
			"convergence_price": conv.Price,
			"progress":          progress,
		},
	}
}

// volumeSpike compares the last candle's volume with the mean of the
// VolumeLookback candles preceding the trailing volumeRecentSkip.
func (d *TriangleDetector) volumeSpike(window []models.Candle) bool {
	n := len(window)
	end := n - volumeRecentSkip
	start := end - d.cfg.VolumeLookback
	if start < 0 || start >= end {
		return false
	}
	avg := averageVolume(window[start:end])
	return window[n-1].Volume > avg*d.cfg.VolumeSpikeFactor
}
