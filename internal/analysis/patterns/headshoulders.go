package patterns

import (
	"math"
	"sort"

	"chartlab/internal/analysis/series"
	"chartlab/internal/models"
)

// HeadShouldersConfig configures the head-and-shoulders detector.
type HeadShouldersConfig struct {
	MinWindow         int     `mapstructure:"min_window" yaml:"min_window"`
	MaxWindow         int     `mapstructure:"max_window" yaml:"max_window"`
	Lookahead         int     `mapstructure:"lookahead" yaml:"lookahead"`
	PeakLookback      int     `mapstructure:"peak_lookback" yaml:"peak_lookback"`
	HeadRatio         float64 `mapstructure:"head_ratio" yaml:"head_ratio"`
	ShoulderTolerance float64 `mapstructure:"shoulder_tolerance" yaml:"shoulder_tolerance"`
	NecklineTolerance float64 `mapstructure:"neckline_tolerance" yaml:"neckline_tolerance"`
	VolumeSpikeFactor float64 `mapstructure:"volume_spike_factor" yaml:"volume_spike_factor"`
}

// DefaultHeadShouldersConfig returns the default parameters.
func DefaultHeadShouldersConfig() HeadShouldersConfig {
	return HeadShouldersConfig{
		MinWindow:         15,
		MaxWindow:         25,
		Lookahead:         3,
		PeakLookback:      1,
		HeadRatio:         0.95,
		ShoulderTolerance: 0.30,
		NecklineTolerance: 0.05,
		VolumeSpikeFactor: 1.2,
	}
}

// Validate checks the window sizes and ratios.
func (c HeadShouldersConfig) Validate() error {
	switch {
	case c.MinWindow <= 0:
		return invalidParam(NameHeadShoulders, "min_window", "must be positive")
	case c.MaxWindow < c.MinWindow:
		return invalidParam(NameHeadShoulders, "max_window", "must be at least min_window")
	case c.Lookahead < 0:
		return invalidParam(NameHeadShoulders, "lookahead", "must not be negative")
	case c.PeakLookback <= 0:
		return invalidParam(NameHeadShoulders, "peak_lookback", "must be positive")
	case c.HeadRatio <= 0:
		return invalidParam(NameHeadShoulders, "head_ratio", "must be positive")
	case c.ShoulderTolerance < 0 || c.ShoulderTolerance >= 1:
		return invalidParam(NameHeadShoulders, "shoulder_tolerance", "must be between 0 and 1")
	case c.NecklineTolerance < 0 || c.NecklineTolerance >= 1:
		return invalidParam(NameHeadShoulders, "neckline_tolerance", "must be between 0 and 1")
	case c.VolumeSpikeFactor <= 0:
		return invalidParam(NameHeadShoulders, "volume_spike_factor", "must be positive")
	}
	return nil
}

// HeadShouldersDetector finds three-peak formations and reports neckline
// breaks. A break below is a head-and-shoulders top, a break above is treated
// as the inverse formation.
type HeadShouldersDetector struct {
	cfg HeadShouldersConfig
}

// NewHeadShouldersDetector creates a new head-and-shoulders detector.
func NewHeadShouldersDetector(cfg HeadShouldersConfig) *HeadShouldersDetector {
	return &HeadShouldersDetector{cfg: cfg}
}

func (d *HeadShouldersDetector) Name() string {
	return NameHeadShoulders
}

type shoulders struct {
	left, head, right models.Candle
}

func (d *HeadShouldersDetector) Detect(candles []models.Candle) ([]models.PatternEvent, error) {
	var events []models.PatternEvent
	n := len(candles)
	if d.cfg.MinWindow <= 0 || d.cfg.Lookahead < 0 {
		return dedupe(events), nil
	}

	for i := d.cfg.MinWindow; i < n-d.cfg.Lookahead; i++ {
		size := n - i
		if size < d.cfg.MinWindow {
			size = d.cfg.MinWindow
		}
		if size > d.cfg.MaxWindow {
			size = d.cfg.MaxWindow
		}
		start := i - size
		if start < 0 {
			start = 0
		}
		if e := d.detectWindow(candles[start : i+d.cfg.Lookahead]); e != nil {
			events = append(events, *e)
		}
	}
	return dedupe(events), nil
}

func (d *HeadShouldersDetector) detectWindow(window []models.Candle) *models.PatternEvent {
	if len(window) < d.cfg.MinWindow {
		return nil
	}

	peaks, ok := d.findThreePeaks(window)
	if !ok {
		return nil
	}
	neckline, ok := neckline(window, peaks.left.Time, peaks.right.Time)
	if !ok {
		return nil
	}

	var after []models.Candle
	for _, c := range window {
		if c.Time > peaks.right.Time {
			after = append(after, c)
		}
	}
	if len(after) == 0 {
		return nil
	}
	avgVolume := averageVolume(window[:len(window)-len(after)])
	tolerance := neckline.StartPrice * d.cfg.NecklineTolerance

	for _, c := range after {
		expected := neckline.PriceAt(float64(c.Time))
		var kind models.EventKind
		var dir models.Direction
		switch {
		case c.Close < expected-tolerance:
			kind, dir = models.EventHeadAndShoulders, models.DirectionDown
		case c.Close > expected+tolerance:
			kind, dir = models.EventInverseHeadAndShoulders, models.DirectionUp
		default:
			continue
		}
		return &models.PatternEvent{
			Kind:        kind,
			Time:        c.Time,
			Price:       c.Close,
			Direction:   dir,
			VolumeSpike: c.Volume > avgVolume*d.cfg.VolumeSpikeFactor,
			Metrics: map[string]float64{
				"left_shoulder":  peaks.left.High,
				"head":           peaks.head.High,
				"right_shoulder": peaks.right.High,
				"neckline":       expected,
				"neckline_slope": neckline.Slope,
			},
		}
	}
	return nil
}

// findThreePeaks takes the three most recent peaks and checks the head
// stands out and the shoulders are of similar height.
func (d *HeadShouldersDetector) findThreePeaks(window []models.Candle) (shoulders, bool) {
	idx := localPeaks(window, d.cfg.PeakLookback, series.FieldHigh, series.Greater)
	if len(idx) < 3 {
		return shoulders{}, false
	}
	idx = idx[len(idx)-3:]
	p := shoulders{left: window[idx[0]], head: window[idx[1]], right: window[idx[2]]}

	if p.head.High <= p.left.High*d.cfg.HeadRatio || p.head.High <= p.right.High*d.cfg.HeadRatio {
		return shoulders{}, false
	}
	avgShoulder := (p.left.High + p.right.High) / 2
	if avgShoulder == 0 || math.Abs(p.left.High-p.right.High)/avgShoulder > d.cfg.ShoulderTolerance {
		return shoulders{}, false
	}
	return p, true
}

// neckline joins the two lowest lows in [from, to]. With a single low, or two
// lows at the same time, the neckline is horizontal.
func neckline(window []models.Candle, from, to int64) (Line, bool) {
	var lows []series.Point
	for _, c := range window {
		if c.Time >= from && c.Time <= to {
			lows = append(lows, series.Point{Time: c.Time, Price: c.Low})
		}
	}
	if len(lows) == 0 {
		return Line{}, false
	}
	sort.SliceStable(lows, func(i, j int) bool { return lows[i].Price < lows[j].Price })

	first := lows[0]
	second := first
	if len(lows) > 1 {
		second = lows[1]
	}
	var slope float64
	if second.Time != first.Time {
		slope = (second.Price - first.Price) / float64(second.Time-first.Time)
	}
	return Line{StartTime: first.Time, StartPrice: first.Price, Slope: slope}, true
}
