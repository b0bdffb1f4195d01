package patterns

import (
	"chartlab/internal/models"
)

// LevelSource derives support/resistance levels from a series.
type LevelSource func(candles []models.Candle) []models.Level

// TrendSource derives trend lines from a series.
type TrendSource func(candles []models.Candle) []models.TrendLine

// LevelTouchDetector emits an event for every confirming touch of a level,
// that is each touch after the first.
type LevelTouchDetector struct {
	levels LevelSource
}

// NewLevelTouchDetector creates a detector over the levels src produces.
func NewLevelTouchDetector(src LevelSource) *LevelTouchDetector {
	return &LevelTouchDetector{levels: src}
}

func (d *LevelTouchDetector) Name() string {
	return NameLevelTouch
}

func (d *LevelTouchDetector) Detect(candles []models.Candle) ([]models.PatternEvent, error) {
	return TouchEvents(d.levels(candles)), nil
}

// TouchEvents converts level touches into events priced at the level.
func TouchEvents(levels []models.Level) []models.PatternEvent {
	var events []models.PatternEvent
	for _, lvl := range levels {
		kind, dir := models.EventSupportTouch, models.DirectionUp
		if lvl.Kind == models.LevelResistance {
			kind, dir = models.EventResistanceTouch, models.DirectionDown
		}
		for n, touch := range lvl.Touches {
			if n == 0 {
				continue
			}
			events = append(events, models.PatternEvent{
				Kind:      kind,
				Time:      touch.Time,
				Price:     lvl.Price,
				Direction: dir,
				Metrics: map[string]float64{
					"touch":       float64(n + 1),
					"swing_price": touch.Price,
				},
			})
		}
	}
	return dedupe(events)
}

// DefaultTrendBreakoutTolerance is the fraction a close must clear the line by.
const DefaultTrendBreakoutTolerance = 0.02

// TrendBreakoutDetector emits the first close that breaks a trend line against
// its direction.
type TrendBreakoutDetector struct {
	lines     TrendSource
	tolerance float64
}

// NewTrendBreakoutDetector creates a detector over the lines src produces.
func NewTrendBreakoutDetector(src TrendSource, tolerance float64) *TrendBreakoutDetector {
	if tolerance <= 0 {
		tolerance = DefaultTrendBreakoutTolerance
	}
	return &TrendBreakoutDetector{lines: src, tolerance: tolerance}
}

func (d *TrendBreakoutDetector) Name() string {
	return NameTrendBreakout
}

func (d *TrendBreakoutDetector) Detect(candles []models.Candle) ([]models.PatternEvent, error) {
	return BreakoutEvents(candles, d.lines(candles), d.tolerance), nil
}

// BreakoutEvents scans candles after each line's second anchor. An upward
// line broken from above signals down, a downward line broken from below
// signals up.
func BreakoutEvents(candles []models.Candle, lines []models.TrendLine, tolerance float64) []models.PatternEvent {
	var events []models.PatternEvent
	for _, line := range lines {
		for _, c := range candles {
			if c.Time <= line.Anchor2.Time {
				continue
			}
			projected := line.PriceAt(c.Time)
			band := projected * tolerance

			var dir models.Direction
			switch {
			case line.Kind == models.TrendUpward && c.Close < projected-band:
				dir = models.DirectionDown
			case line.Kind == models.TrendDownward && c.Close > projected+band:
				dir = models.DirectionUp
			default:
				continue
			}
			events = append(events, models.PatternEvent{
				Kind:      models.EventTrendBreakout,
				Time:      c.Time,
				Price:     c.Close,
				Direction: dir,
				Metrics: map[string]float64{
					"line_price":  projected,
					"slope":       line.Slope,
					"reliability": line.Reliability,
				},
			})
			break
		}
	}
	return dedupe(events)
}
