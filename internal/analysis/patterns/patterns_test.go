package patterns

import (
	"errors"
	"math"
	"testing"

	"chartlab/internal/analysis/series"
	apperrors "chartlab/internal/errors"
	"chartlab/internal/models"
)

const day = 86400

// flat returns n identical candles one day apart.
func flat(n int, price float64) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Time:   int64(i) * day,
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000,
		}
	}
	return candles
}

func countKind(events []models.PatternEvent, kind models.EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestDetectSwingPoints(t *testing.T) {
	candles := flat(15, 100)
	candles[5].High = 110
	candles[9].Low = 90
	candles[9].High = 111 // same index may be both

	swings := DetectSwingPoints(candles, 3)
	want := []struct {
		index int
		kind  models.SwingKind
		price float64
	}{
		{5, models.SwingHigh, 110},
		{9, models.SwingHigh, 111},
		{9, models.SwingLow, 90},
	}
	if len(swings) != len(want) {
		t.Fatalf("got %d swings, want %d: %+v", len(swings), len(want), swings)
	}
	for i, w := range want {
		s := swings[i]
		if s.Index != w.index || s.Kind != w.kind || s.Price != w.price || s.Time != candles[w.index].Time {
			t.Errorf("swing %d = %+v, want %+v", i, s, w)
		}
	}
}

func TestDetectSwingPointsEdgesAndTies(t *testing.T) {
	candles := flat(12, 100)
	candles[1].High = 150 // inside the first lookback, never eligible
	candles[6].High = 120
	candles[7].High = 120 // tie, neither is strict

	if swings := DetectSwingPoints(candles, 3); len(FilterSwings(swings, models.SwingHigh)) != 0 {
		t.Errorf("expected no swing highs, got %+v", swings)
	}
	if swings := DetectSwingPoints(flat(8, 100), 5); len(swings) != 0 {
		t.Errorf("short series should have no swings, got %+v", swings)
	}
}

func TestMACrossInsufficientData(t *testing.T) {
	_, err := NewMACrossDetector(DefaultMACrossConfig()).Detect(flat(199, 100))
	if !errors.Is(err, apperrors.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

// crossSeries builds 250 daily closes whose 50/200 averages cross upward at
// index 200 and nowhere else.
func crossSeries() []models.Candle {
	candles := make([]models.Candle, 250)
	for i := range candles {
		price := 100.0
		switch {
		case i >= 200:
			price = 1000
		case i >= 150:
			price = 90
		}
		candles[i] = models.Candle{
			Time:   1500000000 + int64(i)*day,
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price,
			Volume: 1000,
		}
	}
	return candles
}

func TestMACrossEndToEnd(t *testing.T) {
	candles := crossSeries()
	events, err := NewMACrossDetector(DefaultMACrossConfig()).Detect(candles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one cross, got %+v", events)
	}

	e := events[0]
	if e.Kind != models.EventGoldenCross || e.Direction != models.DirectionUp {
		t.Errorf("expected golden cross up, got %s %s", e.Kind, e.Direction)
	}
	if e.Time != candles[200].Time {
		t.Errorf("cross time = %d, want %d", e.Time, candles[200].Time)
	}

	closes := series.Closes(candles)
	wantShort := series.Mean(closes[151:201])
	wantLong := series.Mean(closes[1:201])
	if math.Abs(e.Metrics["ma_short"]-wantShort) > 1e-6 {
		t.Errorf("ma_short = %v, want %v", e.Metrics["ma_short"], wantShort)
	}
	if math.Abs(e.Metrics["ma_long"]-wantLong) > 1e-6 {
		t.Errorf("ma_long = %v, want %v", e.Metrics["ma_long"], wantLong)
	}
	if math.Abs(e.Metrics["prev_ma_short"]-series.Mean(closes[150:200])) > 1e-6 {
		t.Errorf("prev_ma_short = %v", e.Metrics["prev_ma_short"])
	}
}

func TestMACrossIgnoresTouch(t *testing.T) {
	// Short MA 1, long MA 3: the difference goes +, 0, +, + which is not a cross.
	closes := []float64{10, 10, 13, 11.5, 14, 15}
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{Time: int64(i), Open: c, High: c, Low: c, Close: c}
	}
	events, err := NewMACrossDetector(MACrossConfig{Short: 1, Long: 3}).Detect(candles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no crosses, got %+v", events)
	}
}

// doubleTopSeries has peaks of 100 (t=10) and 101 (t=40) around a trough of
// 90 (t=25), then closes at 85 (t=45).
func doubleTopSeries() []models.Candle {
	candles := make([]models.Candle, 30)
	for i := range candles {
		c := models.Candle{Time: int64(i) * 5, Open: 91.5, High: 92, Low: 91, Close: 91.5, Volume: 1000}
		if i > 9 {
			c = models.Candle{Time: int64(i) * 5, Open: 85, High: 86, Low: 84, Close: 85, Volume: 1000}
		}
		candles[i] = c
	}
	candles[2].High, candles[2].Open, candles[2].Close = 100, 95, 95
	candles[5].Low = 90
	candles[8].High, candles[8].Open, candles[8].Close = 101, 95, 95
	candles[9] = models.Candle{Time: 45, Open: 91, High: 92, Low: 84, Close: 85, Volume: 1000}
	return candles
}

func TestDoubleTop(t *testing.T) {
	events, err := NewDoubleDetector(DefaultDoubleConfig()).Detect(doubleTopSeries())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if countKind(events, models.EventDoubleTop) != 1 || len(events) != 1 {
		t.Fatalf("expected exactly one double top, got %+v", events)
	}
	e := events[0]
	if e.Time != 45 || e.Price != 85 || e.Direction != models.DirectionDown {
		t.Errorf("event = %+v, want t=45 price=85 down", e)
	}
	if e.Metrics["neckline"] != 90 {
		t.Errorf("neckline = %v, want 90", e.Metrics["neckline"])
	}
}

func TestDoubleBottom(t *testing.T) {
	// Mirror the double top around 100 so peaks become troughs.
	candles := doubleTopSeries()
	for i, c := range candles {
		candles[i] = models.Candle{
			Time:   c.Time,
			Open:   200 - c.Open,
			High:   200 - c.Low,
			Low:    200 - c.High,
			Close:  200 - c.Close,
			Volume: c.Volume,
		}
	}
	events, err := NewDoubleDetector(DefaultDoubleConfig()).Detect(candles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Kind != models.EventDoubleBottom {
		t.Fatalf("expected one double bottom, got %+v", events)
	}
	if events[0].Time != 45 || events[0].Price != 115 || events[0].Direction != models.DirectionUp {
		t.Errorf("event = %+v, want t=45 price=115 up", events[0])
	}
}

func TestFindTrendsAndConvergence(t *testing.T) {
	var highs, lows []series.Point
	for i := 0; i < 20; i++ {
		ts := int64(i) * day
		highs = append(highs, series.Point{Time: ts, Price: 130 - float64(i)})
		lows = append(lows, series.Point{Time: ts, Price: 70 + float64(i)})
	}

	upper := FindUpperTrend(highs)
	lower := FindLowerTrend(lows)
	if upper == nil || lower == nil {
		t.Fatalf("expected both boundaries, got upper=%v lower=%v", upper, lower)
	}
	if upper.Slope >= 0 || lower.Slope <= 0 {
		t.Errorf("slopes have wrong sign: upper %v lower %v", upper.Slope, lower.Slope)
	}

	conv := ConvergencePoint(upper, lower)
	if conv == nil {
		t.Fatal("expected a convergence point")
	}
	if conv.Time <= float64(highs[0].Time) {
		t.Errorf("convergence time %v not after window start", conv.Time)
	}
	if math.Abs(conv.Time-30*day) > 1e-6 || math.Abs(conv.Price-100) > 1e-9 {
		t.Errorf("convergence = %+v, want t=%d price=100", conv, 30*day)
	}

	if FindUpperTrend(lows) != nil || FindLowerTrend(highs) != nil {
		t.Error("boundaries with the wrong slope sign must be rejected")
	}
	if ConvergencePoint(lower, lower) != nil {
		t.Error("parallel lines must not converge")
	}
}

// triangleSeries narrows for 15 days and breaks out upward on day 19.
func triangleSeries() []models.Candle {
	candles := make([]models.Candle, 21)
	for i := range candles {
		c := models.Candle{Time: int64(i) * day, Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 1000}
		if i < 15 {
			c.High = 130 - float64(i)
			c.Low = 70 + float64(i)
		}
		candles[i] = c
	}
	candles[19] = models.Candle{Time: 19 * day, Open: 110, High: 121, Low: 110, Close: 120, Volume: 5000}
	return candles
}

func TestTriangleBreakout(t *testing.T) {
	events, err := NewTriangleDetector(DefaultTriangleConfig()).Detect(triangleSeries())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one breakout, got %+v", events)
	}
	e := events[0]
	if e.Kind != models.EventTriangleBreakout || e.Direction != models.DirectionUp || e.Time != 19*day {
		t.Errorf("unexpected event %+v", e)
	}
	if !e.VolumeSpike {
		t.Error("expected a volume spike")
	}
	if p := e.Metrics["progress"]; p < 0.5 || p > 0.8 {
		t.Errorf("progress %v outside band", p)
	}
	if up, low := e.Metrics["upper_fit_slope"], e.Metrics["lower_fit_slope"]; math.Abs(up+1.0/day) > 1e-12 || math.Abs(low-1.0/day) > 1e-12 {
		t.Errorf("fit slopes %v / %v, want -/+ 1 per day", up, low)
	}
}

func TestTriangleNegativeVolumeLookback(t *testing.T) {
	cfg := DefaultTriangleConfig()
	cfg.VolumeLookback = -2
	if err := cfg.Validate(); !errors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}

	events, err := NewTriangleDetector(cfg).Detect(triangleSeries())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].VolumeSpike {
		t.Errorf("expected one breakout without a volume verdict, got %+v", events)
	}
}

func TestNormalizeNames(t *testing.T) {
	got := NormalizeNames([]string{" Double", "double", "", "MA_CROSS", "ma_cross"})
	if len(got) != 2 || got[0] != NameDouble || got[1] != NameMACross {
		t.Errorf("NormalizeNames = %v", got)
	}
}

func headShouldersSeries() []models.Candle {
	candles := make([]models.Candle, 30)
	for i := range candles {
		candles[i] = models.Candle{Time: int64(i) * day, Open: 99, High: 100, Low: 98, Close: 99, Volume: 1000}
	}
	candles[5].High = 110
	candles[10].High = 120
	candles[15].High = 110
	candles[8].Low = 95
	candles[12].Low = 95
	candles[18] = models.Candle{Time: 18 * day, Open: 95, High: 99, Low: 84, Close: 85, Volume: 5000}
	return candles
}

func TestHeadAndShoulders(t *testing.T) {
	events, err := NewHeadShouldersDetector(DefaultHeadShouldersConfig()).Detect(headShouldersSeries())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event after dedup, got %+v", events)
	}
	e := events[0]
	if e.Kind != models.EventHeadAndShoulders || e.Direction != models.DirectionDown {
		t.Errorf("expected bearish head and shoulders, got %s %s", e.Kind, e.Direction)
	}
	if e.Time != 18*day || e.Price != 85 {
		t.Errorf("event at t=%d price=%v, want t=%d price=85", e.Time, e.Price, 18*day)
	}
	if !e.VolumeSpike {
		t.Error("expected a volume spike")
	}
	if e.Metrics["head"] != 120 || e.Metrics["neckline"] != 95 {
		t.Errorf("unexpected metrics %+v", e.Metrics)
	}
}

func TestHeadAndShouldersRejectsLowHead(t *testing.T) {
	candles := headShouldersSeries()
	candles[10].High = 104 // below 0.95 * 110
	events, err := NewHeadShouldersDetector(DefaultHeadShouldersConfig()).Detect(candles)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %+v", events)
	}
}

func TestDetectorsReturnEmptyOnShortInput(t *testing.T) {
	short := flat(5, 100)
	detectors := []Detector{
		NewTriangleDetector(DefaultTriangleConfig()),
		NewHeadShouldersDetector(DefaultHeadShouldersConfig()),
		NewDoubleDetector(DefaultDoubleConfig()),
	}
	for _, d := range detectors {
		events, err := d.Detect(short)
		if err != nil {
			t.Errorf("%s: unexpected error %v", d.Name(), err)
		}
		if events == nil || len(events) != 0 {
			t.Errorf("%s: expected empty non-nil result, got %#v", d.Name(), events)
		}
	}
}

func TestTouchEvents(t *testing.T) {
	levels := []models.Level{
		{
			Price: 100, Kind: models.LevelSupport, TouchCount: 3,
			Touches: []models.SwingPoint{
				{Time: 10, Price: 99.5, Kind: models.SwingLow},
				{Time: 20, Price: 100.5, Kind: models.SwingLow},
				{Time: 30, Price: 100, Kind: models.SwingLow},
			},
		},
		{
			Price: 120, Kind: models.LevelResistance, TouchCount: 2,
			Touches: []models.SwingPoint{
				{Time: 15, Price: 120, Kind: models.SwingHigh},
				{Time: 25, Price: 120, Kind: models.SwingHigh},
			},
		},
	}

	detector := NewLevelTouchDetector(func([]models.Candle) []models.Level { return levels })
	got, err := detector.Detect(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 confirming touches, got %+v", got)
	}
	wantTimes := []int64{20, 25, 30}
	for i, e := range got {
		if e.Time != wantTimes[i] {
			t.Errorf("event %d at %d, want %d", i, e.Time, wantTimes[i])
		}
	}
	if got[1].Kind != models.EventResistanceTouch || got[1].Direction != models.DirectionDown || got[1].Price != 120 {
		t.Errorf("unexpected resistance touch %+v", got[1])
	}
	if got[0].Kind != models.EventSupportTouch || got[0].Price != 100 {
		t.Errorf("unexpected support touch %+v", got[0])
	}
}

func TestBreakoutEvents(t *testing.T) {
	line := models.TrendLine{
		Kind:    models.TrendUpward,
		Anchor1: models.SwingPoint{Time: 0, Price: 100},
		Anchor2: models.SwingPoint{Time: 10, Price: 110},
		Slope:   1,
	}
	candles := []models.Candle{
		{Time: 5, Close: 50},   // before the second anchor, ignored
		{Time: 12, Close: 111}, // within tolerance of 112
		{Time: 14, Close: 100}, // well below 114
		{Time: 16, Close: 90},
	}

	events := BreakoutEvents(candles, []models.TrendLine{line}, DefaultTrendBreakoutTolerance)
	if len(events) != 1 {
		t.Fatalf("expected one breakout, got %+v", events)
	}
	if events[0].Time != 14 || events[0].Direction != models.DirectionDown || events[0].Kind != models.EventTrendBreakout {
		t.Errorf("unexpected breakout %+v", events[0])
	}

	down := line
	down.Kind = models.TrendDownward
	down.Slope = -1
	down.Anchor2.Price = 90
	up := BreakoutEvents([]models.Candle{{Time: 12, Close: 100}}, []models.TrendLine{down}, 0.02)
	if len(up) != 1 || up[0].Direction != models.DirectionUp {
		t.Errorf("expected an upward break of a falling line, got %+v", up)
	}
}
