package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chartlab/internal/analysis/patterns"
	apperrors "chartlab/internal/errors"
	"chartlab/internal/models"
)

const day = 86400

// crossSeries builds 250 daily candles whose 50/200 closing averages cross
// upward at index 200.
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

func newAnalyzer(t *testing.T, cfg AnalyzerConfig) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}

func TestAnalyzeMACross(t *testing.T) {
	a := newAnalyzer(t, DefaultAnalyzerConfig())
	candles := crossSeries()

	report, err := a.Analyze(context.Background(), "ACME", candles, patterns.NameMACross)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if _, err := uuid.Parse(report.RunID); err != nil {
		t.Errorf("run id %q is not a uuid", report.RunID)
	}
	if report.Symbol != "ACME" || report.Candles != 250 {
		t.Errorf("unexpected header %+v", report)
	}
	if len(report.Events) != 1 {
		t.Fatalf("expected one event, got %+v", report.Events)
	}
	if e := report.Events[0]; e.Kind != models.EventGoldenCross || e.Time != candles[200].Time {
		t.Errorf("unexpected event %+v", e)
	}

	var found bool
	for _, ann := range report.Annotations {
		if ann.Kind == string(models.EventGoldenCross) && ann.Time == candles[200].Time {
			found = true
		}
	}
	if !found {
		t.Errorf("golden cross annotation missing from %+v", report.Annotations)
	}

	if _, ok := report.Indicators["RSI_14"]; !ok {
		t.Errorf("expected RSI_14 in indicators, got keys of %d series", len(report.Indicators))
	}
	if got := report.EventCounts()[models.EventGoldenCross]; got != 1 {
		t.Errorf("EventCounts golden = %d", got)
	}
}

func TestAnalyzeAllDetectors(t *testing.T) {
	a := newAnalyzer(t, DefaultAnalyzerConfig())
	report, err := a.Analyze(context.Background(), "ACME", crossSeries())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if report.EventCounts()[models.EventGoldenCross] != 1 {
		t.Errorf("expected the golden cross among %+v", report.Events)
	}
	for i := 1; i < len(report.Events); i++ {
		prev, cur := report.Events[i-1], report.Events[i]
		if cur.Time < prev.Time || (cur.Time == prev.Time && cur.Kind < prev.Kind) {
			t.Fatalf("events out of order at %d: %+v", i, report.Events)
		}
	}
	if len(report.Skipped) != 0 {
		t.Errorf("nothing should be skipped on 250 candles, got %v", report.Skipped)
	}
}

func TestAnalyzeShortSeriesSkipsMACross(t *testing.T) {
	a := newAnalyzer(t, DefaultAnalyzerConfig())
	report, err := a.Analyze(context.Background(), "ACME", crossSeries()[:30])
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != patterns.NameMACross {
		t.Errorf("skipped = %v", report.Skipped)
	}
	if report.Events == nil || report.Annotations == nil {
		t.Errorf("events and annotations must be non-nil")
	}
}

func TestAnalyzeEmptySeries(t *testing.T) {
	a := newAnalyzer(t, DefaultAnalyzerConfig())
	report, err := a.Analyze(context.Background(), "ACME", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(report.Events) != 0 || len(report.Levels) != 0 || len(report.TrendLines) != 0 {
		t.Errorf("expected an empty report, got %+v", report)
	}
}

func TestAnalyzeRejectsInvalidSeries(t *testing.T) {
	a := newAnalyzer(t, DefaultAnalyzerConfig())
	candles := crossSeries()[:5]
	candles[3].Time = candles[2].Time

	_, err := a.Analyze(context.Background(), "ACME", candles)
	if !apperrors.Is(err, apperrors.ErrInvalidSeries) {
		t.Errorf("expected ErrInvalidSeries, got %v", err)
	}
}

func TestDetectorSelection(t *testing.T) {
	a := newAnalyzer(t, DefaultAnalyzerConfig())

	tests := []struct {
		name    string
		kinds   []string
		want    int
		wantErr error
	}{
		{"configured default", nil, len(patterns.Names), nil},
		{"single", []string{"double"}, 1, nil},
		{"duplicates collapse", []string{"Double", " double "}, 1, nil},
		{"unknown", []string{"cup_and_handle"}, 0, apperrors.ErrUnknownDetector},
		{"repeats count once", []string{"ma_cross", "MA_CROSS", "ma_cross", "ma_cross", "ma_cross", "ma_cross", "ma_cross"}, 1, nil},
		{"too many", append(append([]string{}, patterns.Names...), "cup_and_handle"), 0, apperrors.ErrTooManyDetectors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Detectors(tt.kinds...)
			if tt.wantErr != nil {
				if !apperrors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d detectors, want %d", len(got), tt.want)
			}
		})
	}
}

func TestUnknownIndicatorRejected(t *testing.T) {
	cfg := DefaultAnalyzerConfig()
	cfg.Indicators = []string{"rsi", "vwap"}
	if _, err := NewAnalyzer(cfg, zerolog.Nop()); !apperrors.Is(err, apperrors.ErrUnknownIndicator) {
		t.Errorf("expected ErrUnknownIndicator, got %v", err)
	}
}

func TestWindowIsRelativeToLastCandle(t *testing.T) {
	a := newAnalyzer(t, DefaultAnalyzerConfig())
	candles := crossSeries()

	got := a.window(candles, 10)
	if len(got) != 11 {
		t.Fatalf("expected 11 candles in a 10 day window, got %d", len(got))
	}
	if got[len(got)-1].Time != candles[len(candles)-1].Time {
		t.Errorf("window must end at the last candle")
	}
	if len(a.window(candles, 0)) != len(candles) {
		t.Errorf("zero days must keep the full series")
	}
}

func TestAnalyzeCancelledContext(t *testing.T) {
	a := newAnalyzer(t, DefaultAnalyzerConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Analyze(ctx, "ACME", crossSeries()); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	names map[string]int
}

func (o *recordingObserver) ObserveDetector(name string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names[name]++
}

func TestObserverSeesEveryDetector(t *testing.T) {
	a := newAnalyzer(t, DefaultAnalyzerConfig())
	obs := &recordingObserver{names: make(map[string]int)}
	a.SetObserver(obs)

	if _, err := a.Analyze(context.Background(), "ACME", crossSeries()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, name := range patterns.Names {
		if obs.names[name] != 1 {
			t.Errorf("detector %s observed %d times", name, obs.names[name])
		}
	}
}

type panickingDetector struct{}

func (panickingDetector) Name() string { return "broken" }

func (panickingDetector) Detect([]models.Candle) ([]models.PatternEvent, error) {
	panic("index out of range")
}

func TestRunDetectorRecoversPanic(t *testing.T) {
	events, err := runDetector(panickingDetector{}, crossSeries())
	if err == nil || events != nil {
		t.Fatalf("expected an error from a panicking detector, got %v / %v", events, err)
	}
}

func TestNewAnalyzerRejectsDetectorParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *AnalyzerConfig)
	}{
		{"zero swing lookback", func(c *AnalyzerConfig) { c.SwingLookback = 0 }},
		{"level tolerance", func(c *AnalyzerConfig) { c.LevelTolerance = 1 }},
		{"breakout tolerance", func(c *AnalyzerConfig) { c.BreakoutTolerance = -0.1 }},
		{"ma cross short", func(c *AnalyzerConfig) { c.MACross.Short = 0 }},
		{"ma cross long", func(c *AnalyzerConfig) { c.MACross.Long = -5 }},
		{"triangle history", func(c *AnalyzerConfig) { c.Triangle.History = 0 }},
		{"triangle lookahead", func(c *AnalyzerConfig) { c.Triangle.Lookahead = -1 }},
		{"triangle volume lookback", func(c *AnalyzerConfig) { c.Triangle.VolumeLookback = -2 }},
		{"triangle volume factor", func(c *AnalyzerConfig) { c.Triangle.VolumeSpikeFactor = 0 }},
		{"triangle progress order", func(c *AnalyzerConfig) { c.Triangle.MinProgress, c.Triangle.MaxProgress = 0.9, 0.5 }},
		{"triangle progress range", func(c *AnalyzerConfig) { c.Triangle.MaxProgress = 1.5 }},
		{"head shoulders min window", func(c *AnalyzerConfig) { c.HeadShoulders.MinWindow = 0 }},
		{"head shoulders max window", func(c *AnalyzerConfig) { c.HeadShoulders.MaxWindow = c.HeadShoulders.MinWindow - 1 }},
		{"head shoulders peak lookback", func(c *AnalyzerConfig) { c.HeadShoulders.PeakLookback = 0 }},
		{"head shoulders neckline", func(c *AnalyzerConfig) { c.HeadShoulders.NecklineTolerance = 2 }},
		{"double history", func(c *AnalyzerConfig) { c.Double.History = -1 }},
		{"double price tolerance", func(c *AnalyzerConfig) { c.Double.PriceTolerance = 1 }},
		{"trend min touches", func(c *AnalyzerConfig) { c.Trend.MinTouches = 1 }},
		{"trend keep fraction", func(c *AnalyzerConfig) { c.Trend.KeepFraction = 0 }},
		{"trend swing lookback", func(c *AnalyzerConfig) { c.Trend.SwingLookback = -1 }},
	}

	if err := DefaultAnalyzerConfig().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAnalyzerConfig()
			tt.mutate(&cfg)
			if _, err := NewAnalyzer(cfg, zerolog.Nop()); !apperrors.Is(err, apperrors.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}
