// Package analysis provides the chart analysis session that ties swing points,
// levels, trend lines, pattern detectors and indicators together.
package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chartlab/internal/analysis/annotate"
	"chartlab/internal/analysis/indicators"
	"chartlab/internal/analysis/levels"
	"chartlab/internal/analysis/patterns"
	apperrors "chartlab/internal/errors"
	"chartlab/internal/logging"
	"chartlab/internal/models"
)

// MaxDetectors is the number of detectors a single run may enable.
const MaxDetectors = 6

const secondsPerDay = 86400

// HistoryConfig bounds how far back, in days from the last candle, each
// detector looks. Zero means the full series.
type HistoryConfig struct {
	LevelsDays        int `mapstructure:"levels_days"`
	TrendLinesDays    int `mapstructure:"trend_lines_days"`
	TriangleDays      int `mapstructure:"triangle_days"`
	HeadShouldersDays int `mapstructure:"head_shoulders_days"`
	DoubleDays        int `mapstructure:"double_days"`
	MACrossDays       int `mapstructure:"ma_cross_days"`
}

// DefaultHistoryConfig returns the default look-back windows.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		LevelsDays:        365,
		TrendLinesDays:    3 * 365,
		TriangleDays:      2 * 365,
		HeadShouldersDays: 365,
		DoubleDays:        365,
		MACrossDays:       0,
	}
}

// AnalyzerConfig holds every tunable of an analysis run.
type AnalyzerConfig struct {
	SwingLookback     int                          `mapstructure:"swing_lookback"`
	LevelTolerance    float64                      `mapstructure:"level_tolerance"`
	BreakoutTolerance float64                      `mapstructure:"breakout_tolerance"`
	Detectors         []string                     `mapstructure:"detectors"`
	Indicators        []string                     `mapstructure:"indicators"`
	Workers           int                          `mapstructure:"workers"`
	History           HistoryConfig                `mapstructure:"history"`
	Params            indicators.Params            `mapstructure:"-"`
	MACross           patterns.MACrossConfig       `mapstructure:"ma_cross"`
	Triangle          patterns.TriangleConfig      `mapstructure:"triangle"`
	HeadShoulders     patterns.HeadShouldersConfig `mapstructure:"head_shoulders"`
	Double            patterns.DoubleConfig        `mapstructure:"double"`
	Trend             levels.TrendConfig           `mapstructure:"trend"`
}

// DefaultAnalyzerConfig returns a config with every detector and indicator enabled.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		SwingLookback:     patterns.DefaultSwingLookback,
		LevelTolerance:    levels.DefaultTolerance,
		BreakoutTolerance: patterns.DefaultTrendBreakoutTolerance,
		Detectors:         append([]string(nil), patterns.Names...),
		Indicators:        indicators.Names(),
		Workers:           4,
		History:           DefaultHistoryConfig(),
		Params:            indicators.DefaultParams(),
		MACross:           patterns.DefaultMACrossConfig(),
		Triangle:          patterns.DefaultTriangleConfig(),
		HeadShoulders:     patterns.DefaultHeadShouldersConfig(),
		Double:            patterns.DefaultDoubleConfig(),
		Trend:             levels.DefaultTrendConfig(),
	}
}

// Validate checks the lookbacks and ratios every detector depends on.
func (c AnalyzerConfig) Validate() error {
	if c.SwingLookback <= 0 {
		return fmt.Errorf("swing_lookback must be positive: %w", apperrors.ErrConfigInvalid)
	}
	if c.LevelTolerance <= 0 || c.LevelTolerance >= 1 {
		return fmt.Errorf("level_tolerance must be between 0 and 1: %w", apperrors.ErrConfigInvalid)
	}
	if c.BreakoutTolerance < 0 || c.BreakoutTolerance >= 1 {
		return fmt.Errorf("breakout_tolerance must be between 0 and 1: %w", apperrors.ErrConfigInvalid)
	}
	for _, check := range []func() error{
		c.MACross.Validate,
		c.Triangle.Validate,
		c.HeadShoulders.Validate,
		c.Double.Validate,
		c.Trend.Validate,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// Report is the output of one analysis run.
type Report struct {
	RunID       string                             `json:"run_id" yaml:"run_id"`
	Symbol      string                             `json:"symbol" yaml:"symbol"`
	CreatedAt   time.Time                          `json:"created_at" yaml:"created_at"`
	Candles     int                                `json:"candles" yaml:"candles"`
	Swings      []models.SwingPoint                `json:"swings" yaml:"swings"`
	Levels      []models.Level                     `json:"levels" yaml:"levels"`
	TrendLines  []models.TrendLine                 `json:"trend_lines" yaml:"trend_lines"`
	Events      []models.PatternEvent              `json:"events" yaml:"events"`
	Indicators  map[string][]models.IndicatorPoint `json:"indicators,omitempty" yaml:"indicators,omitempty"`
	Annotations []models.Annotation                `json:"annotations" yaml:"annotations"`
	Skipped     []string                           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// EventCounts tallies the report's events by kind.
func (r *Report) EventCounts() map[models.EventKind]int {
	counts := make(map[models.EventKind]int)
	for _, e := range r.Events {
		counts[e.Kind]++
	}
	return counts
}

// Observer receives per-detector timings. The metrics recorder implements it.
type Observer interface {
	ObserveDetector(name string, elapsed time.Duration, err error)
}

// Analyzer runs detectors and indicators over a candle series. It keeps no
// per-run state, so one Analyzer may serve concurrent calls.
type Analyzer struct {
	cfg       AnalyzerConfig
	logger    zerolog.Logger
	engine    *indicators.Engine
	formatter *annotate.Formatter
	observer  Observer
}

// NewAnalyzer creates an analyzer. Out-of-range detector parameters and
// unknown indicator names in cfg are rejected.
func NewAnalyzer(cfg AnalyzerConfig, logger zerolog.Logger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	engine := indicators.NewEngine(cfg.Workers)
	if err := engine.Register(cfg.Params, cfg.Indicators...); err != nil {
		return nil, err
	}
	return &Analyzer{
		cfg:       cfg,
		logger:    logging.WithOperation(logger, "analyze"),
		engine:    engine,
		formatter: annotate.NewFormatter(),
	}, nil
}

// SetObserver installs an observer for detector timings.
func (a *Analyzer) SetObserver(o Observer) {
	a.observer = o
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() AnalyzerConfig {
	return a.cfg
}

// Engine returns the indicator engine used by the analyzer.
func (a *Analyzer) Engine() *indicators.Engine {
	return a.engine
}

// Levels returns the support/resistance levels of the configured window.
func (a *Analyzer) Levels(candles []models.Candle) []models.Level {
	return levels.Detect(a.window(candles, a.cfg.History.LevelsDays), a.cfg.SwingLookback, a.cfg.LevelTolerance)
}

// TrendLines returns the trend lines of the configured window.
func (a *Analyzer) TrendLines(candles []models.Candle) []models.TrendLine {
	return levels.DetectTrendLines(a.window(candles, a.cfg.History.TrendLinesDays), a.trendConfig())
}

// Detectors resolves detector names. An empty list selects the configured
// detectors, or all of them when none are configured.
func (a *Analyzer) Detectors(names ...string) ([]patterns.Detector, error) {
	if len(names) == 0 {
		names = a.cfg.Detectors
	}
	if len(names) == 0 {
		names = patterns.Names
	}
	names = patterns.NormalizeNames(names)
	if len(names) > MaxDetectors {
		return nil, fmt.Errorf("%d detectors requested, at most %d: %w", len(names), MaxDetectors, apperrors.ErrTooManyDetectors)
	}

	detectors := make([]patterns.Detector, 0, len(names))
	for _, name := range names {
		d, err := a.detector(name)
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, d)
	}
	return detectors, nil
}

func (a *Analyzer) detector(name string) (patterns.Detector, error) {
	switch name {
	case patterns.NameMACross:
		return patterns.NewMACrossDetector(a.cfg.MACross), nil
	case patterns.NameTriangle:
		return patterns.NewTriangleDetector(a.cfg.Triangle), nil
	case patterns.NameHeadShoulders:
		return patterns.NewHeadShouldersDetector(a.cfg.HeadShoulders), nil
	case patterns.NameDouble:
		return patterns.NewDoubleDetector(a.cfg.Double), nil
	case patterns.NameLevelTouch:
		return patterns.NewLevelTouchDetector(func(c []models.Candle) []models.Level {
			return levels.Detect(c, a.cfg.SwingLookback, a.cfg.LevelTolerance)
		}), nil
	case patterns.NameTrendBreakout:
		cfg := a.trendConfig()
		return patterns.NewTrendBreakoutDetector(func(c []models.Candle) []models.TrendLine {
			return levels.DetectTrendLines(c, cfg)
		}, a.cfg.BreakoutTolerance), nil
	default:
		return nil, fmt.Errorf("detector %q: %w", name, apperrors.ErrUnknownDetector)
	}
}

func (a *Analyzer) trendConfig() levels.TrendConfig {
	cfg := a.cfg.Trend
	if cfg.SwingLookback <= 0 {
		cfg.SwingLookback = a.cfg.SwingLookback
	}
	return cfg
}

// historyDays returns the look-back window for a detector.
func (a *Analyzer) historyDays(name string) int {
	h := a.cfg.History
	switch name {
	case patterns.NameTriangle:
		return h.TriangleDays
	case patterns.NameHeadShoulders:
		return h.HeadShouldersDays
	case patterns.NameDouble:
		return h.DoubleDays
	case patterns.NameLevelTouch:
		return h.LevelsDays
	case patterns.NameTrendBreakout:
		return h.TrendLinesDays
	default:
		return h.MACrossDays
	}
}

// window returns the candles within days of the last candle.
func (a *Analyzer) window(candles []models.Candle, days int) []models.Candle {
	if days <= 0 || len(candles) == 0 {
		return candles
	}
	last := candles[len(candles)-1].Time
	return models.Since(candles, last-int64(days)*secondsPerDay)
}

// runDetector turns a detector panic into an error so one bad detector
// cannot take the process down.
func runDetector(d patterns.Detector, candles []models.Candle) (events []models.PatternEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			events, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return d.Detect(candles)
}

type detectorResult struct {
	name   string
	events []models.PatternEvent
	err    error
}

// Analyze validates candles and runs the selected detectors and the
// indicator engine. Detectors that lack data are listed in Report.Skipped;
// any other detector failure aborts the run.
func (a *Analyzer) Analyze(ctx context.Context, symbol string, candles []models.Candle, kinds ...string) (*Report, error) {
	start := time.Now()
	if err := models.ValidateSeries(candles); err != nil {
		return nil, err
	}
	detectors, err := a.Detectors(kinds...)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     uuid.New().String(),
		Symbol:    symbol,
		CreatedAt: time.Now().UTC(),
		Candles:   len(candles),
	}
	logger := logging.WithRunID(logging.WithSymbol(a.logger, symbol), report.RunID)

	results := make([]detectorResult, len(detectors))
	var wg sync.WaitGroup
	for i, d := range detectors {
		wg.Add(1)
		go func(i int, d patterns.Detector) {
			defer wg.Done()
			if ctx.Err() != nil {
				results[i] = detectorResult{name: d.Name(), err: ctx.Err()}
				return
			}
			began := time.Now()
			events, err := runDetector(d, a.window(candles, a.historyDays(d.Name())))
			elapsed := time.Since(began)
			if a.observer != nil {
				a.observer.ObserveDetector(d.Name(), elapsed, err)
			}
			dl := logging.WithDetector(logger, d.Name())
			dl.Debug().
				Int("events", len(events)).
				Dur("elapsed", elapsed).
				Msg("Detector finished")
			results[i] = detectorResult{name: d.Name(), events: events, err: err}
		}(i, d)
	}

	report.Swings = patterns.DetectSwingPoints(candles, a.cfg.SwingLookback)
	report.Levels = a.Levels(candles)
	report.TrendLines = a.TrendLines(candles)

	indicatorValues, indErr := a.engine.CalculateAll(ctx, candles)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if indErr != nil {
		return nil, indErr
	}
	report.Indicators = indicatorValues

	events := make([]models.PatternEvent, 0)
	for _, r := range results {
		switch {
		case r.err == nil:
			events = append(events, r.events...)
		case apperrors.IsNoSignal(r.err):
			logger.Debug().Str("detector", r.name).Err(r.err).Msg("Detector skipped")
			report.Skipped = append(report.Skipped, r.name)
		default:
			logger.Warn().Str("detector", r.name).Err(r.err).Msg("Detector failed")
			return nil, apperrors.NewDetectorError(r.name, r.err)
		}
	}
	patterns.SortEvents(events)
	sort.Strings(report.Skipped)
	report.Events = events

	report.Annotations = annotate.Merge(
		a.formatter.Events(report.Events),
		a.formatter.Levels(report.Levels),
		a.formatter.TrendLines(report.TrendLines),
	)
	if report.Annotations == nil {
		report.Annotations = []models.Annotation{}
	}

	logging.LogAnalysis(logger, len(candles), len(report.Events), len(report.Annotations), report.Skipped, time.Since(start))
	return report, nil
}
