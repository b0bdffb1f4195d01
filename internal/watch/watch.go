// Package watch re-analyses stored symbols on a cron schedule and persists
// the resulting reports.
package watch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"chartlab/internal/analysis"
	"chartlab/internal/config"
	apperrors "chartlab/internal/errors"
	"chartlab/internal/logging"
	"chartlab/internal/metrics"
	"chartlab/internal/store"
)

// Result is the outcome of one symbol in a watch run. Unchanged is set when
// no candle newer than the last analysed one has arrived.
type Result struct {
	Symbol     string        `json:"symbol" yaml:"symbol"`
	RunID      string        `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Events     int           `json:"events" yaml:"events"`
	LastCandle int64         `json:"last_candle,omitempty" yaml:"last_candle,omitempty"`
	Unchanged  bool          `json:"unchanged,omitempty" yaml:"unchanged,omitempty"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Open       bool          `json:"circuit_open,omitempty" yaml:"circuit_open,omitempty"`
	Took       time.Duration `json:"took" yaml:"took"`
}

// Watcher runs scheduled analysis over the watch list.
type Watcher struct {
	cfg      config.WatchConfig
	analyzer *analysis.Analyzer
	store    store.DataStore
	metrics  *metrics.Recorder
	logger   zerolog.Logger
	breakers *breakers
	cron     *cron.Cron

	mu       sync.Mutex
	analysed map[string]time.Time
}

// New creates a watcher. rec may be nil.
func New(cfg config.WatchConfig, an *analysis.Analyzer, st store.DataStore, rec *metrics.Recorder, logger zerolog.Logger) *Watcher {
	logger = logging.WithOperation(logger, "watch")
	return &Watcher{
		cfg:      cfg,
		analyzer: an,
		store:    st,
		metrics:  rec,
		logger:   logger,
		breakers: newBreakers(cfg.FailureThreshold, cfg.Cooldown),
		analysed: make(map[string]time.Time),
		cron: cron.New(
			cron.WithLogger(cronLogger{logger}),
			cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
		),
	}
}

// Start registers the scheduled run and starts the cron scheduler. Runs
// use ctx as their parent context.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := w.cron.AddFunc(w.cfg.Schedule, func() {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error().Err(err).Msg("Watch run failed")
		}
	}); err != nil {
		return fmt.Errorf("register watch schedule %q: %w", w.cfg.Schedule, err)
	}
	w.cron.Start()
	w.logger.Info().Str("schedule", w.cfg.Schedule).Strs("symbols", w.cfg.Symbols).Msg("Watcher started")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (w *Watcher) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info().Msg("Watcher stopped")
}

// Run starts the watcher and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// Symbols resolves the watch list; an empty list means every stored symbol.
func (w *Watcher) Symbols(ctx context.Context) ([]string, error) {
	if len(w.cfg.Symbols) > 0 {
		out := make([]string, 0, len(w.cfg.Symbols))
		for _, s := range w.cfg.Symbols {
			out = append(out, strings.TrimSpace(s))
		}
		return out, nil
	}
	infos, err := w.store.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}
	out := make([]string, 0, len(infos))
	for _, info := range infos {
		out = append(out, info.Symbol)
	}
	return out, nil
}

// RunOnce analyses every watched symbol once. Symbol failures are reported
// in the results; the error is only set when the watch list itself cannot
// be resolved or ctx is cancelled.
func (w *Watcher) RunOnce(ctx context.Context) ([]Result, error) {
	symbols, err := w.Symbols(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(symbols))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, w.runSymbol(ctx, symbol))
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	w.logger.Info().Int("symbols", len(results)).Int("failed", failed).Msg("Watch run complete")
	return results, nil
}

func (w *Watcher) runSymbol(ctx context.Context, symbol string) Result {
	res := Result{Symbol: symbol}
	logger := logging.WithSymbol(w.logger, symbol)

	if err := w.breakers.allow(symbol); err != nil {
		res.Open = true
		res.Error = err.Error()
		logger.Debug().Msg("Circuit open, skipping symbol")
		return res
	}

	start := time.Now()
	err := w.analyze(ctx, &res)
	res.Took = time.Since(start)
	w.breakers.record(symbol, err)
	if err != nil {
		res.Error = err.Error()
		if w.metrics != nil {
			w.metrics.RecordRunFailure()
		}
		logger.Warn().Err(err).Str("circuit", string(w.breakers.state(symbol))).Msg("Watch analysis failed")
		return res
	}
	if res.Unchanged {
		logger.Debug().Int64("last_candle", res.LastCandle).Msg("No new candles, skipping analysis")
	}
	return res
}

// analyze re-runs the analysis of res.Symbol when its newest candle is newer
// than the one last analysed by this watcher.
func (w *Watcher) analyze(ctx context.Context, res *Result) error {
	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}
	symbol := res.Symbol

	fresh, err := w.store.GetCandlesFreshness(ctx, symbol)
	if err != nil {
		return err
	}
	if fresh.IsZero() {
		return fmt.Errorf("%s: %w", symbol, apperrors.ErrSymbolNotFound)
	}
	res.LastCandle = fresh.Unix()
	if last, ok := w.lastAnalysed(symbol); ok && !fresh.After(last) {
		res.Unchanged = true
		return nil
	}

	candles, err := w.store.GetCandles(ctx, symbol, store.CandleFilter{})
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return fmt.Errorf("%s: %w", symbol, apperrors.ErrSymbolNotFound)
	}

	report, err := w.analyzer.Analyze(ctx, symbol, candles)
	if err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.RecordRun(symbol, candles, report.Events)
	}
	if err := w.store.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	w.markAnalysed(symbol, fresh)
	res.RunID = report.RunID
	res.Events = len(report.Events)
	return nil
}

func (w *Watcher) lastAnalysed(symbol string) (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.analysed[symbol]
	return t, ok
}

func (w *Watcher) markAnalysed(symbol string, t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.analysed[symbol] = t
}

// Status returns the circuit state of every symbol seen so far.
func (w *Watcher) Status() []SymbolStatus {
	out := w.breakers.snapshot()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
