package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chartlab/internal/analysis"
	"chartlab/internal/analysis/indicators"
	apperrors "chartlab/internal/errors"
	"chartlab/internal/models"
	"chartlab/internal/store"
)

// addAnalysisCommands adds analysis commands.
func addAnalysisCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newPatternsCmd(app))
	rootCmd.AddCommand(newLevelsCmd(app))
	rootCmd.AddCommand(newTrendsCmd(app))
	rootCmd.AddCommand(newIndicatorsCmd(app))
}

// addSeriesFlags registers the flags that select the candles to analyse.
func addSeriesFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "read candles from a CSV file instead of the store")
	cmd.Flags().String("from", "", "first candle time (unix seconds or YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last candle time (unix seconds or YYYY-MM-DD)")
	cmd.Flags().Int("limit", 0, "analyse only the most recent N candles (0 = all)")
}

// loadSeries returns the candles selected by the series flags.
func loadSeries(ctx context.Context, cmd *cobra.Command, app *App, symbol string) ([]models.Candle, error) {
	filter := store.CandleFilter{}
	if s, _ := cmd.Flags().GetString("from"); s != "" {
		from, err := store.ParseTime(s)
		if err != nil {
			return nil, err
		}
		filter.From = from
	}
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		to, err := store.ParseTime(s)
		if err != nil {
			return nil, err
		}
		filter.To = to
	}
	filter.Limit, _ = cmd.Flags().GetInt("limit")

	if path, _ := cmd.Flags().GetString("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		candles, err := store.ParseCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return applyFilter(candles, filter), nil
	}

	st, err := app.OpenStore()
	if err != nil {
		return nil, err
	}
	candles, err := st.GetCandles(ctx, symbol, filter)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles for %s, run 'chartlab import' first: %w", symbol, apperrors.ErrSymbolNotFound)
	}
	return candles, nil
}

// applyFilter applies a CandleFilter to an in-memory sorted series.
func applyFilter(candles []models.Candle, f store.CandleFilter) []models.Candle {
	out := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		if f.From != 0 && c.Time < f.From {
			continue
		}
		if f.To != 0 && c.Time > f.To {
			continue
		}
		out = append(out, c)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

func commandContext(app *App) (context.Context, context.CancelFunc) {
	timeout := 60 * time.Second
	if app.Config.Watch.Timeout > timeout {
		timeout = app.Config.Watch.Timeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

func newAnalyzeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <symbol>",
		Short: "Full analysis of a symbol",
		Long: `Run the whole engine over a symbol's candles:
- swing points, support/resistance levels and trend lines
- pattern detectors (MA cross, triangle, head and shoulders, double top/bottom,
  level touches, trend line breakouts)
- the configured technical indicators
- chart annotations for every event, level and trend line`,
		Example: `  chartlab analyze ACME
  chartlab analyze ACME --detectors ma_cross,double --save
  chartlab analyze ACME --file acme.csv --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(app)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			detectors, _ := cmd.Flags().GetStringSlice("detectors")
			save, _ := cmd.Flags().GetBool("save")
			withIndicators, _ := cmd.Flags().GetBool("indicators")

			candles, err := loadSeries(ctx, cmd, app, symbol)
			if err != nil {
				return err
			}
			an, err := app.Analyzer()
			if err != nil {
				return err
			}

			report, err := an.Analyze(ctx, symbol, candles, detectors...)
			if err != nil {
				app.Metrics.RecordRunFailure()
				return err
			}
			app.Metrics.RecordRun(symbol, candles, report.Events)

			if save {
				st, err := app.OpenStore()
				if err != nil {
					return err
				}
				if err := st.SaveReport(ctx, report); err != nil {
					return err
				}
			}

			if output.IsStructured() {
				if !withIndicators {
					report.Indicators = nil
				}
				return output.Data(report)
			}
			displayReport(output, report, candles, withIndicators)
			if save {
				output.Success("✓ Saved run %s", report.RunID)
			}
			return nil
		},
	}
	addSeriesFlags(cmd)
	cmd.Flags().StringSlice("detectors", nil, "detectors to run (default: configured set)")
	cmd.Flags().Bool("save", false, "store the report as a run")
	cmd.Flags().Bool("indicators", false, "include indicator values in the output")
	return cmd
}

func displayReport(output *Output, report *analysis.Report, candles []models.Candle, withIndicators bool) {
	if len(candles) == 0 {
		output.Bold("%s  no candles", report.Symbol)
		return
	}
	first, last := candles[0], candles[len(candles)-1]
	output.Bold("%s  %d candles  %s → %s", report.Symbol, report.Candles, FormatTime(first.Time), FormatTime(last.Time))
	output.Dim("Run %s", report.RunID)
	output.Printf("Last: %s\n", FormatOHLC(last.Open, last.High, last.Low, last.Close))
	output.Println()

	displayEvents(output, report.Events)
	output.Println()
	displayLevels(output, report.Levels)
	output.Println()
	displayTrendLines(output, report.TrendLines)

	if withIndicators {
		output.Println()
		displayIndicatorSummary(output, report.Indicators)
	}
	if len(report.Skipped) > 0 {
		output.Println()
		output.Warning("Skipped (not enough data): %s", strings.Join(report.Skipped, ", "))
	}
}

func displayEvents(output *Output, events []models.PatternEvent) {
	output.Bold("Pattern Events (%d)", len(events))
	if len(events) == 0 {
		output.Dim("  none")
		return
	}
	table := NewTable(output, "TIME", "EVENT", "PRICE", "DIRECTION", "VOLUME")
	for _, e := range events {
		spike := ""
		if e.VolumeSpike {
			spike = "spike"
		}
		table.AddRow(FormatTime(e.Time), string(e.Kind), FormatPrice(e.Price), output.Direction(e.Direction), spike)
	}
	table.Render()
}

func displayLevels(output *Output, levels []models.Level) {
	output.Bold("Support / Resistance (%d)", len(levels))
	if len(levels) == 0 {
		output.Dim("  none")
		return
	}
	table := NewTable(output, "KIND", "PRICE", "TOUCHES", "LAST TOUCH")
	for _, l := range levels {
		lastTouch := "-"
		if n := len(l.Touches); n > 0 {
			lastTouch = FormatTime(l.Touches[n-1].Time)
		}
		table.AddRow(string(l.Kind), FormatPrice(l.Price), fmt.Sprintf("%d", l.TouchCount), lastTouch)
	}
	table.Render()
}

func displayTrendLines(output *Output, lines []models.TrendLine) {
	output.Bold("Trend Lines (%d)", len(lines))
	if len(lines) == 0 {
		output.Dim("  none")
		return
	}
	table := NewTable(output, "KIND", "FROM", "TO", "SLOPE", "TOUCHES", "RELIABILITY")
	for _, l := range lines {
		table.AddRow(
			string(l.Kind),
			fmt.Sprintf("%s @ %s", FormatTime(l.Anchor1.Time), FormatPrice(l.Anchor1.Price)),
			fmt.Sprintf("%s @ %s", FormatTime(l.Anchor2.Time), FormatPrice(l.Anchor2.Price)),
			FormatSlope(l.Slope),
			fmt.Sprintf("%d", l.TouchCount),
			fmt.Sprintf("%.2f", l.Reliability),
		)
	}
	table.Render()
}

func displayIndicatorSummary(output *Output, values map[string][]models.IndicatorPoint) {
	output.Bold("Indicators")
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	table := NewTable(output, "INDICATOR", "LAST", "AT", "POINTS")
	for _, name := range names {
		points := values[name]
		if len(points) == 0 {
			table.AddRow(name, "-", "-", "0")
			continue
		}
		p := points[len(points)-1]
		table.AddRow(name, FormatPrice(p.Value), FormatTime(p.Time), fmt.Sprintf("%d", len(points)))
	}
	table.Render()
}

func newPatternsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns <symbol>",
		Short: "Detect chart pattern events",
		Example: `  chartlab patterns ACME
  chartlab patterns ACME --detectors triangle,head_shoulders`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(app)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			detectors, _ := cmd.Flags().GetStringSlice("detectors")

			candles, err := loadSeries(ctx, cmd, app, symbol)
			if err != nil {
				return err
			}
			an, err := app.Analyzer()
			if err != nil {
				return err
			}
			report, err := an.Analyze(ctx, symbol, candles, detectors...)
			if err != nil {
				return err
			}

			if output.IsStructured() {
				return output.Data(report.Events)
			}
			displayEvents(output, report.Events)
			if len(report.Skipped) > 0 {
				output.Warning("Skipped (not enough data): %s", strings.Join(report.Skipped, ", "))
			}
			return nil
		},
	}
	addSeriesFlags(cmd)
	cmd.Flags().StringSlice("detectors", nil, "detectors to run (default: configured set)")
	return cmd
}

func newLevelsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "levels <symbol>",
		Short: "Support and resistance levels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(app)
			defer cancel()

			candles, err := loadSeries(ctx, cmd, app, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			if err := models.ValidateSeries(candles); err != nil {
				return err
			}
			an, err := app.Analyzer()
			if err != nil {
				return err
			}

			levels := an.Levels(candles)
			if output.IsStructured() {
				return output.Data(levels)
			}
			displayLevels(output, levels)
			return nil
		},
	}
	addSeriesFlags(cmd)
	return cmd
}

func newTrendsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trends <symbol>",
		Short: "Trend lines through swing points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(app)
			defer cancel()

			candles, err := loadSeries(ctx, cmd, app, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			if err := models.ValidateSeries(candles); err != nil {
				return err
			}
			an, err := app.Analyzer()
			if err != nil {
				return err
			}

			lines := an.TrendLines(candles)
			if output.IsStructured() {
				return output.Data(lines)
			}
			displayTrendLines(output, lines)
			return nil
		},
	}
	addSeriesFlags(cmd)
	return cmd
}

func newIndicatorsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indicators <symbol> [name]",
		Short: "Technical indicator values",
		Long: fmt.Sprintf(`Without a name, print the latest value of every configured indicator.
With a name, print the most recent points of that indicator.

Indicators: %s`, strings.Join(indicators.Names(), ", ")),
		Example: `  chartlab indicators ACME
  chartlab indicators ACME rsi --period 7 --last 20`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(app)
			defer cancel()

			candles, err := loadSeries(ctx, cmd, app, strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			if err := models.ValidateSeries(candles); err != nil {
				return err
			}

			if len(args) == 1 {
				an, err := app.Analyzer()
				if err != nil {
					return err
				}
				values, err := an.Engine().CalculateAll(ctx, candles)
				if err != nil {
					return err
				}
				if output.IsStructured() {
					return output.Data(values)
				}
				displayIndicatorSummary(output, values)
				return nil
			}

			period, _ := cmd.Flags().GetInt("period")
			last, _ := cmd.Flags().GetInt("last")
			params := app.Config.Indicators
			if period != 0 {
				params = params.WithPeriod(args[1], period)
				if err := params.Validate(); err != nil {
					return err
				}
			}
			ind, err := params.Lookup(args[1])
			if err != nil {
				return err
			}

			series := map[string][]models.IndicatorPoint{}
			if multi, ok := ind.(indicators.MultiValueIndicator); ok {
				if series, err = multi.CalculateMulti(candles); err != nil {
					return err
				}
			} else {
				points, err := ind.Calculate(candles)
				if err != nil {
					return err
				}
				series[ind.Name()] = points
			}
			for name, points := range series {
				series[name] = tail(points, last)
			}

			if output.IsStructured() {
				return output.Data(series)
			}
			displaySeries(output, series)
			return nil
		},
	}
	addSeriesFlags(cmd)
	cmd.Flags().Int("period", 0, "override the configured period")
	cmd.Flags().Int("last", 10, "number of recent points to print (0 = all)")
	return cmd
}

func tail(points []models.IndicatorPoint, n int) []models.IndicatorPoint {
	if n <= 0 || len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}

// displaySeries prints aligned series side by side, one row per timestamp.
func displaySeries(output *Output, series map[string][]models.IndicatorPoint) {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	byTime := make(map[int64]map[string]float64)
	for _, name := range names {
		for _, p := range series[name] {
			row, ok := byTime[p.Time]
			if !ok {
				row = make(map[string]float64)
				byTime[p.Time] = row
			}
			row[name] = p.Value
		}
	}
	times := make([]int64, 0, len(byTime))
	for ts := range byTime {
		times = append(times, ts)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	table := NewTable(output, append([]string{"TIME"}, names...)...)
	for _, ts := range times {
		cells := []string{FormatTime(ts)}
		for _, name := range names {
			if v, ok := byTime[ts][name]; ok {
				cells = append(cells, FormatPrice(v))
			} else {
				cells = append(cells, "-")
			}
		}
		table.AddRow(cells...)
	}
	table.Render()
}
