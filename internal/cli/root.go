// Package cli provides the command-line interface for chartlab.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chartlab/internal/analysis"
	"chartlab/internal/config"
	"chartlab/internal/logging"
	"chartlab/internal/metrics"
	"chartlab/internal/store"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Store   store.DataStore
	Metrics *metrics.Recorder
}

// NewRootCmd creates the root command for the CLI. Configuration is loaded
// before every command so --config and --db apply uniformly.
func NewRootCmd(logger zerolog.Logger) *cobra.Command {
	app := &App{
		Logger:  logger,
		Metrics: metrics.New(),
	}

	rootCmd := &cobra.Command{
		Use:   "chartlab",
		Short: "Chart analysis engine - indicators, levels and pattern events",
		Long: `chartlab computes technical indicators, support/resistance levels, trend lines
and chart pattern events over OHLCV candle series.

Candles are imported from CSV into a local SQLite store or read straight from
a file with --file. Results can be printed, saved as runs, served over HTTP
or refreshed on a cron schedule.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if err := validFormat(format); err != nil {
				return err
			}
			return app.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/chartlab)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides store.path)")
	rootCmd.PersistentFlags().String("format", FormatText, "output format: text, json or yaml")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	addAnalysisCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	addServiceCommands(rootCmd, app)

	return rootCmd
}

func (a *App) load(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	a.Config = cfg

	a.Logger = logging.NewLoggerWithConfig(cfg.Logging)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}
	a.Logger.Debug().Str("config", cfg.Path()).Msg("Configuration loaded")
	return nil
}

// OpenStore opens the SQLite store on first use.
func (a *App) OpenStore() (store.DataStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	path := a.Config.Store.Path
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	st, err := store.NewSQLiteStore(path,
		store.WithBusyTimeout(a.Config.Store.BusyTimeout),
		store.WithMaxRetries(a.Config.Store.MaxRetries),
		store.WithErrorHook(a.Metrics.RecordStoreError),
	)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", path).Msg("SQLite store initialized")
	a.Store = st
	return st, nil
}

// Analyzer builds an analyzer from the loaded configuration.
func (a *App) Analyzer() (*analysis.Analyzer, error) {
	an, err := analysis.NewAnalyzer(a.Config.AnalyzerConfig(), a.Logger)
	if err != nil {
		return nil, err
	}
	an.SetObserver(a.Metrics)
	return an, nil
}

// Close releases the store if it was opened.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				return output.Data(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("chartlab v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				return output.Data(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsStructured() {
				return output.Data(map[string]string{"path": app.Config.Path()})
			}
			output.Println(app.Config.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsStructured() {
				return output.Data(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "template",
		Short: "Print the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			NewOutput(cmd).Printf("%s", config.Template())
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	a := cfg.Analysis
	output.Bold("Analysis")
	output.Printf("  Swing Lookback:   %d\n", a.SwingLookback)
	output.Printf("  Level Tolerance:  %.3f\n", a.LevelTolerance)
	output.Printf("  Breakout Tol.:    %.3f\n", a.BreakoutTolerance)
	output.Printf("  Detectors:        %v\n", a.Detectors)
	output.Printf("  Indicators:       %v\n", a.Indicators)
	output.Printf("  Workers:          %d\n", a.Workers)
	output.Println()

	p := cfg.Indicators
	output.Bold("Indicator Periods")
	output.Printf("  RSI/EMA/SMA:      %d / %d / %d\n", p.RSIPeriod, p.EMAPeriod, p.SMAPeriod)
	output.Printf("  MACD:             %d / %d / %d\n", p.MACDFast, p.MACDSlow, p.MACDSignal)
	output.Printf("  Bollinger:        %d x %.1f\n", p.BollingerPeriod, p.BollingerStdDev)
	output.Println()

	output.Bold("Store")
	output.Printf("  Path:             %s\n", cfg.Store.Path)
	output.Printf("  Busy Timeout:     %s\n", cfg.Store.BusyTimeout)
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:          %s\n", cfg.Server.Addr)
	output.Printf("  Rate Limit:       %.1f/s burst %d\n", cfg.Server.RateLimit, cfg.Server.RateBurst)
	output.Println()

	output.Bold("Watch")
	output.Printf("  Schedule:         %s\n", cfg.Watch.Schedule)
	output.Printf("  Symbols:          %v\n", cfg.Watch.Symbols)
	output.Printf("  Timeout:          %s\n", cfg.Watch.Timeout)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:            %s\n", cfg.Logging.Level)
	output.Printf("  File:             %v\n", cfg.Logging.File)
}
