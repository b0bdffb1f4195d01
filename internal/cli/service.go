package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"chartlab/internal/server"
	"chartlab/internal/watch"
)

// addServiceCommands adds the long-running commands.
func addServiceCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		Long: `Start the HTTP API:
  GET  /api/health
  GET  /api/symbols
  GET  /api/chart/:symbol/candles
  GET  /api/chart/:symbol/indicators/:name
  GET  /api/chart/:symbol/report
  POST /api/chart/analyze
  GET  /metrics

With --watch the cron watcher runs in the same process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				app.Config.Server.Addr = addr
			}
			withWatch, _ := cmd.Flags().GetBool("watch")

			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			an, err := app.Analyzer()
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			srv := server.New(app.Config.Server, an, st, app.Metrics, app.Logger)
			output.Info("Listening on %s", app.Config.Server.Addr)

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			watchDone := make(chan error, 1)
			if withWatch {
				w := watch.New(app.Config.Watch, an, st, app.Metrics, app.Logger)
				go func() { watchDone <- w.Run(ctx) }()
			} else {
				watchDone <- nil
			}

			err = srv.Run(ctx)
			cancel()
			if werr := <-watchDone; err == nil {
				err = werr
			}
			return err
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().Bool("watch", false, "also run the scheduled watcher")
	return cmd
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-analyse stored symbols on a schedule",
		Long: `Re-analyse the watch list on the configured cron schedule and save each
report as a run. An empty watch list covers every stored symbol. A symbol that
keeps failing is skipped for the configured cooldown.`,
		Example: `  chartlab watch
  chartlab watch --once --format json
  chartlab watch --schedule "*/15 * * * *" --symbols ACME,INITECH`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config.Watch
			if schedule, _ := cmd.Flags().GetString("schedule"); schedule != "" {
				cfg.Schedule = schedule
			}
			if symbols, _ := cmd.Flags().GetStringSlice("symbols"); len(symbols) > 0 {
				cfg.Symbols = make([]string, 0, len(symbols))
				for _, s := range symbols {
					cfg.Symbols = append(cfg.Symbols, strings.ToUpper(s))
				}
			}
			once, _ := cmd.Flags().GetBool("once")

			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			an, err := app.Analyzer()
			if err != nil {
				return err
			}
			w := watch.New(cfg, an, st, app.Metrics, app.Logger)

			ctx, stop := signalContext()
			defer stop()

			if !once {
				output.Info("Watching on schedule %q", cfg.Schedule)
				return w.Run(ctx)
			}

			results, err := w.RunOnce(ctx)
			if err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Data(results)
			}
			displayWatchResults(output, results)
			for _, r := range results {
				if r.Error != "" {
					return fmt.Errorf("watch run had failures")
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("once", false, "run a single pass and exit")
	cmd.Flags().String("schedule", "", "cron schedule (overrides watch.schedule)")
	cmd.Flags().StringSlice("symbols", nil, "symbols to watch (overrides watch.symbols)")
	return cmd
}

func displayWatchResults(output *Output, results []watch.Result) {
	if len(results) == 0 {
		output.Dim("Nothing to watch.")
		return
	}
	table := NewTable(output, "SYMBOL", "RUN", "EVENTS", "TOOK", "ERROR")
	for _, r := range results {
		errText := r.Error
		if errText != "" {
			errText = output.ColoredString(ColorRed, errText)
		}
		run := r.RunID
		if r.Unchanged {
			run = output.ColoredString(ColorDim, "unchanged")
		}
		table.AddRow(r.Symbol, run, fmt.Sprintf("%d", r.Events), FormatDuration(r.Took), errText)
	}
	table.Render()
}
