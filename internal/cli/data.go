package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chartlab/internal/logging"
	"chartlab/internal/store"
)

// addDataCommands adds candle and run management commands.
func addDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newImportCmd(app))
	rootCmd.AddCommand(newExportCmd(app))
	rootCmd.AddCommand(newSymbolsCmd(app))
	rootCmd.AddCommand(newRunsCmd(app))
	rootCmd.AddCommand(newReportCmd(app))
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <symbol> <file.csv>",
		Short: "Import candles from CSV",
		Long: `Import OHLCV candles into the local store. The CSV needs a header row with
time,open,high,low,close,volume; time is unix seconds or YYYY-MM-DD.
Existing candles with the same time are replaced. Use - to read stdin.`,
		Example: `  chartlab import ACME acme.csv
  cat acme.csv | chartlab import ACME -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			var r io.Reader = cmd.InOrStdin()
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			n, err := store.ImportCSV(ctx, st, symbol, r)
			if err != nil {
				return err
			}
			logging.LogImport(app.Logger, symbol, args[1], n)

			if output.IsStructured() {
				return output.Data(map[string]interface{}{"symbol": symbol, "candles": n})
			}
			output.Success("✓ Imported %d candles for %s", n, symbol)
			return nil
		},
	}
}

func newExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <symbol>",
		Short: "Export stored candles as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(app)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			candles, err := loadSeries(ctx, cmd, app, symbol)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if path, _ := cmd.Flags().GetString("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return store.WriteCSV(w, candles)
		},
	}
	cmd.Flags().String("from", "", "first candle time (unix seconds or YYYY-MM-DD)")
	cmd.Flags().String("to", "", "last candle time (unix seconds or YYYY-MM-DD)")
	cmd.Flags().Int("limit", 0, "export only the most recent N candles (0 = all)")
	cmd.Flags().StringP("out", "o", "", "write to file instead of stdout")
	return cmd
}

func newSymbolsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List stored symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(app)
			defer cancel()

			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			symbols, err := st.ListSymbols(ctx)
			if err != nil {
				return err
			}

			if output.IsStructured() {
				return output.Data(symbols)
			}
			if len(symbols) == 0 {
				output.Dim("No symbols stored. Run 'chartlab import <symbol> <file.csv>'.")
				return nil
			}
			table := NewTable(output, "SYMBOL", "CANDLES", "FIRST", "LAST")
			for _, s := range symbols {
				table.AddRow(s.Symbol, fmt.Sprintf("%d", s.Candles), FormatTime(s.First), FormatTime(s.Last))
			}
			table.Render()
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <symbol>",
		Short: "Delete a symbol's candles and runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(app)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			if err := st.DeleteSymbol(ctx, symbol); err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Data(map[string]string{"deleted": symbol})
			}
			output.Success("✓ Deleted %s", symbol)
			return nil
		},
	})
	return cmd
}

func newRunsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [symbol]",
		Short: "List saved analysis runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(app)
			defer cancel()

			symbol := ""
			if len(args) == 1 {
				symbol = strings.ToUpper(args[0])
			}
			limit, _ := cmd.Flags().GetInt("limit")

			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			runs, err := st.ListRuns(ctx, symbol, limit)
			if err != nil {
				return err
			}

			if output.IsStructured() {
				return output.Data(runs)
			}
			if len(runs) == 0 {
				output.Dim("No saved runs.")
				return nil
			}
			table := NewTable(output, "RUN", "SYMBOL", "CREATED", "CANDLES", "EVENTS", "ANNOTATIONS")
			for _, r := range runs {
				table.AddRow(
					r.RunID,
					r.Symbol,
					r.CreatedAt.UTC().Format(DateTimeLayout),
					fmt.Sprintf("%d", r.Candles),
					fmt.Sprintf("%d", r.Events),
					fmt.Sprintf("%d", r.Annotations),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of runs")
	return cmd
}

func newReportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "report <symbol>",
		Short: "Show the latest saved run of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(app)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			st, err := app.OpenStore()
			if err != nil {
				return err
			}
			report, err := st.LatestReport(ctx, symbol)
			if err != nil {
				return err
			}

			if output.IsStructured() {
				return output.Data(report)
			}
			output.Bold("%s  run %s  %s", report.Symbol, report.RunID, report.CreatedAt.UTC().Format(DateTimeLayout))
			output.Println()
			displayEvents(output, report.Events)
			output.Println()
			displayLevels(output, report.Levels)
			output.Println()
			displayTrendLines(output, report.TrendLines)
			output.Println()
			output.Dim("%d annotations", len(report.Annotations))
			return nil
		},
	}
}
