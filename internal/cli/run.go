package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/analytics"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/engine"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/logging"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/models"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/performance"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/premium"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/report"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/strategy"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

// runOutput is the JSON form of a completed run.
type runOutput struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Reports report.Paths   `json:"reports"`
	Summary models.Summary `json:"summary"`
}

func newRunCmd(app *App) *cobra.Command {
	var (
		strategyPath string
		outDir       string
		from, to     string
		workers      int
		tolerance    int
		showChart    bool
		showTrades   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest",
		Long: `Run a multi-leg backtest described by a YAML or JSON strategy file.

The trade ledger, leg sheet, monthly pivot and full result are written to
the output directory and the run is recorded in the history.`,
		Example: `  backtester run --strategy short_straddle.yaml
  backtester run -s bank_future.json --from 2021-01-01 --to 2021-12-31 --out reports/bank`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			def, err := strategy.Load(strategyPath, app.Config.Markets)
			if err != nil {
				return err
			}
			if err := overrideDates(def, from, to); err != nil {
				return err
			}

			runID := uuid.NewString()
			logger := logging.WithRun(app.Logger, runID)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			archive, err := app.openArchive(ctx)
			if err != nil {
				return err
			}
			defer archive.Close()

			opts := []engine.Option{
				engine.WithWorkers(app.Config.Engine.Workers),
				engine.WithToleranceDays(app.Config.Engine.ExpiryToleranceDays),
				engine.WithIntrinsicMode(premium.IntrinsicMode(app.Config.Engine.IntrinsicOnExpiry)),
				engine.WithLookbackDays(app.Config.Engine.CalendarLookbackDays),
				engine.WithLogger(logger),
			}
			if cmd.Flags().Changed("workers") {
				opts = append(opts, engine.WithWorkers(workers))
			}
			if cmd.Flags().Changed("tolerance") {
				opts = append(opts, engine.WithToleranceDays(tolerance))
			}

			started := time.Now()
			res, err := engine.Simulate(ctx, def, archive.Market, opts...)
			if err != nil {
				return fmt.Errorf("backtest %s: %w", def.Name, err)
			}
			elapsed := time.Since(started)

			if outDir == "" {
				outDir = filepath.Join("reports", fmt.Sprintf("%s-%s", def.Name, runID[:8]))
			}
			paths, err := report.Write(outDir, res)
			if err != nil {
				return err
			}

			recordRun(ctx, logger, archive.History, runID, def, started, elapsed, res)
			logMemory(logger)

			if output.IsJSON() {
				return output.JSON(runOutput{ID: runID, Name: def.Name, Reports: paths, Summary: res.Summary})
			}

			printSummary(output, def, res.Summary, elapsed)
			if showTrades {
				output.Println()
				printTrades(output, res.Trades)
			}
			if showChart && len(res.Trades) > 0 {
				output.Println()
				output.Bold("Equity Curve")
				output.Println(analytics.EquityCurveASCII(res.Trades, 60, 12))
			}
			output.Println()
			output.Dim("Run %s", runID)
			output.Dim("Reports written to %s", outDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategyPath, "strategy", "s", "", "strategy file (.yaml, .yml or .json)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "report directory (default: reports/<name>-<run>)")
	cmd.Flags().StringVar(&from, "from", "", "override date_from (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "override date_to (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "cycle workers (default: engine.workers)")
	cmd.Flags().IntVar(&tolerance, "tolerance", 0, "expiry tolerance in calendar days (default: engine.expiry_tolerance_days)")
	cmd.Flags().BoolVar(&showChart, "chart", false, "print the equity curve")
	cmd.Flags().BoolVar(&showTrades, "trades", false, "print the trade ledger")
	_ = cmd.MarkFlagRequired("strategy")

	return cmd
}

func overrideDates(def *models.StrategyDefinition, from, to string) error {
	if from != "" {
		d, err := utils.ParseDate(from)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		def.DateFrom = d
	}
	if to != "" {
		d, err := utils.ParseDate(to)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		def.DateTo = d
	}
	return def.Validate()
}

// recordRun persists the run. A history failure never fails the backtest.
func recordRun(ctx context.Context, logger zerolog.Logger, history store.RunHistory, id string,
	def *models.StrategyDefinition, started time.Time, elapsed time.Duration, res *engine.Result) {
	if history == nil {
		return
	}
	params, err := json.Marshal(def)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to encode strategy for history")
	}
	run := &store.RunRecord{
		ID:        id,
		Name:      def.Name,
		Symbol:    def.Index,
		DateFrom:  def.DateFrom,
		DateTo:    def.DateTo,
		Params:    string(params),
		StartedAt: started,
		Duration:  elapsed,
		Trades:    res.Summary.TotalTrades,
		Skipped:   res.Summary.CyclesSkipped,
		Filtered:  res.Summary.CyclesFiltered,
		NetPnL:    res.Summary.TotalPnL,
	}
	if err := history.SaveRun(ctx, run); err != nil {
		logger.Warn().Err(err).Msg("Failed to record run history")
	}
}

func logMemory(logger zerolog.Logger) {
	if logger.GetLevel() > zerolog.DebugLevel || zerolog.GlobalLevel() > zerolog.DebugLevel {
		return
	}
	m := performance.MemoryStats()
	logger.Debug().
		Str("alloc", performance.FormatBytes(m.Alloc)).
		Str("heap_inuse", performance.FormatBytes(m.HeapInuse)).
		Str("sys", performance.FormatBytes(m.Sys)).
		Uint32("gc_cycles", m.NumGC).
		Int("goroutines", m.Goroutines).
		Msg("Memory after run")
}

func printSummary(output *Output, def *models.StrategyDefinition, s models.Summary, elapsed time.Duration) {
	title := fmt.Sprintf("%s  %s %s  %s to %s", def.Name, def.Index, def.ExpiryWindow,
		FormatDate(def.DateFrom), FormatDate(def.DateTo))

	output.Box(title, []string{
		fmt.Sprintf("Trades:          %d  (%d wins, %d losses)", s.TotalTrades, s.Wins, s.Losses),
		fmt.Sprintf("Win Rate:        %.2f%%", s.WinPct),
		fmt.Sprintf("Net P&L:         %s", compactPnL(output, s.TotalPnL)),
		fmt.Sprintf("Avg P&L:         %s", output.PnL(s.AvgPnL)),
		fmt.Sprintf("Avg Win/Loss:    %s / %s", output.PnL(s.AvgWin), output.PnL(s.AvgLoss)),
		fmt.Sprintf("Max Win/Loss:    %s / %s", output.PnL(s.MaxWin), output.PnL(s.MaxLoss)),
		fmt.Sprintf("Expectancy:      %s", FormatRatio(s.Expectancy)),
		fmt.Sprintf("CAGR:            %s", output.Percent(s.CAGR)),
		fmt.Sprintf("Max Drawdown:    %s (%s) on %s", compactPnL(output, s.MaxDrawdown), output.Percent(s.MaxDrawdownPct), FormatDate(s.MaxDrawdownDate)),
		fmt.Sprintf("Recovery Factor: %s", FormatRatio(s.RecoveryFactor)),
		fmt.Sprintf("CAR/MDD:         %s", FormatRatio(s.CARMDD)),
		fmt.Sprintf("Streaks:         %d wins, %d losses", s.MaxWinStreak, s.MaxLossStreak),
		fmt.Sprintf("Cycles:          %d evaluated, %d skipped, %d filtered", s.CyclesEvaluated, s.CyclesSkipped, s.CyclesFiltered),
		fmt.Sprintf("Tolerance Hits:  %d", s.ToleranceHits),
		fmt.Sprintf("Intrinsic Exits: %d", s.IntrinsicSubstitutions),
		fmt.Sprintf("Elapsed:         %s", FormatDuration(elapsed)),
	})

	if len(s.SkipReasons) > 0 {
		output.Println()
		output.Warning("Skipped cycles")
		table := NewTable(output, "Reason", "Cycles")
		for _, reason := range sortedKeys(s.SkipReasons) {
			table.AddRow(reason, FormatCount(s.SkipReasons[reason]))
		}
		table.Render()
	}
}

// compactPnL adds the lakh or crore form to amounts of a lakh and above.
func compactPnL(output *Output, v float64) string {
	text := output.PnL(v)
	if math.Abs(v) >= 100000 {
		text += " [" + FormatCompact(v) + "]"
	}
	return text
}

func printTrades(output *Output, trades []models.Trade) {
	table := NewTable(output, "Cycle", "Entry", "Exit", "Entry Spot", "Exit Spot", "Net P&L", "Cumulative", "Drawdown")
	for _, t := range trades {
		table.AddRow(
			FormatDate(t.Cycle),
			FormatDate(t.EntryDate),
			FormatDate(t.ExitDate),
			FormatPoints(t.EntrySpot),
			FormatPoints(t.ExitSpot),
			output.PnL(t.NetPnL),
			FormatIndianCurrency(t.Cumulative),
			output.PnL(t.Drawdown),
		)
	}
	table.Render()
}
