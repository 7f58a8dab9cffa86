package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/config"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
)

func newDataCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Market data archive",
		Long:  "Import bhavcopy, spot and expiry CSV files and inspect archive coverage.",
	}
	cmd.AddCommand(newDataImportCmd(app))
	cmd.AddCommand(newDataInfoCmd(app))
	return cmd
}

func newDataImportCmd(app *App) *cobra.Command {
	var paths store.CSVPaths

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import CSV files into the archive",
		Long: `Import CSV files into the configured archive.

Contract rows (bhavcopy) carry date, symbol, instrument, strike, option type,
expiry and OHLC; dates may be YYYY-MM-DD, DD-Mon-YYYY or DD/MM/YYYY and the
layout is detected per file. Without --expiry the expiry reference rows are
derived from the imported contracts. Existing rows with the same key are
replaced.`,
		Example: `  backtester data import --contracts fo_2020.csv --spot nifty_spot.csv
  backtester data import --contracts fo_2021.csv --spot nifty_spot.csv --expiry expiries.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if paths.Contracts == "" && paths.Spot == "" && paths.Expiry == "" {
				return fmt.Errorf("nothing to import: pass --contracts, --spot or --expiry")
			}
			if app.Config.Data.Driver == config.DriverCSV {
				return fmt.Errorf("the csv driver reads %s directly; switch data.driver to import", app.Config.Data.CSVDir)
			}

			ctx := cmd.Context()
			archive, err := app.openArchive(ctx)
			if err != nil {
				return err
			}
			defer archive.Close()

			started := time.Now()
			stats, err := store.ImportCSV(ctx, archive.Writer, paths)
			if err != nil {
				return err
			}
			app.Logger.Info().
				Int("contracts", stats.Contracts).
				Int("spots", stats.Spots).
				Int("markers", stats.Markers).
				Dur("duration", time.Since(started)).
				Msg("CSV import complete")

			if output.IsJSON() {
				return output.JSON(stats)
			}
			output.Success("✓ Imported into %s archive in %s", app.Config.Data.Driver, FormatDuration(time.Since(started)))
			output.Printf("  Contracts:  %s\n", FormatCount(stats.Contracts))
			output.Printf("  Spot days:  %s\n", FormatCount(stats.Spots))
			output.Printf("  Markers:    %s\n", FormatCount(stats.Markers))
			return nil
		},
	}

	cmd.Flags().StringVar(&paths.Contracts, "contracts", "", "bhavcopy contracts CSV")
	cmd.Flags().StringVar(&paths.Spot, "spot", "", "index spot closes CSV")
	cmd.Flags().StringVar(&paths.Expiry, "expiry", "", "expiry reference CSV")
	return cmd
}

func newDataInfoCmd(app *App) *cobra.Command {
	var symbols []string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show archive coverage",
		Example: `  backtester data info
  backtester data info --symbol BANKNIFTY`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if len(symbols) == 0 {
				symbols = sortedKeys(app.Config.Markets)
			}

			ctx := cmd.Context()
			archive, err := app.openArchive(ctx)
			if err != nil {
				return err
			}
			defer archive.Close()

			infos := make([]*store.ArchiveInfo, 0, len(symbols))
			for _, symbol := range symbols {
				info, err := archive.Inspect.Info(ctx, strings.ToUpper(symbol))
				if err != nil {
					return fmt.Errorf("archive info for %s: %w", symbol, err)
				}
				infos = append(infos, info)
			}

			if output.IsJSON() {
				return output.JSON(infos)
			}

			output.Bold("Archive (%s)", app.Config.Data.Driver)
			table := NewTable(output, "Index", "Contracts", "Expiries", "Spot Days", "First", "Last")
			for _, info := range infos {
				if info.Contracts == 0 && info.SpotDays == 0 {
					table.AddRow(info.Symbol, output.Yellow("no data"), "-", "-", "-", "-")
					continue
				}
				table.AddRow(info.Symbol, FormatCount(info.Contracts), FormatCount(info.Expiries),
					FormatCount(info.SpotDays), FormatDate(info.FirstDate), FormatDate(info.LastDate))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&symbols, "symbol", nil, "index symbols (default: every configured market)")
	return cmd
}
