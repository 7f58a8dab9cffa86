package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/PatelNandini30/Algo-Tesst-sub002/internal/errors"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/store"
	"github.com/PatelNandini30/Algo-Tesst-sub002/pkg/utils"
)

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Backtest run history",
	}
	cmd.AddCommand(newHistoryListCmd(app))
	cmd.AddCommand(newHistoryShowCmd(app))
	return cmd
}

func (app *App) openHistory(cmd *cobra.Command) (*Archive, error) {
	archive, err := app.openArchive(cmd.Context())
	if err != nil {
		return nil, err
	}
	if archive.History == nil {
		archive.Close()
		return nil, fmt.Errorf("run history is unavailable for the %s driver", app.Config.Data.Driver)
	}
	return archive, nil
}

func newHistoryListCmd(app *App) *cobra.Command {
	var filter store.RunFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			archive, err := app.openHistory(cmd)
			if err != nil {
				return err
			}
			defer archive.Close()

			filter.Symbol = strings.ToUpper(filter.Symbol)
			runs, err := archive.History.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Dim("No runs recorded")
				return nil
			}

			table := NewTable(output, "ID", "Name", "Index", "From", "To", "Trades", "Skipped", "Net P&L", "Started")
			for _, r := range runs {
				table.AddRow(
					r.ID[:min(8, len(r.ID))],
					TruncateString(r.Name, 28),
					r.Symbol,
					FormatDate(r.DateFrom),
					FormatDate(r.DateTo),
					fmt.Sprintf("%d", r.Trades),
					fmt.Sprintf("%d", r.Skipped),
					output.PnL(r.NetPnL),
					r.StartedAt.In(utils.IndiaLocation).Format("2006-01-02 15:04"),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Symbol, "symbol", "", "only runs on this index")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "maximum runs to list (0 for all)")
	return cmd
}

func newHistoryShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			archive, err := app.openHistory(cmd)
			if err != nil {
				return err
			}
			defer archive.Close()

			run, err := archive.History.GetRun(cmd.Context(), args[0])
			if apperrors.Is(err, apperrors.ErrDataNotFound) {
				return fmt.Errorf("no run with id %s", args[0])
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(run)
			}
			output.Box(run.Name, []string{
				fmt.Sprintf("ID:       %s", run.ID),
				fmt.Sprintf("Index:    %s", run.Symbol),
				fmt.Sprintf("Range:    %s to %s", FormatDate(run.DateFrom), FormatDate(run.DateTo)),
				fmt.Sprintf("Started:  %s", run.StartedAt.In(utils.IndiaLocation).Format("2006-01-02 15:04:05")),
				fmt.Sprintf("Elapsed:  %s", FormatDuration(run.Duration)),
				fmt.Sprintf("Trades:   %d (%d skipped, %d filtered)", run.Trades, run.Skipped, run.Filtered),
				fmt.Sprintf("Net P&L:  %s", output.PnL(run.NetPnL)),
			})
			if run.Params != "" {
				output.Println()
				output.Dim("Strategy")
				output.Println(run.Params)
			}
			return nil
		},
	}
}
