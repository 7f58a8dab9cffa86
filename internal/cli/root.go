package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/config"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/logging"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "backtester",
		Short: "F&O Backtester - multi-leg index options and futures backtesting",
		Long: `F&O Backtester replays multi-leg NIFTY, BANKNIFTY and FINNIFTY
option and future strategies over a historical bhavcopy archive.

Strategies are YAML or JSON files. Each cycle enters its legs a number of
trading days before expiry and exits them before or on expiry; the trade
ledger, leg sheet, monthly pivot and summary are written as reports.

Use 'backtester data import' to load an archive, then 'backtester run'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dir, _ := cmd.Flags().GetString("config"); dir != "" && dir != app.Config.Dir {
				cfg, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.Config = cfg
			}
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/fno-backtester)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newDataCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("F&O Backtester v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the backtester configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
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
			path := config.Path(app.Config.Dir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
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
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Data")
	output.Printf("  Driver:          %s\n", cfg.Data.Driver)
	switch cfg.Data.Driver {
	case config.DriverSQLite:
		output.Printf("  SQLite Path:     %s\n", cfg.Data.SQLitePath)
	case config.DriverPostgres:
		output.Printf("  Postgres DSN:    %s\n", redactDSN(cfg.Data.PostgresDSN))
	case config.DriverClickHouse:
		output.Printf("  ClickHouse DSN:  %s\n", redactDSN(cfg.Data.ClickHouseDSN))
	case config.DriverCSV:
		output.Printf("  CSV Dir:         %s\n", cfg.Data.CSVDir)
	}
	output.Println()

	output.Bold("Engine")
	output.Printf("  Workers:         %d\n", cfg.Engine.Workers)
	output.Printf("  Tolerance:       %d day(s)\n", cfg.Engine.ExpiryToleranceDays)
	output.Printf("  Intrinsic:       %s\n", cfg.Engine.IntrinsicOnExpiry)
	output.Printf("  Lookback:        %d days\n", cfg.Engine.CalendarLookbackDays)
	output.Println()

	output.Bold("Markets")
	table := NewTable(output, "Index", "Lot Size", "Strike Tick")
	for _, symbol := range sortedKeys(cfg.Markets) {
		spec := cfg.Markets[symbol]
		table.AddRow(symbol, FormatCount(spec.LotSize), FormatPoints(spec.TickSize))
	}
	table.Render()
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %v (%s)\n", cfg.Logging.File, cfg.Logging.FilePath)
}
