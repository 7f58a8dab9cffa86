// Command backtester runs multi-leg F&O index strategies over a historical
// bhavcopy archive.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/cli"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/config"
	"github.com/PatelNandini30/Algo-Tesst-sub002/internal/logging"
)

func main() {
	cfg, err := config.Load(configDirFromArgs(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(cfg.LogConfig())

	if err := cli.NewRootCmd(cfg, logger).Execute(); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configDirFromArgs finds --config before cobra parses the flags, so the
// logger is built from the same file the commands use.
func configDirFromArgs(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--config" && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}
