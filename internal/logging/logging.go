// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "fno-backtester", "logs", "backtester.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	// Console writer. Stdout carries command output, so logs go to stderr.
	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		// Ensure log directory exists
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	// Create multi-writer
	var writer io.Writer
	if len(writers) == 0 {
		writer = io.Discard
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	// Set log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Create logger
	logger := zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithRun adds a run ID to the logger context.
func WithRun(logger zerolog.Logger, runID string) zerolog.Logger {
	return logger.With().Str("run_id", runID).Logger()
}

// WithCycle adds the cycle expiry to the logger context.
func WithCycle(logger zerolog.Logger, cycle time.Time) zerolog.Logger {
	return logger.With().Str("cycle", cycle.Format("2006-01-02")).Logger()
}

// WithLeg adds a leg index to the logger context.
func WithLeg(logger zerolog.Logger, leg int) zerolog.Logger {
	return logger.With().Int("leg", leg).Logger()
}

// LogSkip logs a dropped cycle. The cycle and leg come from the logger
// context (WithCycle, WithLeg).
func LogSkip(logger zerolog.Logger, kind string, err error) {
	logger.Info().
		Str("event", "cycle_skip").
		Str("kind", kind).
		Err(err).
		Msg("Cycle skipped")
}

// LogToleranceHit logs a premium matched through the expiry tolerance window.
func LogToleranceHit(logger zerolog.Logger, date, requested, matched time.Time, strike float64, side string) {
	logger.Warn().
		Str("event", "tolerance_hit").
		Str("date", date.Format("2006-01-02")).
		Str("requested_expiry", requested.Format("2006-01-02")).
		Str("matched_expiry", matched.Format("2006-01-02")).
		Float64("strike", strike).
		Str("side", side).
		Msg("Premium matched on tolerance expiry")
}

// LogRunSummary logs the outcome of a completed run.
func LogRunSummary(logger zerolog.Logger, trades, skipped, filtered int, netPnL float64, duration time.Duration) {
	logger.Info().
		Str("event", "run_complete").
		Int("trades", trades).
		Int("skipped", skipped).
		Int("filtered", filtered).
		Float64("net_pnl", netPnL).
		Dur("duration", duration).
		Msg("Backtest completed")
}

// LogQuery logs a store query.
func LogQuery(logger zerolog.Logger, store, operation string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "query").
		Str("store", store).
		Str("operation", operation).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Query failed")
	} else {
		event.Msg("Query completed")
	}
}
