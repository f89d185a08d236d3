// Package log provides the process-wide structured logger used by every
// scheduler component.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance.
	Logger zerolog.Logger
)

// Level represents a log level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

func init() {
	// Sane default so packages that log before Init (e.g. in tests) don't
	// panic on a zero-value Logger.
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// WithComponent creates a child logger tagged with a component field.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithQueryID returns base tagged with a query_id field, preserving
// whatever fields base already carries (e.g. a component tag from
// WithComponent).
func WithQueryID(base zerolog.Logger, queryID string) zerolog.Logger {
	return base.With().Str("query_id", queryID).Logger()
}

// WithFragmentID returns base tagged with a fragment_id field.
func WithFragmentID(base zerolog.Logger, fragmentID int32) zerolog.Logger {
	return base.With().Int32("fragment_id", fragmentID).Logger()
}

// WithBackend returns base tagged with a backend_ip field.
func WithBackend(base zerolog.Logger, ip string) zerolog.Logger {
	return base.With().Str("backend_ip", ip).Logger()
}
