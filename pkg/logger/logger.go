// Package logger builds the engine's root zerolog logger. Construction
// happens once in main; every package derives a component-scoped sub-logger
// from the root, so level and output format are decided here only.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the process-wide log level and output format.
type Config struct {
	Level  string // trace, debug, info, warn or error; unknown values fall back to info
	Pretty bool   // human-readable console output for development runs
}

// New builds the root logger. Training progress lands on info at the
// configured iteration cadence; debug additionally surfaces event-bus
// deliveries and per-request detail.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Logger()
}

// SetGlobalLogger routes zerolog's package-level logger through the root, so
// stray log.Info() calls end up in the same stream.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
