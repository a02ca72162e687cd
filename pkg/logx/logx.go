// Package logx builds the process-wide zerolog logger.
//
// Console output stays human readable during development; setting
// LOG_JSON=true switches to structured JSON for log shippers.
package logx

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New constructs the root logger from the configured level and format.
// Unknown levels fall back to info rather than failing startup.
func New(level string, json bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if !json {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
