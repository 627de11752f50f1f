package bootstrap

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// SetupLogger builds the process logger and sets the global level. Format
// "console" writes human-readable lines; anything else writes JSON.
func SetupLogger(level, format string) zerolog.Logger {
	return NewLogger(os.Stdout, level, format)
}

// NewLogger is SetupLogger writing to out.
func NewLogger(out io.Writer, level, format string) zerolog.Logger {
	if err := ApplyLogLevel(level); err != nil {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// ApplyLogLevel sets the global log level.
func ApplyLogLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
