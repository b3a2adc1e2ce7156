// Package logging sets up the zerolog logger used by the command line.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/clinmetrics/pkg/dataset"
	"github.com/rs/zerolog"
)

// New builds a logger writing to w (stderr when nil). format is "console"
// or "json"; level is a zerolog level name such as "debug" or "info".
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch format {
	case "json":
	case "console", "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// Component returns a child logger tagged with a component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Notifier forwards dataset notices to logger as warnings.
func Notifier(logger zerolog.Logger) dataset.Notifier {
	return func(n dataset.Notice) {
		event := logger.Warn().Str("kind", string(n.Kind))
		if len(n.Defaults) > 0 {
			dict := zerolog.Dict()
			for name, value := range n.Defaults {
				dict.Str(name, value)
			}
			event = event.Dict("defaults", dict)
		}
		event.Msg(n.Message)
	}
}
