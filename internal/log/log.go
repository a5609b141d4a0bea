// Package log provides a package-level structured logger for diagnostics
// that don't belong in the user-facing terminal UI; its one caller is the
// MCP manager (server start-up and failures). Silent by default;
// --verbose switches it to debug level. User-facing text still
// goes through ui.Terminal, never through this logger.
package log

import (
	"os"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).
	Level(zerolog.Disabled).
	With().Timestamp().Logger()

// SetVerbose switches the logger to debug level (--verbose) or back to
// silent (disabled is the default so a normal run never writes to stderr).
func SetVerbose(verbose bool) {
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.Disabled)
	}
}

func fields(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		e = e.Interface(key, kv[i+1])
	}
	return e
}

// Debug logs a debug-level line with key/value pairs, e.g.
// log.Debug("compressed tool result", "tool", name, "bytes", n).
func Debug(msg string, kv ...any) { fields(logger.Debug(), kv).Msg(msg) }

// Info logs an info-level line.
func Info(msg string, kv ...any) { fields(logger.Info(), kv).Msg(msg) }

// Warn logs a warn-level line.
func Warn(msg string, kv ...any) { fields(logger.Warn(), kv).Msg(msg) }

// Error logs an error-level line.
func Error(msg string, kv ...any) { fields(logger.Error(), kv).Msg(msg) }
