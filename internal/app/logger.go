package app

import (
	"io"
	"log/slog"
)

// logLevels maps the -log-level flag values to slog levels. A missing key
// yields the zero value, which is slog.LevelInfo.
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newLogger builds the App's logger without touching the process-global
// default. Flag values were already validated at the CLI boundary, so an
// unrecognized level or format falls back to info/text rather than erroring.
func newLogger(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevels[level]}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
