// Package logging configures the default slog logger for the commands.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New returns a text or JSON ("json") logger at level. Unknown levels fall
// back to info.
func New(w io.Writer, level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup installs New(w, level, format) as the slog default.
func Setup(w io.Writer, level, format string) {
	slog.SetDefault(New(w, level, format))
}
