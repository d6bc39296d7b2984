// Package logging configures the process logger and keeps the analysis
// journal.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a config string to a slog level. Unknown values fall back
// to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogging installs the default slog logger. The log file is truncated on
// every start. With console set, records are also written to stderr; leave it
// unset when the terminal overlay owns the screen.
func SetupLogging(file, level string, console bool) (io.Closer, error) {
	var out io.Writer = io.Discard
	var closer io.Closer = nopCloser{}

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
		closer = f
	}
	if console {
		if file != "" {
			out = io.MultiWriter(os.Stderr, out)
		} else {
			out = os.Stderr
		}
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(level)}))
	slog.SetDefault(logger)
	slog.Info("Logging started", "file", file, "level", ParseLevel(level).String())
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
