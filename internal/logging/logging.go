package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values report
// false.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development", "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "production", "prod":
		return slog.LevelError, true
	}
	return 0, false
}

// New builds a logger writing to w. LOG_LEVEL overrides defaultLevel and
// LOG_FORMAT selects "text" (default) or "json" output.
func New(w io.Writer, defaultLevel slog.Level, lookup func(string) (string, bool)) *slog.Logger {
	level := defaultLevel
	if l, ok := lookup("LOG_LEVEL"); ok {
		if parsed, ok := ParseLevel(l); ok {
			level = parsed
		}
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if f, _ := lookup("LOG_FORMAT"); strings.EqualFold(strings.TrimSpace(f), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Init installs the process-wide default logger and returns it.
func Init(w io.Writer, defaultLevel slog.Level) *slog.Logger {
	logger := New(w, defaultLevel, os.LookupEnv)
	slog.SetDefault(logger)
	return logger
}
