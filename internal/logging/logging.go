package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs a text logger on stderr as the slog default. The level comes
// from LOG_LEVEL; without it only errors are logged, so stderr stays
// readable for whatever process supervises the relay.
func Init() {
	level, _ := os.LookupEnv("LOG_LEVEL")
	slog.SetDefault(New(os.Stderr, level))
}

// New returns a text logger writing to w at the named level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// ParseLevel maps LOG_LEVEL values to slog levels. Unknown values mean
// error.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
