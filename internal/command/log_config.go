package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeycumines/playfeel/internal/config"
)

// logConfig holds resolved logging configuration.
type logConfig struct {
	level   slog.Level
	logFile io.WriteCloser // nil if no file logging
}

// resolveLogConfig resolves log configuration from the settings, which
// already carry flag, then environment, then config file precedence. The
// caller must Close() the returned logConfig.logFile when done (if non-nil).
func resolveLogConfig(s *config.Settings) (logConfig, error) {
	var lc logConfig
	level, err := parseLevel(s.LogLevel)
	if err != nil {
		return lc, err
	}
	lc.level = level

	if s.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(s.LogFile), 0o755); err != nil {
			return lc, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return lc, fmt.Errorf("failed to open log file %s: %w", s.LogFile, err)
		}
		lc.logFile = f
	}
	return lc, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// logger returns a JSON logger on the log file, or a text logger on stderr.
func (lc logConfig) logger(stderr io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lc.level}
	if lc.logFile != nil {
		return slog.New(slog.NewJSONHandler(lc.logFile, opts))
	}
	return slog.New(slog.NewTextHandler(stderr, opts))
}
