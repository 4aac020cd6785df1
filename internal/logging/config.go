package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/airqlab/airq/internal/config"
)

// NewFromConfig builds the process logger. Unknown levels fall back to info.
func NewFromConfig(cfg config.LoggingConfig) (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	w, err := openOutput(cfg.OutputPath)
	if err != nil {
		return nil, err
	}

	fieldFormat, consoleFormat := timeFormats(cfg.TimeFormat)
	zerolog.TimeFieldFormat = fieldFormat

	switch cfg.Format {
	case "console", "pretty":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleFormat}
	}

	return New(w, level), nil
}

func openOutput(path string) (io.Writer, error) {
	switch path {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("log directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// timeFormats maps the time_format setting to the JSON field format and the
// console layout
func timeFormats(name string) (field, console string) {
	switch name {
	case "Unix":
		return zerolog.TimeFormatUnix, time.UnixDate
	case "UnixMs":
		return zerolog.TimeFormatUnixMs, time.StampMilli
	case "Kitchen":
		return time.RFC3339, time.Kitchen
	default:
		return time.RFC3339, time.RFC3339
	}
}
