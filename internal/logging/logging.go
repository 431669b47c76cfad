// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the level, encoding and destination of log output.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
	Output string `mapstructure:"output"` // stdout | stderr | file
	File   string `mapstructure:"file"`
}

func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	switch strings.ToLower(c.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Format)
	}
	switch strings.ToLower(c.Output) {
	case "stdout", "stderr":
	case "file":
		if c.File == "" {
			return fmt.Errorf("log output file requires log.file")
		}
	default:
		return fmt.Errorf("invalid log output %q", c.Output)
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger writing to stdout, stderr or the configured file. The
// returned Closer releases the file, if one was opened.
func New(cfg Config, stdout, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return zerolog.Nop(), nil, err
	}
	level, _ := zerolog.ParseLevel(strings.ToLower(cfg.Level))

	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		out = stdout
	case "stderr":
		out = stderr
	case "file":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file %q: %w", cfg.File, err)
		}
		out, closer = f, f
	}

	if strings.ToLower(cfg.Format) == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), closer, nil
}

// Init builds the process logger with New and installs it as the zerolog
// global logger.
func Init(cfg Config) (zerolog.Logger, io.Closer, error) {
	logger, closer, err := New(cfg, os.Stdout, os.Stderr)
	if err != nil {
		return logger, nil, err
	}
	log.Logger = logger
	return logger, closer, nil
}
