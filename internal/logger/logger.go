package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alkime/practice/internal/config"
	"github.com/alkime/practice/internal/workdir"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Mode picks where records go.
type Mode int

const (
	// ModeServer writes JSON to stdout.
	ModeServer Mode = iota
	// ModeCLI writes text to stdout.
	ModeCLI
	// ModeTUI writes JSON to a rotating file so the terminal stays clean.
	ModeTUI
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Level determines the log level from the environment.
func Level(cfg *config.Config) slog.Level {
	logLevel := slog.LevelInfo
	if cfg.Env == "development" {
		logLevel = slog.LevelDebug
	}
	if cfg.LogLevel == "debug" {
		logLevel = slog.LevelDebug
	}

	return logLevel
}

// SetupLogger configures structured logging for mode and sets it as the
// default logger. The closer releases the log file in TUI mode.
func SetupLogger(cfg *config.Config, mode Mode) (*slog.Logger, io.Closer, error) {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	opts := &slog.HandlerOptions{
		Level: Level(cfg),
	}

	var (
		handler slog.Handler
		closer  io.Closer = nopCloser{}
	)

	switch mode {
	case ModeCLI:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case ModeTUI:
		path, err := workdir.Default(cfg.LogFile, workdir.LogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve log file: %w", err)
		}

		file := RotatingFile(path)
		handler = slog.NewJSONHandler(file, opts)
		closer = file
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)

	// Set as default logger
	slog.SetDefault(logger)

	return logger, closer, nil
}

// RotatingFile is the TUI log sink: 10 MB files, 3 backups, 28 days.
func RotatingFile(path string) *lumberjack.Logger {
	//nolint:exhaustruct // LocalTime and Compress keep their defaults
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}
}
