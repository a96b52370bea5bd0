// Package workdir locates the files the practice CLI keeps between runs: the
// pending queue and the TUI log.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	QueueFile = "pending.json"
	LogFile   = "practice.log"
	MediaDir  = "media"
)

// Root returns the base directory for all practice working files.
// The path is expanded at runtime to resolve to:
//
//	$HOME/Documents/Alkime/Practice
//
// PRACTICE_HOME overrides it.
func Root() (string, error) {
	if dir := os.Getenv("PRACTICE_HOME"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, "Documents", "Alkime", "Practice"), nil
}

// FilePath returns the full path for a file in the working directory.
func FilePath(filename string) (string, error) {
	root, err := Root()
	if err != nil {
		return "", err
	}

	return filepath.Join(root, filename), nil
}

// Default returns value when set, otherwise the working directory path of
// filename.
func Default(value, filename string) (string, error) {
	if value != "" {
		return value, nil
	}

	return FilePath(filename)
}

// Prep ensures that the working directory exists.
func Prep() error {
	root, err := Root()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create working directory %s: %w", root, err)
	}

	return nil
}
