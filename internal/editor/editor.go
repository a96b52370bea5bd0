package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// ErrEmpty is returned when the edited text has no content left.
var ErrEmpty = errors.New("edited text is empty")

// Command returns the user's preferred editor: $PRACTICE_EDITOR, then
// $EDITOR, defaulting to "vi".
func Command() string {
	for _, env := range []string{"PRACTICE_EDITOR", "EDITOR"} {
		if editor := strings.TrimSpace(os.Getenv(env)); editor != "" {
			return editor
		}
	}

	return "vi"
}

// Open opens the specified file in the user's preferred editor.
func Open(ctx context.Context, filePath string) error {
	editor := Command()

	slog.Debug("Opening file in editor", "editor", editor, "path", filePath)

	cmd := exec.CommandContext(ctx, editor, filePath)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}

	return nil
}

// EditLine lets the user edit a single line of text, such as a take name.
// Lines starting with '#' are dropped and the first remaining line wins.
func EditLine(ctx context.Context, initial, hint string) (string, error) {
	f, err := os.CreateTemp("", "practice-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create edit file: %w", err)
	}

	path := f.Name()
	defer os.Remove(path)

	content := initial + "\n"
	if hint != "" {
		content += "# " + hint + "\n"
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write edit file: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close edit file: %w", err)
	}

	if err := Open(ctx, path); err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read edit file: %w", err)
	}

	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		return line, nil
	}

	return "", ErrEmpty
}
