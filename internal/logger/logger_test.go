package logger_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alkime/practice/internal/config"
	"github.com/alkime/practice/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env, level string
		want       slog.Level
	}{
		{"production", "info", slog.LevelInfo},
		{"production", "debug", slog.LevelDebug},
		{"development", "info", slog.LevelDebug},
	}

	for _, tt := range tests {
		cfg := &config.Config{Env: tt.env, LogLevel: tt.level} //nolint:exhaustruct // logging only
		assert.Equal(t, tt.want, logger.Level(cfg), "%s/%s", tt.env, tt.level)
	}
}

//nolint:paralleltest // replaces the default logger
func TestSetupLogger_TUIWritesFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "practice.log")
	cfg := &config.Config{Env: "production", LogLevel: "info", LogFile: path} //nolint:exhaustruct // logging only

	log, closer, err := logger.SetupLogger(cfg, logger.ModeTUI)
	require.NoError(t, err)

	log.Info("take saved", "temp_id", "pending-1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"take saved"`)
	assert.Contains(t, string(data), `"temp_id":"pending-1"`)
}
