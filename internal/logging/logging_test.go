package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestSetupWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "docindex.log")

	logger, cleanup, err := Setup(Config{
		Level:         "debug",
		FilePath:      logPath,
		WriteToStderr: false,
	})
	require.NoError(t, err)

	logger.Info("sync_completed", slog.Int("added", 3))
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "sync_completed", entry["msg"])
	assert.Equal(t, float64(3), entry["added"])
}

func TestSetupLevelFilters(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "docindex.log")

	logger, cleanup, err := Setup(Config{
		Level:         "warn",
		FilePath:      logPath,
		WriteToStderr: false,
	})
	require.NoError(t, err)

	logger.Debug("ignored")
	logger.Info("ignored_too")
	logger.Warn("kept")
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
	assert.NotContains(t, string(data), "ignored")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.WriteToStderr)
	assert.Empty(t, cfg.FilePath)
}
