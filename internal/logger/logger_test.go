package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capsentry/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestInitWriter_JSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	l, err := InitWriter(&buf, config.LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	l.Debug("hidden")
	slog.Info("analysis finished", "frames", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "analysis finished", entry["msg"])
	assert.Equal(t, float64(3), entry["frames"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestInitWriter_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "capsentry.log")
	var console bytes.Buffer
	l, err := InitWriter(&console, config.LogConfig{
		Level:  "debug",
		Format: "text",
		File:   config.FileLogConfig{Enabled: true, Path: path, MaxSizeMB: 1},
	})
	require.NoError(t, err)

	l.Debug("written twice")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written twice")
	assert.Contains(t, console.String(), "written twice")
}

func TestInitWriter_Errors(t *testing.T) {
	_, err := InitWriter(&bytes.Buffer{}, config.LogConfig{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")

	_, err = InitWriter(&bytes.Buffer{}, config.LogConfig{Level: "info", Format: "xml"})
	assert.ErrorContains(t, err, "unsupported log format")

	_, err = InitWriter(&bytes.Buffer{}, config.LogConfig{Level: "info", File: config.FileLogConfig{Enabled: true}})
	assert.ErrorContains(t, err, "requires 'path'")
}
