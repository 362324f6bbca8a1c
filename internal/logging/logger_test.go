package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), "line: %s", line)
		out = append(out, m)
	}
	return out
}

func TestNewWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "radiowake.log")

	logger, err := New(Options{Level: LevelDebug, File: path, MaxSizeMB: 1, MaxBackups: 2})
	require.NoError(t, err)

	logger.Info("started", "port", 8080)
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := decodeLines(t, string(content))
	require.Len(t, lines, 1)
	assert.Equal(t, "started", lines[0]["msg"])
	assert.Equal(t, float64(8080), lines[0]["port"])
}

func TestNewStderr(t *testing.T) {
	logger, err := New(Options{Level: LevelInfo})
	require.NoError(t, err)
	assert.NoError(t, logger.Close(), "close without a file is a no-op")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelWarn)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	lines := decodeLines(t, buf.String())
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "ERROR", lines[1]["level"])
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "chatty")

	logger.Debug("hidden")
	logger.Info("shown")

	lines := decodeLines(t, buf.String())
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestChildLoggersCarryAttributes(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(&buf, LevelDebug)

	child := root.WithComponent("wake").WithRadio("silvus-01").WithAttempt("a-1").With("timeout_ms", 500, 42, "ignored")
	child.Info("waiting")
	root.Info("plain")

	lines := decodeLines(t, buf.String())
	require.Len(t, lines, 2)

	assert.Equal(t, "wake", lines[0]["component"])
	assert.Equal(t, "silvus-01", lines[0]["radio_id"])
	assert.Equal(t, "a-1", lines[0]["attempt_id"])
	assert.Equal(t, float64(500), lines[0]["timeout_ms"])

	_, ok := lines[1]["radio_id"]
	assert.False(t, ok, "parent must not inherit child attributes")
}

func TestWithNoArgsReturnsSameLogger(t *testing.T) {
	l := NopLogger()
	assert.Same(t, l, l.With())
}

func TestIsValidLevel(t *testing.T) {
	assert.True(t, IsValidLevel("debug"))
	assert.True(t, IsValidLevel("ERROR"))
	assert.False(t, IsValidLevel("trace"))
}
