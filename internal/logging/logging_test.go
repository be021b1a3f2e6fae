package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{Level(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"WARNING", LevelWarn},
		{"error", LevelError},
		{"unknown", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.input), "input %q", tt.input)
	}
}

func TestLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Mode: "production", Output: &buf})

	l.WithComponent("transform").Info("replaced span", "kind", "context-block", "start", 2)
	l.Sync()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "replaced span", entry["msg"])
	assert.Equal(t, "transform", entry["component"])
	assert.Equal(t, "context-block", entry["kind"])
	assert.EqualValues(t, 2, entry["start"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Sync()

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")

	assert.False(t, l.Enabled(LevelInfo))
	l.SetLevel(LevelDebug)
	assert.True(t, l.Enabled(LevelDebug))
}

func TestLogger_ChildSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Config{Level: LevelError, Output: &buf})
	child := parent.With("instance", "a")

	parent.SetLevel(LevelInfo)
	child.Info("from child")
	child.Sync()

	assert.True(t, strings.Contains(buf.String(), "from child"))
}

func TestNopAndOrNop(t *testing.T) {
	l := Nop()
	l.Error("discarded")
	assert.False(t, l.Enabled(LevelError))

	assert.NotNil(t, OrNop(nil))
	assert.Same(t, l, OrNop(l))
}

func TestDefault(t *testing.T) {
	original := Default()
	require.NotNil(t, original)

	replacement := Nop()
	SetDefault(replacement)
	defer SetDefault(original)

	assert.Same(t, replacement, Default())
}
