package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestForAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, FormatText, slog.LevelDebug)
	defer Setup(&bytes.Buffer{}, FormatText, slog.LevelInfo)

	For(ComponentConsole).Debug("drained")
	assert.Contains(t, buf.String(), "component=console")
	assert.Contains(t, buf.String(), "drained")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, FormatJSON, slog.LevelWarn)
	defer Setup(&bytes.Buffer{}, FormatText, slog.LevelInfo)

	Default().Info("hidden")
	Default().Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
