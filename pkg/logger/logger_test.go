package logger

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
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, "debug", "json")
	require.NotNil(t, l)

	Component("ring").Debug("slot ready", "index", 3)

	out := buf.String()
	assert.Contains(t, out, `"msg":"slot ready"`)
	assert.Contains(t, out, `"component":"ring"`)
	assert.Contains(t, out, `"index":3`)
}

func TestSetup_TextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "warn", "text")

	Info("hidden")
	Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestDiscard(t *testing.T) {
	l := Discard()
	require.NotNil(t, l)
	l.Error("nothing")
}
