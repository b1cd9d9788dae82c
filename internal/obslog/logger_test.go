package obslog

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"nonsense", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestJSONLoggerEmitsOneJSONObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger("ironmanus", LevelInfo, &buf)

	log.Info("session started", map[string]interface{}{"session_id": "abc"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ironmanus", entry["service"])
	assert.Equal(t, "session started", entry["message"])
	assert.Equal(t, "abc", entry["session_id"])
}

func TestJSONLoggerSuppressesBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger("ironmanus", LevelWarn, &buf)

	log.Info("should not appear", nil)
	assert.Empty(t, buf.String())

	log.Warn("should appear", nil)
	assert.NotEmpty(t, buf.String())
}

func TestJSONLoggerWithComponentTagsSubsequentLines(t *testing.T) {
	var buf bytes.Buffer
	root := NewJSONLogger("ironmanus", LevelInfo, &buf)
	scoped := root.WithComponent("engine/fsm")

	scoped.Info("transitioned", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "engine/fsm", entry["component"])
}

func TestJSONLoggerWithContextCorrelatesSessionID(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger("ironmanus", LevelInfo, &buf)
	ctx := WithSessionID(context.Background(), "sess-42")

	log.InfoWithContext(ctx, "phase advanced", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "sess-42", entry["session_id"])
}

func TestComponentFallsBackToNoOpForNilLogger(t *testing.T) {
	scoped := Component(nil, "engine/graph")
	assert.NotPanics(t, func() {
		scoped.Info("fine", nil)
	})
}

func TestEnsureLoggerReturnsNoOpForNil(t *testing.T) {
	assert.Equal(t, NoOpLogger{}, EnsureLogger(nil))
}
