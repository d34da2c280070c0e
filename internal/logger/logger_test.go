package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type entry struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Module  string                 `json:"module"`
	Details map[string]interface{} `json:"details"`
	Error   string                 `json:"error"`
}

func decode(t *testing.T, buf *bytes.Buffer) []entry {
	t.Helper()
	var out []entry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e entry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		out = append(out, e)
	}
	return out
}

func TestZapLoggerWritesModuleAndDetails(t *testing.T) {
	var buf bytes.Buffer
	l := newZapLogger(zapcore.AddSync(&buf), zapcore.InfoLevel)

	l.Debug("chat", "dropped", nil)
	l.Info("chat", "message sent", map[string]interface{}{"session_id": "s1"})
	l.Error("api", "request failed", map[string]interface{}{"error": errors.New("boom")})
	require.NoError(t, l.Sync())

	entries := decode(t, &buf)
	require.Len(t, entries, 2, "debug is below the configured level")

	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "message sent", entries[0].Message)
	assert.Equal(t, "chat", entries[0].Module)
	assert.Equal(t, "s1", entries[0].Details["session_id"])

	assert.Equal(t, "ERROR", entries[1].Level)
	assert.Equal(t, "boom", entries[1].Error)
	assert.Equal(t, "boom", entries[1].Details["error"])
}

func TestWarnKeepsWrappedErrorText(t *testing.T) {
	var buf bytes.Buffer
	l := newZapLogger(zapcore.AddSync(&buf), zapcore.DebugLevel)

	cause := fmt.Errorf("knowledge base names unavailable: %w", errors.New("connection refused"))
	details := map[string]interface{}{"error": cause, "attempt": 2}
	l.Warn("console", "lookup failed", details)
	require.NoError(t, l.Sync())

	entries := decode(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "knowledge base names unavailable: connection refused", entries[0].Details["error"])
	assert.EqualValues(t, 2, entries[0].Details["attempt"])
	assert.Same(t, cause, details["error"], "caller's map is left untouched")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"DEBUG":   zapcore.DebugLevel,
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"ERROR":   zapcore.ErrorLevel,
		"INFO":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("x", "y", nil)
	assert.NoError(t, l.Sync())
}
