package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildnotify/internal/types"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" DEBUG ": slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestNew_JSONWithServiceAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "buildnotify")

	logger.Info("dropped")
	logger.Warn("kept", "build_uuid", "b-1")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "kept", recs[0]["msg"])
	assert.Equal(t, "WARN", recs[0]["level"])
	assert.Equal(t, "buildnotify", recs[0]["service"])
	assert.Equal(t, "b-1", recs[0]["build_uuid"])
}

func TestAdapter_WithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	var logger types.Logger = NewAdapter(New(&buf, "info", ""))

	child := logger.With("message_id", "m-1", "state", "failed")
	child.Info("processed")
	child.Error("delivery failed", "error", "boom")
	logger.Warn("parent")

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 3)
	assert.Equal(t, "m-1", recs[0]["message_id"])
	assert.Equal(t, "failed", recs[1]["state"])
	assert.Equal(t, "boom", recs[1]["error"])
	assert.Equal(t, "ERROR", recs[1]["level"])
	_, hasID := recs[2]["message_id"]
	assert.False(t, hasID, "parent logger must not inherit child fields")
	_, hasService := recs[2]["service"]
	assert.False(t, hasService)
}

func TestAdapter_SecretsAreRedacted(t *testing.T) {
	var buf bytes.Buffer
	NewAdapter(New(&buf, "info", "")).Info("configured", "webhook_url", types.SecretString("https://hooks.example.com/secret"))

	assert.NotContains(t, buf.String(), "hooks.example.com")
	assert.Contains(t, buf.String(), "REDACTED")
}

func TestNewAdapter_NilUsesDefault(t *testing.T) {
	a := NewAdapter(nil)
	assert.Same(t, slog.Default(), a.Slog())
}
