package logger

import (
	"bytes"
	"context"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "dexswap", func(context.Context) string { return "abc123" })

	log.Info(context.Background(), "quote applied", "channel", "swap", "amount", "1.0")

	var entry map[string]any
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "quote applied", entry["msg"])
	assert.Equal(t, "dexswap", entry["service"])
	assert.Equal(t, "swap", entry["channel"])
	assert.Equal(t, "abc123", entry["trace_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "dexswap", nil)

	log.Info(context.Background(), "hidden")
	log.Debugc(context.Background(), 1, "hidden too")
	assert.Zero(t, buf.Len())

	log.Error(context.Background(), "visible")
	assert.Contains(t, buf.String(), "visible")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("bogus"))
}
