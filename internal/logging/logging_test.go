package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestSetup_JSON(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	logger := Setup(slog.LevelInfo, "json", &buf)
	logger.Debug("hidden")
	logger.Info("chunk read", "key", "a.csv", Err(errors.New("boom")))

	var rec map[string]any
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "chunk read", rec["msg"])
	assert.Equal(t, "a.csv", rec["key"])
	assert.Equal(t, "boom", rec["err"])
	assert.NotContains(t, buf.String(), "hidden")
	assert.Same(t, logger, slog.Default())
}

func TestSetup_TextWithoutTerminal(t *testing.T) {
	restoreDefault(t)
	var buf bytes.Buffer

	logger := Setup(slog.LevelDebug, "text", &buf)
	logger.Debug("listing", "prefix", "in/")

	out := buf.String()
	assert.Contains(t, out, "listing")
	assert.Contains(t, out, "prefix=in/")
	assert.NotContains(t, out, "\x1b[", "colors disabled for non-terminal writers")
}
