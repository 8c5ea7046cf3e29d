package slogutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/readerbot/statskit/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("anything-else"))
}

func TestSetupHonorsConfiguredLevel(t *testing.T) {
	log := Setup(config.LogConfig{Level: "error"})
	assert.False(t, log.Enabled(t.Context(), slog.LevelInfo))
	assert.True(t, log.Enabled(t.Context(), slog.LevelError))
}
