package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gammascout/internal/config"
)

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(config.LoggingConfig{Level: "warn"}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("hidden message")
	logger.Warn().Msg("visible message")

	assert.NotContains(t, buf.String(), "hidden message")
	assert.Contains(t, buf.String(), "visible message")
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

func TestNew_DebugMode(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(config.LoggingConfig{Level: "error", Debug: true}, &buf)
	require.NoError(t, err)

	logger.Debug().Str("datagram", "Standard").Msg("received")
	assert.Contains(t, buf.String(), "received")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gammascout.log")
	var buf bytes.Buffer

	logger, err := New(config.LoggingConfig{Level: "info", File: path}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("written to both")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to both")
	assert.Contains(t, buf.String(), "written to both")
}

func TestClose_WithoutFile(t *testing.T) {
	assert.NoError(t, Nop().Close())

	var nilLogger *Logger
	assert.NoError(t, nilLogger.Close())
}
