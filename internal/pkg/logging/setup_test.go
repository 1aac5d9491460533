package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/acewatch/internal/pkg/config"
)

func TestMultiHandler_FansOutByLevel(t *testing.T) {
	var debug, warn bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	log := slog.New(h).With("service", "acewatch")

	log.Debug("Card skipped", "reason", "no_score")
	log.Warn("Failed to persist streak", "matchup", "Alpha vs Beta")

	assert.Contains(t, debug.String(), "Card skipped")
	assert.Contains(t, debug.String(), "Failed to persist streak")
	assert.NotContains(t, warn.String(), "Card skipped")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(warn.Bytes(), &rec))
	assert.Equal(t, "acewatch", rec["service"])
	assert.Equal(t, "Alpha vs Beta", rec["matchup"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestSetupLogger_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "acewatch.log")
	logger, closer, err := SetupLogger(config.LoggingConfig{Level: "info", Format: "json", File: path}, "acewatch")
	require.NoError(t, err)

	logger.Info("Cycle finished", "cards", 3)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "Cycle finished", rec["msg"])
	assert.EqualValues(t, 3, rec["cards"])
	assert.Equal(t, "acewatch", rec["service"])
}
