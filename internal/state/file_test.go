package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/acewatch/internal/pkg/models"
)

func TestFileStore_PersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Seen)
	assert.True(t, snap.LastAlertAt.IsZero())

	require.NoError(t, s.MarkSeen(ctx, "A vs B|A|2-0|2026-03-01"))
	require.NoError(t, s.SaveStreak(ctx, "A vs B", models.StreakState{Owner: "A", Length: 2, LastTimestamp: ts}))
	require.NoError(t, s.SaveLastAlertAt(ctx, ts))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	snap, err = reopened.Load(ctx)
	require.NoError(t, err)

	assert.True(t, snap.Seen["A vs B|A|2-0|2026-03-01"])
	assert.Equal(t, 2, snap.Streaks["A vs B"].Length)
	assert.True(t, ts.Equal(snap.LastAlertAt))

	require.NoError(t, reopened.ReplaceStreaks(ctx, map[string]models.StreakState{"C vs D": {Owner: "D", Length: 1}}))
	snap, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Streaks, 1)
	assert.Equal(t, "D", snap.Streaks["C vs D"].Owner)
}

func TestFileStore_ReadsLegacyFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFile), []byte(`{"seen":{"k1":true,"k2":false}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFile),
		[]byte(`{"streaks":{"A vs B":{"owner":"A","len":3,"last_ts":"2026-03-01T12:00:00.000Z"}},"lastAlertAt":null}`), 0o644))

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	snap, err := s.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"k1": true}, snap.Seen)
	assert.Equal(t, 3, snap.Streaks["A vs B"].Length)
	assert.True(t, snap.LastAlertAt.IsZero())
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFile), []byte(`{broken`), 0o644))

	_, err := NewFileStore(dir)
	assert.Error(t, err)
}
