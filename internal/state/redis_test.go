package state

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/acewatch/internal/pkg/models"
)

// newTestRedisStore connects to REDIS_TEST_URL (localhost:6379 by default)
// under a throwaway prefix and skips when no server answers.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis test in short mode")
	}

	addr := os.Getenv("REDIS_TEST_URL")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	prefix := "acewatch-test:" + uuid.NewString() + ":"
	s, err := NewRedisStore(ctx, &redis.Options{
		Addr:        addr,
		Password:    os.Getenv("REDIS_TEST_PASSWORD"),
		DB:          1,
		DialTimeout: time.Second,
	}, prefix)
	if err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}

	t.Cleanup(func() {
		s.client.Del(context.Background(), s.seenKey(), s.streaksKey(), s.lastAlertKey())
		_ = s.Close()
	})
	return s
}

func TestRedisStore_RoundTrip(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Seen)
	assert.Empty(t, snap.Streaks)
	assert.True(t, snap.LastAlertAt.IsZero())

	require.NoError(t, s.MarkSeen(ctx, "A vs B|A|2-0|2026-03-01"))
	require.NoError(t, s.MarkSeen(ctx, "A vs B|A|2-0|2026-03-01"))
	require.NoError(t, s.SaveStreak(ctx, "A vs B", models.StreakState{Owner: "A", Length: 2, LastTimestamp: ts}))
	require.NoError(t, s.SaveLastAlertAt(ctx, ts))

	snap, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A vs B|A|2-0|2026-03-01": true}, snap.Seen)
	require.Contains(t, snap.Streaks, "A vs B")
	assert.Equal(t, "A", snap.Streaks["A vs B"].Owner)
	assert.Equal(t, 2, snap.Streaks["A vs B"].Length)
	assert.True(t, ts.Equal(snap.Streaks["A vs B"].LastTimestamp))
	assert.True(t, ts.Equal(snap.LastAlertAt))

	require.NoError(t, s.ReplaceStreaks(ctx, map[string]models.StreakState{"C vs D": {Owner: "D", Length: 1, LastTimestamp: ts}}))
	snap, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Streaks, 1)
	assert.Equal(t, "D", snap.Streaks["C vs D"].Owner)

	require.NoError(t, s.ReplaceStreaks(ctx, nil))
	snap, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Streaks)
	assert.Len(t, snap.Seen, 1, "replacing streaks leaves the seen set alone")
}

func TestRedisStore_SkipsUnreadableEntries(t *testing.T) {
	s := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.client.HSet(ctx, s.streaksKey(), "A vs B", "not json").Err())
	require.NoError(t, s.client.Set(ctx, s.lastAlertKey(), "yesterday", 0).Err())

	snap, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Streaks)
	assert.True(t, snap.LastAlertAt.IsZero())
}

func TestNewRedisStore_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, &redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}
