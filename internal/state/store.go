package state

import (
	"context"
	"time"

	"github.com/Vodeneev/acewatch/internal/pkg/models"
)

// Snapshot is everything the ingestion engine keeps between restarts.
type Snapshot struct {
	Seen        map[string]bool
	Streaks     map[string]models.StreakState
	LastAlertAt time.Time
}

// Store persists the engine's local caches. Writes are best-effort: the
// results log stays the ground truth these caches can be rebuilt from.
type Store interface {
	// Load returns the persisted snapshot; an empty store is not an error.
	Load(ctx context.Context) (Snapshot, error)

	// MarkSeen durably records a dedupe key.
	MarkSeen(ctx context.Context, key string) error

	// SaveStreak persists one matchup's streak.
	SaveStreak(ctx context.Context, matchupID string, st models.StreakState) error

	// ReplaceStreaks persists the whole streak table (warm start).
	ReplaceStreaks(ctx context.Context, streaks map[string]models.StreakState) error

	// SaveLastAlertAt persists the global alert cooldown timestamp.
	SaveLastAlertAt(ctx context.Context, t time.Time) error

	Close() error
}

func emptySnapshot() Snapshot {
	return Snapshot{Seen: map[string]bool{}, Streaks: map[string]models.StreakState{}}
}
