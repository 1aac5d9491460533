package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vodeneev/acewatch/internal/pkg/models"
)

// RedisStore keeps the seen set in a SET, streaks in a HASH of JSON values
// and the cooldown timestamp in a plain key, all under one prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts *redis.Options, prefix string) (*RedisStore, error) {
	if prefix == "" {
		prefix = "acewatch:"
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("Redis state store connected", "addr", opts.Addr, "prefix", prefix)
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) seenKey() string      { return s.prefix + "seen" }
func (s *RedisStore) streaksKey() string   { return s.prefix + "streaks" }
func (s *RedisStore) lastAlertKey() string { return s.prefix + "last_alert_at" }

func (s *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	snap := emptySnapshot()

	members, err := s.client.SMembers(ctx, s.seenKey()).Result()
	if err != nil {
		return snap, fmt.Errorf("load seen set: %w", err)
	}
	for _, m := range members {
		snap.Seen[m] = true
	}

	raw, err := s.client.HGetAll(ctx, s.streaksKey()).Result()
	if err != nil {
		return snap, fmt.Errorf("load streaks: %w", err)
	}
	for id, v := range raw {
		var st models.StreakState
		if err := json.Unmarshal([]byte(v), &st); err != nil {
			slog.Warn("Skipping unreadable streak entry", "matchup", id, "error", err)
			continue
		}
		snap.Streaks[id] = st
	}

	last, err := s.client.Get(ctx, s.lastAlertKey()).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return snap, fmt.Errorf("load last alert time: %w", err)
	default:
		t, perr := time.Parse(time.RFC3339Nano, last)
		if perr != nil {
			slog.Warn("Ignoring unreadable last alert time", "value", last, "error", perr)
		} else {
			snap.LastAlertAt = t
		}
	}
	return snap, nil
}

func (s *RedisStore) MarkSeen(ctx context.Context, key string) error {
	if err := s.client.SAdd(ctx, s.seenKey(), key).Err(); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveStreak(ctx context.Context, matchupID string, st models.StreakState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode streak: %w", err)
	}
	if err := s.client.HSet(ctx, s.streaksKey(), matchupID, data).Err(); err != nil {
		return fmt.Errorf("save streak: %w", err)
	}
	return nil
}

func (s *RedisStore) ReplaceStreaks(ctx context.Context, streaks map[string]models.StreakState) error {
	values := make(map[string]any, len(streaks))
	for id, st := range streaks {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encode streak: %w", err)
		}
		values[id] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.streaksKey())
		if len(values) > 0 {
			pipe.HSet(ctx, s.streaksKey(), values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace streaks: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveLastAlertAt(ctx context.Context, t time.Time) error {
	if err := s.client.Set(ctx, s.lastAlertKey(), t.UTC().Format(time.RFC3339Nano), 0).Err(); err != nil {
		return fmt.Errorf("save last alert time: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
