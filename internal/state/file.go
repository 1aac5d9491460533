package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Vodeneev/acewatch/internal/pkg/models"
)

const (
	cacheFile = "cache.json"
	stateFile = "state.json"
)

type cacheDoc struct {
	Seen map[string]bool `json:"seen"`
}

type stateDoc struct {
	Streaks     map[string]models.StreakState `json:"streaks"`
	LastAlertAt *time.Time                    `json:"lastAlertAt"`
}

// FileStore keeps the seen set in cache.json and streaks plus the cooldown
// in state.json. Every mutation rewrites its file atomically.
type FileStore struct {
	dir string

	mu    sync.Mutex
	cache cacheDoc
	state stateDoc
}

// NewFileStore creates dir if needed and loads existing files.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	s := &FileStore{
		dir:   dir,
		cache: cacheDoc{Seen: map[string]bool{}},
		state: stateDoc{Streaks: map[string]models.StreakState{}},
	}
	if err := readJSON(filepath.Join(dir, cacheFile), &s.cache); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, stateFile), &s.state); err != nil {
		return nil, err
	}
	if s.cache.Seen == nil {
		s.cache.Seen = map[string]bool{}
	}
	if s.state.Streaks == nil {
		s.state.Streaks = map[string]models.StreakState{}
	}
	return s, nil
}

func (s *FileStore) Load(context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := emptySnapshot()
	for k, v := range s.cache.Seen {
		if v {
			snap.Seen[k] = true
		}
	}
	for k, v := range s.state.Streaks {
		snap.Streaks[k] = v
	}
	if s.state.LastAlertAt != nil {
		snap.LastAlertAt = *s.state.LastAlertAt
	}
	return snap, nil
}

func (s *FileStore) MarkSeen(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Seen[key] = true
	return writeJSON(filepath.Join(s.dir, cacheFile), s.cache)
}

func (s *FileStore) SaveStreak(_ context.Context, matchupID string, st models.StreakState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Streaks[matchupID] = st
	return writeJSON(filepath.Join(s.dir, stateFile), s.state)
}

func (s *FileStore) ReplaceStreaks(_ context.Context, streaks map[string]models.StreakState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Streaks = make(map[string]models.StreakState, len(streaks))
	for k, v := range streaks {
		s.state.Streaks[k] = v
	}
	return writeJSON(filepath.Join(s.dir, stateFile), s.state)
}

func (s *FileStore) SaveLastAlertAt(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t = t.UTC()
	s.state.LastAlertAt = &t
	return writeJSON(filepath.Join(s.dir, stateFile), s.state)
}

func (s *FileStore) Close() error { return nil }

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
