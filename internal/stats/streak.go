package stats

import (
	"sync"
	"time"

	"github.com/Vodeneev/acewatch/internal/pkg/models"
)

// Fold applies one accepted win to prev. The owner switches (and the length
// restarts at 1) whenever someone other than the current owner wins.
func Fold(prev models.StreakState, winner string, ts time.Time) models.StreakState {
	if prev.Owner == "" || winner != prev.Owner {
		return models.StreakState{Owner: winner, Length: 1, LastTimestamp: ts}
	}
	return models.StreakState{Owner: prev.Owner, Length: prev.Length + 1, LastTimestamp: ts}
}

// Streaks is the incremental per-matchup streak table.
type Streaks struct {
	mu    sync.RWMutex
	state map[string]models.StreakState
}

// NewStreaks returns a table seeded with initial (which may be nil).
func NewStreaks(initial map[string]models.StreakState) *Streaks {
	s := &Streaks{state: make(map[string]models.StreakState, len(initial))}
	for k, v := range initial {
		s.state[k] = v
	}
	return s
}

// Apply folds the result's winner into its matchup and returns the new state.
func (s *Streaks) Apply(r models.MatchResult) models.StreakState {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := Fold(s.state[r.MatchupID], r.Winner, r.Timestamp)
	s.state[r.MatchupID] = next
	return next
}

// Get returns the current state of one matchup.
func (s *Streaks) Get(matchupID string) (models.StreakState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.state[matchupID]
	return st, ok
}

// Replace swaps the whole table, used when warm-starting from the log.
func (s *Streaks) Replace(state map[string]models.StreakState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = make(map[string]models.StreakState, len(state))
	for k, v := range state {
		s.state[k] = v
	}
}

// Snapshot returns a copy of the table.
func (s *Streaks) Snapshot() map[string]models.StreakState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.StreakState, len(s.state))
	for k, v := range s.state {
		out[k] = v
	}
	return out
}
