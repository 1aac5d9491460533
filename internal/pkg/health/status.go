package health

import (
	"fmt"
	"sync"
	"time"
)

// CycleSummary is the outcome of the last finished poll cycle.
type CycleSummary struct {
	ID          string         `json:"id"`
	Regions     int            `json:"regions"`
	Cards       int            `json:"cards"`
	Appended    int            `json:"appended"`
	Duplicates  int            `json:"duplicates"`
	Skipped     int            `json:"skipped"`
	Errors      int            `json:"errors"`
	Alerts      int            `json:"alerts"`
	Duration    string         `json:"duration"`
	SkipReasons map[string]int `json:"skipReasons,omitempty"`
}

// Status is what /status reports.
type Status struct {
	Service        string        `json:"service"`
	StartedAt      time.Time     `json:"startedAt"`
	Cycles         int           `json:"cycles"`
	LastCycleAt    *time.Time    `json:"lastCycleAt"`
	LastCycle      *CycleSummary `json:"lastCycle"`
	LastError      string        `json:"lastError,omitempty"`
	LastPageTitle  string        `json:"lastPageTitle"`
	LastPageURL    string        `json:"lastPageUrl"`
	LastTextSample string        `json:"lastTextSample"`
	Diagnostics    any           `json:"diagnostics"`
}

// StatusBoard holds the service status shared between the poll loop and
// the HTTP handlers.
type StatusBoard struct {
	mu     sync.RWMutex
	status Status
}

// NewStatusBoard returns a board for service started at startedAt.
func NewStatusBoard(service string, startedAt time.Time) *StatusBoard {
	return &StatusBoard{status: Status{Service: service, StartedAt: startedAt.UTC()}}
}

// Update mutates the status under the board lock.
func (b *StatusBoard) Update(fn func(s *Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.status)
}

// Snapshot returns a copy safe to read without the lock.
func (b *StatusBoard) Snapshot() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := b.status
	if s.LastCycleAt != nil {
		t := *s.LastCycleAt
		s.LastCycleAt = &t
	}
	if s.LastCycle != nil {
		c := *s.LastCycle
		if c.SkipReasons != nil {
			reasons := make(map[string]int, len(c.SkipReasons))
			for k, v := range c.SkipReasons {
				reasons[k] = v
			}
			c.SkipReasons = reasons
		}
		s.LastCycle = &c
	}
	return s
}

// Stale returns an error when the last cycle (or the start, if none ran)
// is older than maxAge. A zero maxAge disables the check.
func (b *StatusBoard) Stale(now time.Time, maxAge time.Duration) error {
	if maxAge <= 0 {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	last := b.status.StartedAt
	if b.status.LastCycleAt != nil {
		last = *b.status.LastCycleAt
	}
	if age := now.Sub(last); age > maxAge {
		return fmt.Errorf("no cycle finished for %s", age.Round(time.Second))
	}
	return nil
}
