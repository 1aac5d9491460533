package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/Vodeneev/acewatch/internal/state"
)

// SeenCache is the set of dedupe keys already ingested. Accept records a
// key durably before reporting it as new, so a crash after the check can
// never let the same result through twice.
type SeenCache struct {
	mu    sync.Mutex
	seen  map[string]bool
	store state.Store
}

// NewSeenCache seeds the cache with initial keys. store may be nil.
func NewSeenCache(store state.Store, initial map[string]bool) *SeenCache {
	c := &SeenCache{seen: make(map[string]bool, len(initial)), store: store}
	for k, v := range initial {
		if v {
			c.seen[k] = true
		}
	}
	return c
}

// Accept reports whether key is new. A new key is persisted first; if that
// fails the key stays unseen and the error is returned.
func (c *SeenCache) Accept(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen[key] {
		return false, nil
	}
	if c.store != nil {
		if err := c.store.MarkSeen(ctx, key); err != nil {
			return false, fmt.Errorf("record dedupe key: %w", err)
		}
	}
	c.seen[key] = true
	return true, nil
}

// Contains reports whether key was already accepted.
func (c *SeenCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[key]
}

// Merge adds keys found elsewhere (the results log) without persisting them.
// It returns how many were new.
func (c *SeenCache) Merge(keys []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, k := range keys {
		if k == "" || c.seen[k] {
			continue
		}
		c.seen[k] = true
		added++
	}
	return added
}

// Len returns the number of known keys.
func (c *SeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
