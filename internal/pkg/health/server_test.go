package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/acewatch/internal/pkg/performance"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRouter_Status(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	board := NewStatusBoard("acewatch", started)
	board.Update(func(s *Status) {
		at := started.Add(time.Minute)
		s.LastCycleAt = &at
		s.Cycles = 1
		s.LastCycle = &CycleSummary{ID: "c1", Cards: 3, Appended: 2, Skipped: 1}
		s.LastPageTitle = "Live"
		s.LastPageURL = "https://example.test/live"
	})

	h := NewRouter(Options{Service: "acewatch", Board: board, Metrics: performance.NewTracker(0)})

	rec := get(t, h, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "2026-03-01T12:00:00Z", got["startedAt"])
	assert.Equal(t, "Live", got["lastPageTitle"])
	assert.Equal(t, "https://example.test/live", got["lastPageUrl"])
	lastCycle := got["lastCycle"].(map[string]any)
	assert.EqualValues(t, 3, lastCycle["cards"])
	assert.EqualValues(t, 2, lastCycle["appended"])

	rec = get(t, h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "Cards: 3 | Appended: 2")

	rec = get(t, h, "/ping")
	assert.Equal(t, "pong\n", rec.Body.String())

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_cycles":0`)
}

func TestRouter_HealthStale(t *testing.T) {
	board := NewStatusBoard("acewatch", time.Now().Add(-time.Hour))
	h := NewRouter(Options{Board: board, StaleAfter: 10 * time.Minute})

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	board.Update(func(s *Status) {
		now := time.Now()
		s.LastCycleAt = &now
	})
	rec = get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestRouter_Trigger(t *testing.T) {
	pending := false
	h := NewRouter(Options{Trigger: func() bool {
		if pending {
			return false
		}
		pending = true
		return true
	}})

	post := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger", nil))
		return rec.Code
	}
	assert.Equal(t, http.StatusAccepted, post())
	assert.Equal(t, http.StatusConflict, post())

	rec := get(t, NewRouter(Options{}), "/trigger")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusBoard_SnapshotIsCopy(t *testing.T) {
	board := NewStatusBoard("acewatch", time.Now())
	board.Update(func(s *Status) {
		s.LastCycle = &CycleSummary{Cards: 1, SkipReasons: map[string]int{"no_score": 1}}
	})

	snap := board.Snapshot()
	snap.LastCycle.Cards = 99
	snap.LastCycle.SkipReasons["no_score"] = 99

	again := board.Snapshot()
	assert.Equal(t, 1, again.LastCycle.Cards)
	assert.Equal(t, 1, again.LastCycle.SkipReasons["no_score"])
}

func TestAddrFor(t *testing.T) {
	addr, err := AddrFor(8080)
	require.NoError(t, err)
	assert.Equal(t, ":8080", addr)

	_, err = AddrFor(0)
	assert.Error(t, err)
}
