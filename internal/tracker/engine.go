package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vodeneev/acewatch/internal/alerting"
	"github.com/Vodeneev/acewatch/internal/extractor"
	"github.com/Vodeneev/acewatch/internal/pkg/models"
	"github.com/Vodeneev/acewatch/internal/pkg/performance"
	"github.com/Vodeneev/acewatch/internal/pkg/storage"
	"github.com/Vodeneev/acewatch/internal/state"
	"github.com/Vodeneev/acewatch/internal/stats"
)

// EngineConfig wires an Engine.
type EngineConfig struct {
	Names       *models.Normalizer
	Sink        storage.Sink
	Store       state.Store
	Alerts      *alerting.Engine
	SourceURL   string
	LastN       int
	CallTimeout time.Duration
	Perf        *performance.Tracker
}

// Engine owns all mutable ingestion state: the seen cache, the streak
// table and the alert engine with its cooldown. One instance lives for the
// whole process.
type Engine struct {
	names       *models.Normalizer
	sink        storage.Sink
	store       state.Store
	alerts      *alerting.Engine
	agg         *stats.Aggregator
	seen        *SeenCache
	streaks     *stats.Streaks
	sourceURL   string
	callTimeout time.Duration
	perf        *performance.Tracker
	// lastTS is the newest result timestamp handed out; see stamp.
	lastTS time.Time
}

// Ingested describes one accepted result.
type Ingested struct {
	Result models.MatchResult
	Streak models.StreakState
	Alerts []models.AlertEvent
}

// NewEngine restores the persisted snapshot from cfg.Store.
func NewEngine(ctx context.Context, cfg EngineConfig) (*Engine, error) {
	if cfg.Sink == nil {
		return nil, fmt.Errorf("engine requires a sink")
	}
	if cfg.Names == nil {
		cfg.Names = models.NewNormalizer(nil)
	}
	if cfg.Alerts == nil {
		cfg.Alerts = alerting.NewEngine(alerting.Config{Names: cfg.Names, Sink: cfg.Sink, Store: cfg.Store})
	}
	if cfg.Perf == nil {
		cfg.Perf = performance.GetTracker()
	}

	snap := state.Snapshot{Seen: map[string]bool{}, Streaks: map[string]models.StreakState{}}
	if cfg.Store != nil {
		loaded, err := cfg.Store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
		snap = loaded
	}
	cfg.Alerts.SetLastAlertAt(snap.LastAlertAt)

	slog.Info("Engine state restored",
		"seen", len(snap.Seen), "streaks", len(snap.Streaks), "last_alert_at", snap.LastAlertAt)

	e := &Engine{
		names:       cfg.Names,
		sink:        cfg.Sink,
		store:       cfg.Store,
		alerts:      cfg.Alerts,
		agg:         stats.NewAggregator(cfg.Names, cfg.LastN),
		seen:        NewSeenCache(cfg.Store, snap.Seen),
		streaks:     stats.NewStreaks(snap.Streaks),
		sourceURL:   cfg.SourceURL,
		callTimeout: cfg.CallTimeout,
		perf:        cfg.Perf,
	}
	e.advance(snap.Streaks)
	return e, nil
}

// advance raises lastTS to the newest streak result.
func (e *Engine) advance(streaks map[string]models.StreakState) {
	for _, st := range streaks {
		if ts := st.LastTimestamp.UTC().Truncate(time.Millisecond); ts.After(e.lastTS) {
			e.lastTS = ts
		}
	}
}

// stamp returns the timestamp for the next result: ts at log precision,
// bumped to stay strictly after the previous one. Results sharing a cycle
// then sort in page order when the log is replayed.
func (e *Engine) stamp(ts time.Time) time.Time {
	ts = ts.UTC().Truncate(time.Millisecond)
	if !ts.After(e.lastTS) {
		ts = e.lastTS.Add(time.Millisecond)
	}
	return ts
}

// Seen exposes the dedup cache.
func (e *Engine) Seen() *SeenCache { return e.seen }

// Streaks exposes the incremental streak table.
func (e *Engine) Streaks() *stats.Streaks { return e.streaks }

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.callTimeout)
}

func (e *Engine) timed(ctx context.Context, op, target string, fn func(context.Context) error) error {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()
	start := time.Now()
	err := fn(callCtx)
	e.perf.RecordOperation(op, target, time.Since(start), err)
	return err
}

// WarmStart reconciles the local caches with the results log: every logged
// dedupe key becomes seen, and streaks are recomputed from the log.
func (e *Engine) WarmStart(ctx context.Context) error {
	var rows [][]string
	err := e.timed(ctx, "read", storage.Results.Name, func(ctx context.Context) error {
		var err error
		rows, err = e.sink.Read(ctx, storage.Results)
		return err
	})
	if err != nil {
		return fmt.Errorf("read results log: %w", err)
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 8 {
			keys = append(keys, row[8])
		}
	}
	added := e.seen.Merge(keys)

	tables := e.agg.Recompute(rows)
	e.streaks.Replace(tables.Current)
	e.advance(tables.Current)
	if e.store != nil {
		if err := e.timed(ctx, "replace_streaks", "state", func(ctx context.Context) error {
			return e.store.ReplaceStreaks(ctx, tables.Current)
		}); err != nil {
			slog.Warn("Failed to persist rebuilt streaks", "error", err)
		}
	}

	slog.Info("Warm start from results log",
		"rows", len(rows), "skipped_rows", tables.Skipped, "keys_added", added,
		"seen", e.seen.Len(), "matchups", len(tables.Current))
	return nil
}

// Ingest runs one outcome through dedup, the results log, the streak table
// and the alert rules. A duplicate returns (nil, nil).
func (e *Engine) Ingest(ctx context.Context, o extractor.Outcome, ts time.Time) (*Ingested, error) {
	r := models.MatchResult{
		Timestamp:  e.stamp(ts),
		MatchupID:  o.MatchupID,
		PlayerA:    o.PlayerA,
		PlayerB:    o.PlayerB,
		Winner:     o.Winner,
		Loser:      o.Loser,
		ScoreLabel: o.ScoreLabel,
		SourceURL:  e.sourceURL,
	}
	r.DedupeKey = models.DedupeKey(r.MatchupID, r.Winner, r.ScoreLabel, r.Timestamp)

	var accepted bool
	err := e.timed(ctx, "mark_seen", "state", func(ctx context.Context) error {
		var err error
		accepted, err = e.seen.Accept(ctx, r.DedupeKey)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !accepted {
		return nil, nil
	}

	if err := e.timed(ctx, "append", storage.Results.Name, func(ctx context.Context) error {
		return e.sink.Append(ctx, storage.Results, r.Row())
	}); err != nil {
		return nil, fmt.Errorf("append result %s: %w", r.DedupeKey, err)
	}
	e.lastTS = r.Timestamp

	st := e.streaks.Apply(r)
	if e.store != nil {
		if err := e.timed(ctx, "save_streak", "state", func(ctx context.Context) error {
			return e.store.SaveStreak(ctx, r.MatchupID, st)
		}); err != nil {
			slog.Warn("Failed to persist streak", "matchup", r.MatchupID, "error", err)
		}
	}

	ing := &Ingested{Result: r, Streak: st}
	events, err := e.alerts.Evaluate(ctx, r, st)
	ing.Alerts = events
	if err != nil {
		return ing, fmt.Errorf("alerts for %s: %w", r.MatchupID, err)
	}
	return ing, nil
}

// Recompute rebuilds the H2H and Streaks tables from the whole results log
// and rewrites both.
func (e *Engine) Recompute(ctx context.Context) (stats.Tables, error) {
	var rows [][]string
	err := e.timed(ctx, "read", storage.Results.Name, func(ctx context.Context) error {
		var err error
		rows, err = e.sink.Read(ctx, storage.Results)
		return err
	})
	if err != nil {
		return stats.Tables{}, fmt.Errorf("read results log: %w", err)
	}

	tables := e.agg.Recompute(rows)
	if tables.Skipped > 0 {
		slog.Debug("Recompute skipped unusable log rows", "skipped", tables.Skipped)
	}

	if err := e.timed(ctx, "clear_write", storage.H2H.Name, func(ctx context.Context) error {
		return e.sink.ClearAndWrite(ctx, storage.H2H, tables.H2HRows())
	}); err != nil {
		return tables, fmt.Errorf("write %s: %w", storage.H2H.Name, err)
	}
	if err := e.timed(ctx, "clear_write", storage.Streaks.Name, func(ctx context.Context) error {
		return e.sink.ClearAndWrite(ctx, storage.Streaks, tables.StreakRows())
	}); err != nil {
		return tables, fmt.Errorf("write %s: %w", storage.Streaks.Name, err)
	}
	return tables, nil
}
