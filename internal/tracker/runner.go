package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/Vodeneev/acewatch/internal/pkg/health"
	"github.com/Vodeneev/acewatch/internal/pkg/performance"
)

// RunOptions bounds a Runner.Run call.
type RunOptions struct {
	// Once stops after the first cycle.
	Once bool
	// RunFor stops the loop after this long; zero means until ctx ends.
	RunFor time.Duration
}

// Runner drives strictly sequential cycles with a fixed delay between the
// end of one and the start of the next.
type Runner struct {
	cycle    *Cycle
	interval time.Duration
	board    *health.StatusBoard
	perf     *performance.Tracker
	trigger  chan struct{}
}

// NewRunner wires a runner. board and perf may be nil.
func NewRunner(cycle *Cycle, interval time.Duration, board *health.StatusBoard, perf *performance.Tracker) *Runner {
	if perf == nil {
		perf = performance.GetTracker()
	}
	return &Runner{
		cycle:    cycle,
		interval: interval,
		board:    board,
		perf:     perf,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger asks for a cycle right away instead of waiting out the delay.
// It reports false when a trigger is already pending.
func (r *Runner) Trigger() bool {
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run loops until ctx is cancelled (or opts say otherwise). Cycle errors
// and panics are logged and the loop carries on.
func (r *Runner) Run(ctx context.Context, opts RunOptions) {
	if opts.RunFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.RunFor)
		defer cancel()
	}

	slog.Info("Poll loop started", "interval", r.interval, "once", opts.Once, "run_for", opts.RunFor)
	cycles := 0
	for {
		if ctx.Err() != nil {
			break
		}
		cycles++
		r.runOnce(ctx)
		if opts.Once {
			break
		}

		select {
		case <-ctx.Done():
		case <-r.trigger:
			slog.Info("Cycle triggered manually")
		case <-time.After(r.interval):
		}
	}
	slog.Info("Poll loop stopped", "total_cycles", cycles)
}

func (r *Runner) runOnce(ctx context.Context) {
	id := uuid.NewString()

	var (
		rep Report
		err error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("cycle panic: %v", p)
				slog.Error("Cycle panicked", "cycle_id", id, "panic", p, "stack", string(debug.Stack()))
			}
		}()
		rep, err = r.cycle.Run(ctx, id)
	}()
	if err != nil && ctx.Err() == nil {
		slog.Error("Cycle failed", "cycle_id", id, "error", err)
	}

	r.perf.RecordCycle(performance.CycleTiming{
		CycleID:    id,
		StartedAt:  rep.StartedAt,
		Regions:    rep.Regions,
		Resolved:   rep.Cards,
		Appended:   rep.Appended,
		Duplicates: rep.Duplicates,
		Skipped:    rep.Skipped,
		Errors:     rep.Errors,
		Alerts:     rep.Alerts,
		Browse:     rep.Browse,
		Extract:    rep.Extract,
		Ingest:     rep.Ingest,
		Recompute:  rep.Recompute,
		Total:      rep.Duration,
		Success:    err == nil,
	})

	if r.board != nil {
		r.publish(rep, err)
	}
}

func (r *Runner) publish(rep Report, err error) {
	now := time.Now().UTC()
	r.board.Update(func(s *health.Status) {
		s.Cycles++
		s.LastCycleAt = &now
		s.LastCycle = &health.CycleSummary{
			ID:          rep.ID,
			Regions:     rep.Regions,
			Cards:       rep.Cards,
			Appended:    rep.Appended,
			Duplicates:  rep.Duplicates,
			Skipped:     rep.Skipped,
			Errors:      rep.Errors,
			Alerts:      rep.Alerts,
			Duration:    rep.Duration.String(),
			SkipReasons: rep.SkipReasons,
		}
		s.LastError = ""
		if err != nil {
			s.LastError = err.Error()
		}
		if rep.Page != nil {
			s.LastPageURL = rep.Page.URL
			s.LastPageTitle = rep.Page.Title
			s.LastTextSample = rep.Page.TextSample
		}
		if len(rep.Diagnostics) > 0 {
			s.Diagnostics = rep.Diagnostics
		}
	})
}
