package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vodeneev/acewatch/internal/browser"
	"github.com/Vodeneev/acewatch/internal/extractor"
	"github.com/Vodeneev/acewatch/internal/pkg/performance"
)

// Page is the browser capability a cycle needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	ClickText(ctx context.Context, text string, match browser.TextMatch) (bool, error)
	Scroll(ctx context.Context, d time.Duration) error
	Regions(ctx context.Context) ([]extractor.Region, error)
	Snapshot(ctx context.Context) (browser.PageInfo, error)
}

// Source describes where and how to load the event page.
type Source struct {
	URL           string
	ConsentLabels []string
	Tabs          []string
	Settle        time.Duration
	Scroll        time.Duration
}

// CycleConfig wires a Cycle.
type CycleConfig struct {
	Source       Source
	CallTimeout  time.Duration
	DiagLimit    int
	DiagMaxChars int
	// Now defaults to time.Now.
	Now  func() time.Time
	Perf *performance.Tracker
}

// Report is the outcome of one cycle.
type Report struct {
	ID          string
	StartedAt   time.Time
	Duration    time.Duration
	Regions     int
	Cards       int
	Appended    int
	Duplicates  int
	Skipped     int
	Errors      int
	Alerts      int
	SkipReasons map[string]int
	Page        *browser.PageInfo
	Diagnostics []extractor.Artifact

	Browse    time.Duration
	Extract   time.Duration
	Ingest    time.Duration
	Recompute time.Duration
}

// Cycle runs one snapshot → extract → ingest → recompute pass.
type Cycle struct {
	page      Page
	extractor *extractor.Extractor
	engine    *Engine
	cfg       CycleConfig
}

// NewCycle wires a cycle. cfg.Now and cfg.Perf get defaults.
func NewCycle(page Page, ex *extractor.Extractor, engine *Engine, cfg CycleConfig) *Cycle {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Perf == nil {
		cfg.Perf = performance.GetTracker()
	}
	return &Cycle{page: page, extractor: ex, engine: engine, cfg: cfg}
}

func (c *Cycle) step(ctx context.Context, name string, fn func(context.Context) error) error {
	callCtx := ctx
	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(callCtx)
	c.cfg.Perf.RecordOperation(name, "page", time.Since(start), err)
	return err
}

// prepare loads the page and runs the best-effort preamble: consent banner,
// section tabs, settle, scroll.
func (c *Cycle) prepare(ctx context.Context) error {
	src := c.cfg.Source
	if err := c.step(ctx, "navigate", func(ctx context.Context) error {
		return c.page.Navigate(ctx, src.URL)
	}); err != nil {
		return err
	}

	for _, label := range src.ConsentLabels {
		var clicked bool
		err := c.step(ctx, "click", func(ctx context.Context) error {
			var err error
			clicked, err = c.page.ClickText(ctx, label, browser.MatchExact)
			return err
		})
		if err != nil {
			slog.Debug("Consent click failed", "label", label, "error", err)
			continue
		}
		if clicked {
			slog.Debug("Consent accepted", "label", label)
			break
		}
	}

	for _, tab := range src.Tabs {
		if err := c.step(ctx, "click", func(ctx context.Context) error {
			_, err := c.page.ClickText(ctx, tab, browser.MatchContains)
			return err
		}); err != nil {
			slog.Debug("Tab click failed", "tab", tab, "error", err)
		}
	}

	if src.Settle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(src.Settle):
		}
	}
	if src.Scroll > 0 {
		// Scrolling runs for its own duration, so it gets that on top of the call timeout.
		scrollCtx, cancel := context.WithTimeout(ctx, src.Scroll+c.cfg.CallTimeout)
		defer cancel()
		start := time.Now()
		err := c.page.Scroll(scrollCtx, src.Scroll)
		c.cfg.Perf.RecordOperation("scroll", "page", time.Since(start), err)
		if err != nil {
			slog.Debug("Scroll failed", "error", err)
		}
	}
	return nil
}

// Run executes one cycle. Per-card and recompute failures are counted and
// logged; only a page that cannot be loaded or read fails the cycle.
func (c *Cycle) Run(ctx context.Context, id string) (Report, error) {
	start := time.Now()
	rep := Report{ID: id, StartedAt: c.cfg.Now().UTC(), SkipReasons: map[string]int{}}
	log := slog.With("cycle_id", id)

	// Browse
	var regions []extractor.Region
	if err := c.prepare(ctx); err != nil {
		return c.finish(rep, start), fmt.Errorf("load page: %w", err)
	}
	if err := c.step(ctx, "regions", func(ctx context.Context) error {
		var err error
		regions, err = c.page.Regions(ctx)
		return err
	}); err != nil {
		return c.finish(rep, start), fmt.Errorf("read page regions: %w", err)
	}
	rep.Regions = len(regions)
	rep.Browse = time.Since(start)

	// Extract
	extractStart := time.Now()
	results, err := c.extractor.ExtractAll(ctx, regions)
	if err != nil {
		return c.finish(rep, start), err
	}
	rep.Extract = time.Since(extractStart)

	diag := extractor.NewDiagnostics(c.cfg.DiagLimit, c.cfg.DiagMaxChars)
	var outcomes []extractor.Outcome
	for i, res := range results {
		if res.Outcome != nil {
			outcomes = append(outcomes, *res.Outcome)
			continue
		}
		if !res.Paired {
			continue
		}
		rep.Skipped++
		rep.SkipReasons[string(res.Reason)]++
		if diag.Record(regions[i], res.Reason, rep.StartedAt) {
			log.Debug("DIAG card without deducible winner", "region", regions[i].Index, "reason", res.Reason)
		}
	}
	rep.Cards = len(outcomes)
	rep.Diagnostics = diag.Artifacts()

	if rep.Cards == 0 {
		log.Info("No cards with a final result and known names detected", "regions", rep.Regions)
		if diag.Enabled() {
			c.dumpPage(ctx, &rep)
		}
	}

	// Ingest, in page order
	ingestStart := time.Now()
	for i, o := range outcomes {
		ing, err := c.engine.Ingest(ctx, o, rep.StartedAt)
		if ing != nil {
			rep.Appended++
			rep.Alerts += len(ing.Alerts)
		}
		if err != nil {
			rep.Errors++
			log.Error("Card failed", "card", i, "matchup", o.MatchupID, "error", err)
			continue
		}
		if ing == nil {
			rep.Duplicates++
		}
	}
	rep.Ingest = time.Since(ingestStart)

	// Recompute
	recomputeStart := time.Now()
	if _, err := c.engine.Recompute(ctx); err != nil {
		rep.Errors++
		log.Error("Recompute failed", "error", err)
	}
	rep.Recompute = time.Since(recomputeStart)

	rep = c.finish(rep, start)
	log.Info("Cycle finished",
		"regions", rep.Regions, "cards", rep.Cards, "appended", rep.Appended,
		"duplicates", rep.Duplicates, "skipped", rep.Skipped, "errors", rep.Errors,
		"alerts", rep.Alerts, "duration", rep.Duration)
	return rep, nil
}

func (c *Cycle) finish(rep Report, start time.Time) Report {
	rep.Duration = time.Since(start)
	return rep
}

func (c *Cycle) dumpPage(ctx context.Context, rep *Report) {
	var info browser.PageInfo
	if err := c.step(ctx, "snapshot", func(ctx context.Context) error {
		var err error
		info, err = c.page.Snapshot(ctx)
		return err
	}); err != nil {
		slog.Debug("Page snapshot failed", "error", err)
		return
	}
	rep.Page = &info
	slog.Info("DIAG page dump", "cycle_id", rep.ID, "url", info.URL, "title", info.Title, "text_sample", info.TextSample)
}
