package extractor

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Region is one candidate block of the rendered page.
type Region struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	HTML  string `json:"html,omitempty"`
}

// Reason explains why a region produced no outcome.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonEmpty          Reason = "empty"
	ReasonNoKnownMatchup Reason = "no_known_matchup"
	ReasonNoScore        Reason = "no_score"
	ReasonAmbiguousScore Reason = "ambiguous_score"
	ReasonEqualScore     Reason = "equal_score"
	ReasonNoMarkup       Reason = "no_markup"
	ReasonNoMarker       Reason = "no_marker"
)

// Verdict is what a detector inferred about a paired region.
type Verdict struct {
	Winner     string
	ScoreLabel string
}

// Detector is one final-state detection strategy.
type Detector interface {
	Name() string
	Detect(r Region, p Pair) (Verdict, Reason)
}

// Outcome is a structured finalized result, before it gets a timestamp.
type Outcome struct {
	MatchupID  string `json:"matchup_id"`
	PlayerA    string `json:"player_a"`
	PlayerB    string `json:"player_b"`
	Winner     string `json:"winner"`
	Loser      string `json:"loser"`
	ScoreLabel string `json:"score_label"`
}

// Result is the extraction output for one region.
type Result struct {
	Region   int
	Outcome  *Outcome
	Detector string
	// Reason is set when Outcome is nil. For regions that did pair with a
	// matchup it is the last detector's reason.
	Reason Reason
	Paired bool
}

// Extractor runs the configured detectors over page regions.
type Extractor struct {
	catalog   *Catalog
	detectors []Detector
	workers   int
}

// New returns an extractor trying detectors in order. workers bounds the
// number of regions processed at once.
func New(catalog *Catalog, detectors []Detector, workers int) *Extractor {
	if workers < 1 {
		workers = 1
	}
	return &Extractor{catalog: catalog, detectors: detectors, workers: workers}
}

// DetectorsByName builds the detector list from configuration names.
func DetectorsByName(names []string, scoreWhitelist []string) ([]Detector, error) {
	if len(names) == 0 {
		names = []string{"score", "marker"}
	}
	out := make([]Detector, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "score":
			out = append(out, NewScoreDetector(scoreWhitelist))
		case "marker":
			out = append(out, NewMarkerDetector())
		default:
			return nil, fmt.Errorf("unknown detector %q (available: score, marker)", n)
		}
	}
	return out, nil
}

// Extract resolves a single region. It never fails: anything it cannot
// resolve comes back with a Reason.
func (e *Extractor) Extract(r Region) Result {
	res := Result{Region: r.Index}
	r.Text = strings.Join(strings.Fields(r.Text), " ")
	if r.Text == "" {
		res.Reason = ReasonEmpty
		return res
	}

	pair, ok := e.catalog.FindPair(r.Text)
	if !ok {
		res.Reason = ReasonNoKnownMatchup
		return res
	}
	res.Paired = true

	for _, d := range e.detectors {
		v, reason := d.Detect(r, pair)
		if reason != ReasonNone || v.Winner == "" {
			res.Reason = reason
			continue
		}
		res.Outcome = &Outcome{
			MatchupID:  pair.ID,
			PlayerA:    pair.A,
			PlayerB:    pair.B,
			Winner:     v.Winner,
			Loser:      pair.Other(v.Winner),
			ScoreLabel: v.ScoreLabel,
		}
		res.Detector = d.Name()
		res.Reason = ReasonNone
		return res
	}
	return res
}

// ExtractAll resolves regions concurrently. Results keep region order, so
// ingestion can follow page order.
func (e *Extractor) ExtractAll(ctx context.Context, regions []Region) ([]Result, error) {
	results := make([]Result, len(regions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, r := range regions {
		i, r := i, r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.Extract(r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract regions: %w", err)
	}
	return results, nil
}
