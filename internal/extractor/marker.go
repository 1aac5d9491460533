package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const trophyGlyph = "🏆"

// MarkerHeuristic inspects a region's markup and returns the raw label of
// the winner, or "" when it sees nothing.
type MarkerHeuristic struct {
	Name string
	Find func(doc *goquery.Document, p Pair) string
}

// DefaultMarkerHeuristics is the order structural markers are tried in.
var DefaultMarkerHeuristics = []MarkerHeuristic{
	{Name: "winner-class", Find: findWinnerClass},
	{Name: "disabled-odds", Find: findEnabledOdds},
	{Name: "trophy", Find: findTrophy},
}

// MarkerDetector infers the winner from structural hints in the region
// markup when no finishing score is rendered.
type MarkerDetector struct {
	heuristics []MarkerHeuristic
}

// NewMarkerDetector uses DefaultMarkerHeuristics when none are given.
func NewMarkerDetector(heuristics ...MarkerHeuristic) *MarkerDetector {
	if len(heuristics) == 0 {
		heuristics = DefaultMarkerHeuristics
	}
	return &MarkerDetector{heuristics: heuristics}
}

func (d *MarkerDetector) Name() string { return "marker" }

// Detect runs the heuristics in order; the first label that names exactly one
// side of the pair wins.
func (d *MarkerDetector) Detect(r Region, p Pair) (Verdict, Reason) {
	if strings.TrimSpace(r.HTML) == "" {
		return Verdict{}, ReasonNoMarkup
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.HTML))
	if err != nil {
		return Verdict{}, ReasonNoMarkup
	}

	for _, h := range d.heuristics {
		label := h.Find(doc, p)
		if label == "" {
			continue
		}
		if winner := p.Side(label); winner != "" {
			return Verdict{Winner: winner, ScoreLabel: "marker:" + h.Name}, ReasonNone
		}
	}
	return Verdict{}, ReasonNoMarker
}

func findWinnerClass(doc *goquery.Document, p Pair) string {
	sel := doc.Find(`[class*="winner"], [class*="Winner"], [data-winner], ` +
		`[data-result="win"], [data-result="winner"], [data-result="won"]`)

	var label string
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("data-winner"); ok && p.Side(v) != "" {
			label = v
			return false
		}
		if t := s.Text(); p.Side(t) != "" {
			label = t
			return false
		}
		return true
	})
	return label
}

func findEnabledOdds(doc *goquery.Document, p Pair) string {
	enabled := map[string]bool{}
	disabled := map[string]bool{}

	doc.Find(`button, [role="button"], [class*="odd"], [class*="outcome"]`).Each(func(_ int, s *goquery.Selection) {
		side := p.Side(caption(s))
		if side == "" {
			return
		}
		if isDisabled(s) {
			disabled[side] = true
		} else {
			enabled[side] = true
		}
	})

	if len(enabled) != 1 {
		return ""
	}
	for side := range enabled {
		if disabled[p.Other(side)] {
			return side
		}
	}
	return ""
}

func findTrophy(doc *goquery.Document, p Pair) string {
	icons := doc.Find(`[class*="trophy"], [class*="Trophy"], [alt*="trophy"], [title*="trophy"], [aria-label*="trophy"]`)
	icons = icons.AddSelection(doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(ownText(s), trophyGlyph)
	}))

	var label string
	icons.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		// Walk up until some ancestor names a player; stop as soon as
		// one names both, since that is the whole card.
		for cur, depth := s, 0; cur.Length() > 0 && depth < 5; cur, depth = cur.Parent(), depth+1 {
			inA, inB := p.presence(cur.Text())
			if inA != inB {
				label = p.A
				if inB {
					label = p.B
				}
				return false
			}
			if inA && inB {
				return true
			}
		}
		return true
	})
	return label
}

func caption(s *goquery.Selection) string {
	parts := []string{s.Text()}
	for _, attr := range []string{"title", "aria-label", "data-name"} {
		if v, ok := s.Attr(attr); ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func isDisabled(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return true
	}
	if v, _ := s.Attr("aria-disabled"); v == "true" {
		return true
	}
	class, _ := s.Attr("class")
	class = strings.ToLower(class)
	for _, marker := range []string{"disabled", "locked", "suspended", "blocked"} {
		if strings.Contains(class, marker) {
			return true
		}
	}
	return false
}

func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			b.WriteString(c.Text())
		}
	})
	return b.String()
}
