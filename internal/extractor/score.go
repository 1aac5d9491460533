package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultScoreWhitelist lists the finishing set tallies accepted by the score
// detector. The first operand belongs to the name that appears first.
var DefaultScoreWhitelist = []string{"2-0", "0-2", "3-1", "1-3", "3-2", "2-3"}

var scoreRe = regexp.MustCompile(`\b(\d)\s?[-–]\s?(\d)\b`)

// ScoreDetector infers the winner from a finishing score in the region text.
type ScoreDetector struct {
	whitelist map[string]bool
}

// NewScoreDetector accepts only the scores in whitelist (DefaultScoreWhitelist
// when empty).
func NewScoreDetector(whitelist []string) *ScoreDetector {
	if len(whitelist) == 0 {
		whitelist = DefaultScoreWhitelist
	}
	wl := make(map[string]bool, len(whitelist))
	for _, s := range whitelist {
		wl[strings.TrimSpace(s)] = true
	}
	return &ScoreDetector{whitelist: wl}
}

func (d *ScoreDetector) Name() string { return "score" }

// Detect finds the whitelisted score in the text. Two different whitelisted
// scores in one region mean it spans several cards, so it is skipped.
func (d *ScoreDetector) Detect(r Region, p Pair) (Verdict, Reason) {
	var label string
	for _, m := range scoreRe.FindAllStringSubmatch(r.Text, -1) {
		candidate := m[1] + "-" + m[2]
		if !d.whitelist[candidate] {
			continue
		}
		if label != "" && label != candidate {
			return Verdict{}, ReasonAmbiguousScore
		}
		label = candidate
	}
	if label == "" {
		return Verdict{}, ReasonNoScore
	}

	winner, ok := WinnerFromScore(p, label)
	if !ok {
		return Verdict{}, ReasonEqualScore
	}
	return Verdict{Winner: winner, ScoreLabel: label}, ReasonNone
}

// WinnerFromScore binds the first operand to p.A and returns the side with
// the larger operand. Equal or malformed operands give no winner.
func WinnerFromScore(p Pair, label string) (string, bool) {
	left, right, found := strings.Cut(label, "-")
	if !found {
		return "", false
	}
	n1, err1 := strconv.Atoi(strings.TrimSpace(left))
	n2, err2 := strconv.Atoi(strings.TrimSpace(right))
	if err1 != nil || err2 != nil || n1 == n2 {
		return "", false
	}
	if n1 > n2 {
		return p.A, true
	}
	return p.B, true
}
