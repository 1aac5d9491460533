package extractor

import (
	"sync"
	"time"
)

// DefaultDiagMaxChars truncates captured text and markup.
const DefaultDiagMaxChars = 1400

// Artifact is a raw snapshot of a region that paired with a matchup but could
// not be resolved.
type Artifact struct {
	Region int       `json:"region"`
	Reason Reason    `json:"reason"`
	Text   string    `json:"text"`
	HTML   string    `json:"html,omitempty"`
	At     time.Time `json:"at"`
}

// Diagnostics keeps at most limit artifacts per cycle.
type Diagnostics struct {
	mu       sync.Mutex
	limit    int
	maxChars int
	items    []Artifact
	dropped  int
}

// NewDiagnostics returns a recorder; limit 0 disables capture.
func NewDiagnostics(limit, maxChars int) *Diagnostics {
	if maxChars <= 0 {
		maxChars = DefaultDiagMaxChars
	}
	return &Diagnostics{limit: limit, maxChars: maxChars}
}

// Record captures r unless the cycle budget is spent. It reports whether the
// artifact was kept.
func (d *Diagnostics) Record(r Region, reason Reason, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) >= d.limit {
		d.dropped++
		return false
	}
	d.items = append(d.items, Artifact{
		Region: r.Index,
		Reason: reason,
		Text:   truncate(r.Text, d.maxChars),
		HTML:   truncate(r.HTML, d.maxChars),
		At:     now,
	})
	return true
}

// Artifacts returns a copy of what was captured.
func (d *Diagnostics) Artifacts() []Artifact {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Artifact(nil), d.items...)
}

// Dropped counts artifacts refused because the budget was spent.
func (d *Diagnostics) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Enabled reports whether anything can be captured at all.
func (d *Diagnostics) Enabled() bool {
	return d != nil && d.limit > 0
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
