package performance

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Tracker tracks performance metrics for poll cycles
type Tracker struct {
	mu sync.RWMutex

	// Overall metrics
	TotalCycles     int
	FailedCycles    int
	TotalRegions    int
	TotalResolved   int
	TotalAppended   int
	TotalDuplicates int
	TotalSkipped    int
	TotalErrors     int
	TotalAlerts     int

	// Timing metrics
	TotalDuration     time.Duration
	BrowseDuration    time.Duration
	ExtractDuration   time.Duration
	IngestDuration    time.Duration
	RecomputeDuration time.Duration

	// Per-cycle history, newest last
	Cycles []CycleTiming

	// Outbound operation metrics (sink, state, notifier)
	Operations []Operation

	maxHistory int
}

// CycleTiming is the record of one poll cycle
type CycleTiming struct {
	CycleID    string
	StartedAt  time.Time
	Regions    int
	Resolved   int
	Appended   int
	Duplicates int
	Skipped    int
	Errors     int
	Alerts     int

	Browse    time.Duration
	Extract   time.Duration
	Ingest    time.Duration
	Recompute time.Duration
	Total     time.Duration
	Success   bool
}

// Operation tracks a single outbound call
type Operation struct {
	Operation string // "append", "read", "clear_write", "mark_seen", "notify", ...
	Target    string
	Duration  time.Duration
	Success   bool
	Error     string
	Timestamp time.Time
}

const defaultMaxHistory = 1000

// NewTracker returns an empty tracker keeping at most maxHistory cycles and
// operations (0 means the default).
func NewTracker(maxHistory int) *Tracker {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &Tracker{
		Cycles:     make([]CycleTiming, 0, 64),
		Operations: make([]Operation, 0, 256),
		maxHistory: maxHistory,
	}
}

var globalTracker = NewTracker(defaultMaxHistory)

// GetTracker returns the global performance tracker
func GetTracker() *Tracker {
	return globalTracker
}

// Reset resets all metrics
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalCycles = 0
	t.FailedCycles = 0
	t.TotalRegions = 0
	t.TotalResolved = 0
	t.TotalAppended = 0
	t.TotalDuplicates = 0
	t.TotalSkipped = 0
	t.TotalErrors = 0
	t.TotalAlerts = 0
	t.TotalDuration = 0
	t.BrowseDuration = 0
	t.ExtractDuration = 0
	t.IngestDuration = 0
	t.RecomputeDuration = 0
	t.Cycles = t.Cycles[:0]
	t.Operations = t.Operations[:0]
}

// RecordCycle records a complete poll cycle
func (t *Tracker) RecordCycle(c CycleTiming) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalCycles++
	if !c.Success {
		t.FailedCycles++
	}
	t.TotalRegions += c.Regions
	t.TotalResolved += c.Resolved
	t.TotalAppended += c.Appended
	t.TotalDuplicates += c.Duplicates
	t.TotalSkipped += c.Skipped
	t.TotalErrors += c.Errors
	t.TotalAlerts += c.Alerts
	t.TotalDuration += c.Total
	t.BrowseDuration += c.Browse
	t.ExtractDuration += c.Extract
	t.IngestDuration += c.Ingest
	t.RecomputeDuration += c.Recompute

	t.Cycles = append(t.Cycles, c)
	if over := len(t.Cycles) - t.limit(); over > 0 {
		t.Cycles = append(t.Cycles[:0], t.Cycles[over:]...)
	}
}

// RecordOperation records a single outbound call
func (t *Tracker) RecordOperation(operation, target string, duration time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	errStr := ""
	if err != nil {
		errStr = err.Error()
	}

	t.Operations = append(t.Operations, Operation{
		Operation: operation,
		Target:    target,
		Duration:  duration,
		Success:   err == nil,
		Error:     errStr,
		Timestamp: time.Now(),
	})
	if over := len(t.Operations) - t.limit(); over > 0 {
		t.Operations = append(t.Operations[:0], t.Operations[over:]...)
	}
}

func (t *Tracker) limit() int {
	if t.maxHistory <= 0 {
		return defaultMaxHistory
	}
	return t.maxHistory
}

// PrintSummary logs a performance summary
func (t *Tracker) PrintSummary() {
	m := t.GetMetrics()
	if m.Overall.TotalCycles == 0 {
		slog.Info("No performance data collected yet")
		return
	}

	slog.Info("PERFORMANCE SUMMARY",
		"total_cycles", m.Overall.TotalCycles,
		"failed_cycles", m.Overall.FailedCycles,
		"regions", m.Overall.TotalRegions,
		"resolved", m.Overall.TotalResolved,
		"appended", m.Overall.TotalAppended,
		"duplicates", m.Overall.TotalDuplicates,
		"skipped", m.Overall.TotalSkipped,
		"errors", m.Overall.TotalErrors,
		"alerts", m.Overall.TotalAlerts)

	slog.Info("Timing Breakdown (average per cycle)",
		"browse", m.Timing.BrowseDuration, "browse_percent", m.Timing.BrowsePercent,
		"extract", m.Timing.ExtractDuration, "extract_percent", m.Timing.ExtractPercent,
		"ingest", m.Timing.IngestDuration, "ingest_percent", m.Timing.IngestPercent,
		"recompute", m.Timing.RecomputeDuration, "recompute_percent", m.Timing.RecomputePercent,
		"total", m.Timing.TotalDuration)

	for op, stat := range m.Operations {
		slog.Info("Operation", "operation", op, "count", stat.Count, "avg_time", stat.AvgTime, "success_rate", stat.SuccessRate)
	}
}

// OperationStats aggregates one operation kind
type OperationStats struct {
	Count       int     `json:"count"`
	AvgTime     string  `json:"avg_time"`
	SuccessRate float64 `json:"success_rate"`
}

// MetricsResponse represents the JSON response structure for /metrics endpoint
type MetricsResponse struct {
	Overall struct {
		TotalCycles     int `json:"total_cycles"`
		FailedCycles    int `json:"failed_cycles"`
		TotalRegions    int `json:"total_regions"`
		TotalResolved   int `json:"total_resolved"`
		TotalAppended   int `json:"total_appended"`
		TotalDuplicates int `json:"total_duplicates"`
		TotalSkipped    int `json:"total_skipped"`
		TotalErrors     int `json:"total_errors"`
		TotalAlerts     int `json:"total_alerts"`
	} `json:"overall"`

	Timing struct {
		TotalDuration     string `json:"total_duration"`
		BrowseDuration    string `json:"browse_duration"`
		ExtractDuration   string `json:"extract_duration"`
		IngestDuration    string `json:"ingest_duration"`
		RecomputeDuration string `json:"recompute_duration"`

		BrowsePercent    float64 `json:"browse_percent"`
		ExtractPercent   float64 `json:"extract_percent"`
		IngestPercent    float64 `json:"ingest_percent"`
		RecomputePercent float64 `json:"recompute_percent"`
	} `json:"timing"`

	LastCycle *struct {
		CycleID   string    `json:"cycle_id"`
		StartedAt time.Time `json:"started_at"`
		Duration  string    `json:"duration"`
		Appended  int       `json:"appended"`
		Skipped   int       `json:"skipped"`
		Errors    int       `json:"errors"`
		Success   bool      `json:"success"`
	} `json:"last_cycle,omitempty"`

	Operations map[string]OperationStats `json:"operations"`

	SlowestOperations []struct {
		Operation string `json:"operation"`
		Target    string `json:"target"`
		Duration  string `json:"duration"`
	} `json:"slowest_operations"`
}

// GetMetrics returns structured metrics for JSON API
func (t *Tracker) GetMetrics() MetricsResponse {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var resp MetricsResponse

	resp.Overall.TotalCycles = t.TotalCycles
	resp.Overall.FailedCycles = t.FailedCycles
	resp.Overall.TotalRegions = t.TotalRegions
	resp.Overall.TotalResolved = t.TotalResolved
	resp.Overall.TotalAppended = t.TotalAppended
	resp.Overall.TotalDuplicates = t.TotalDuplicates
	resp.Overall.TotalSkipped = t.TotalSkipped
	resp.Overall.TotalErrors = t.TotalErrors
	resp.Overall.TotalAlerts = t.TotalAlerts

	if t.TotalCycles > 0 {
		n := time.Duration(t.TotalCycles)
		resp.Timing.TotalDuration = (t.TotalDuration / n).String()
		resp.Timing.BrowseDuration = (t.BrowseDuration / n).String()
		resp.Timing.ExtractDuration = (t.ExtractDuration / n).String()
		resp.Timing.IngestDuration = (t.IngestDuration / n).String()
		resp.Timing.RecomputeDuration = (t.RecomputeDuration / n).String()

		if t.TotalDuration > 0 {
			total := float64(t.TotalDuration)
			resp.Timing.BrowsePercent = float64(t.BrowseDuration) / total * 100
			resp.Timing.ExtractPercent = float64(t.ExtractDuration) / total * 100
			resp.Timing.IngestPercent = float64(t.IngestDuration) / total * 100
			resp.Timing.RecomputePercent = float64(t.RecomputeDuration) / total * 100
		}
	}

	if len(t.Cycles) > 0 {
		last := t.Cycles[len(t.Cycles)-1]
		resp.LastCycle = &struct {
			CycleID   string    `json:"cycle_id"`
			StartedAt time.Time `json:"started_at"`
			Duration  string    `json:"duration"`
			Appended  int       `json:"appended"`
			Skipped   int       `json:"skipped"`
			Errors    int       `json:"errors"`
			Success   bool      `json:"success"`
		}{
			CycleID:   last.CycleID,
			StartedAt: last.StartedAt,
			Duration:  last.Total.String(),
			Appended:  last.Appended,
			Skipped:   last.Skipped,
			Errors:    last.Errors,
			Success:   last.Success,
		}
	}

	resp.Operations = make(map[string]OperationStats)
	if len(t.Operations) > 0 {
		opsByType := make(map[string]struct {
			count   int
			total   time.Duration
			success int
		})
		for _, op := range t.Operations {
			stat := opsByType[op.Operation]
			stat.count++
			stat.total += op.Duration
			if op.Success {
				stat.success++
			}
			opsByType[op.Operation] = stat
		}
		for opType, stat := range opsByType {
			resp.Operations[opType] = OperationStats{
				Count:       stat.count,
				AvgTime:     (stat.total / time.Duration(stat.count)).String(),
				SuccessRate: float64(stat.success) / float64(stat.count) * 100,
			}
		}

		// Top 5 slowest
		slowest := make([]Operation, len(t.Operations))
		copy(slowest, t.Operations)
		sort.SliceStable(slowest, func(i, j int) bool { return slowest[i].Duration > slowest[j].Duration })
		if len(slowest) > 5 {
			slowest = slowest[:5]
		}
		for _, op := range slowest {
			resp.SlowestOperations = append(resp.SlowestOperations, struct {
				Operation string `json:"operation"`
				Target    string `json:"target"`
				Duration  string `json:"duration"`
			}{
				Operation: op.Operation,
				Target:    op.Target,
				Duration:  op.Duration.String(),
			})
		}
	}

	return resp
}
