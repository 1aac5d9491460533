package performance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RecordCycle(t *testing.T) {
	tr := NewTracker(2)

	tr.RecordCycle(CycleTiming{CycleID: "c1", Regions: 10, Appended: 2, Total: 2 * time.Second, Browse: time.Second, Success: true})
	tr.RecordCycle(CycleTiming{CycleID: "c2", Regions: 20, Skipped: 3, Errors: 1, Total: 4 * time.Second, Browse: time.Second, Success: false})
	tr.RecordCycle(CycleTiming{CycleID: "c3", Regions: 30, Alerts: 1, Total: 3 * time.Second, Success: true})

	m := tr.GetMetrics()
	assert.Equal(t, 3, m.Overall.TotalCycles)
	assert.Equal(t, 1, m.Overall.FailedCycles)
	assert.Equal(t, 60, m.Overall.TotalRegions)
	assert.Equal(t, 1, m.Overall.TotalAlerts)
	assert.Equal(t, "3s", m.Timing.TotalDuration)
	assert.InDelta(t, 2.0/9.0*100, m.Timing.BrowsePercent, 0.001)

	require.NotNil(t, m.LastCycle)
	assert.Equal(t, "c3", m.LastCycle.CycleID)
	assert.Len(t, tr.Cycles, 2, "history is bounded")
}

func TestTracker_Operations(t *testing.T) {
	tr := NewTracker(0)
	for i := 1; i <= 7; i++ {
		var err error
		if i%2 == 0 {
			err = errors.New("timeout")
		}
		tr.RecordOperation("append", "Results", time.Duration(i)*time.Millisecond, err)
	}
	tr.RecordOperation("notify", "webhook", 50*time.Millisecond, nil)

	m := tr.GetMetrics()
	assert.Equal(t, 7, m.Operations["append"].Count)
	assert.InDelta(t, 4.0/7.0*100, m.Operations["append"].SuccessRate, 0.001)
	require.Len(t, m.SlowestOperations, 5)
	assert.Equal(t, "notify", m.SlowestOperations[0].Operation)

	tr.Reset()
	assert.Zero(t, tr.GetMetrics().Overall.TotalCycles)
	assert.Empty(t, tr.GetMetrics().Operations)
}
