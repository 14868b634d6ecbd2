package downloader

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerVisibilityLifecycle(t *testing.T) {
	tracker := NewTracker(2)

	h := tracker.NewTask("Episode 1/2")
	assert.Empty(t, tracker.Snapshot().Tasks, "tasks start hidden until their worker begins I/O")

	tracker.Begin(h)
	tracker.Update(h, 40)

	snap := tracker.Snapshot()
	require.Len(t, snap.Tasks, 1)
	assert.Equal(t, "Episode 1/2", snap.Tasks[0].Label)
	assert.Equal(t, 40.0, snap.Tasks[0].Percent)
	assert.Zero(t, snap.Completed)

	tracker.Complete(h)
	snap = tracker.Snapshot()
	assert.Empty(t, snap.Tasks, "completed tasks are hidden again")
	assert.Equal(t, 1, snap.Completed)
}

func TestTrackerFailDoesNotAdvance(t *testing.T) {
	tracker := NewTracker(1)
	h := tracker.NewTask("Episode 1/1")
	tracker.Begin(h)
	tracker.Fail(h)

	snap := tracker.Snapshot()
	assert.Empty(t, snap.Tasks)
	assert.Zero(t, snap.Completed)
}

func TestTrackerOverallNeverExceedsTotal(t *testing.T) {
	const total = 5
	tracker := NewTracker(total)

	// More completions than the declared total, all racing.
	var wg sync.WaitGroup
	for i := 0; i < total+3; i++ {
		h := tracker.NewTask(fmt.Sprintf("Episode %d", i+1))
		wg.Add(1)
		go func(h Handle) {
			defer wg.Done()
			tracker.Begin(h)
			tracker.Update(h, 100)
			tracker.Complete(h)
		}(h)
	}
	wg.Wait()

	assert.Equal(t, total, tracker.Snapshot().Completed)
}

func TestTrackerConcurrentUpdates(t *testing.T) {
	tracker := NewTracker(8)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		h := tracker.NewTask(fmt.Sprintf("Episode %d/8", i+1))
		wg.Add(1)
		go func(h Handle) {
			defer wg.Done()
			tracker.Begin(h)
			for pct := 0; pct <= 100; pct += 5 {
				tracker.Update(h, float64(pct))
				tracker.AddBytes(1024)
			}
			tracker.Complete(h)
		}(h)
	}
	wg.Wait()

	snap := tracker.Snapshot()
	assert.Equal(t, 8, snap.Completed)
	assert.Equal(t, uint64(8*21*1024), snap.Bytes)
	assert.Empty(t, snap.Tasks)
}
