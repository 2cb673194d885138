package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerCounts(t *testing.T) {
	tr := NewTracker("run-1", 5)

	tr.RowSucceeded(true)
	tr.RowSucceeded(false)
	tr.RowFailed()
	tr.DraftWritten()

	snap := tr.Snapshot()
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, 5, snap.Total)
	assert.Equal(t, 3, snap.Processed)
	assert.Equal(t, 2, snap.Succeeded)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 1, snap.Qualified)
	assert.Equal(t, 1, snap.Drafted)
}

func TestTrackerConcurrent(t *testing.T) {
	tr := NewTracker("run-1", 100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				tr.RowSucceeded(true)
			} else {
				tr.RowFailed()
			}
		}(i)
	}
	wg.Wait()

	snap := tr.Snapshot()
	assert.Equal(t, 100, snap.Processed)
	assert.Equal(t, 50, snap.Succeeded)
	assert.Equal(t, 50, snap.Failed)
	assert.Equal(t, 50, snap.Qualified)
}

func TestTrackerSubscribe(t *testing.T) {
	tr := NewTracker("run-1", 2)
	ch := tr.Subscribe()

	tr.RowSucceeded(true)
	snap := <-ch
	assert.Equal(t, 1, snap.Processed)

	// A second update with nobody reading must not block the worker.
	tr.RowSucceeded(false)
	tr.RowFailed()

	tr.Close()
	// Channel closes after Close; drain whatever is buffered.
	for range ch {
	}
}

func TestTrackerSubscribeAfterClose(t *testing.T) {
	tr := NewTracker("run-1", 1)
	tr.RowSucceeded(true)
	tr.Close()

	// A watcher that loses the startup race gets a closed channel instead
	// of blocking forever.
	ch := tr.Subscribe()
	_, ok := <-ch
	assert.False(t, ok)

	// Close is idempotent.
	tr.Close()
}
