package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time view of run progress.
type Snapshot struct {
	RunID     string    `json:"run_id"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Qualified int       `json:"qualified"`
	Drafted   int       `json:"drafted"`
	StartedAt time.Time `json:"started_at"`
}

// Elapsed returns time since the run started.
func (s Snapshot) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}

// Tracker counts row outcomes as workers finish them. All methods are safe
// for concurrent use. Subscribers get a Snapshot after every finished row;
// a slow subscriber misses intermediate snapshots rather than blocking the
// workers.
type Tracker struct {
	runID     string
	total     int
	startedAt time.Time

	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	qualified atomic.Int64
	drafted   atomic.Int64

	mu     sync.Mutex
	subs   []chan Snapshot
	closed bool
}

// NewTracker creates a Tracker for a run over total rows.
func NewTracker(runID string, total int) *Tracker {
	return &Tracker{
		runID:     runID,
		total:     total,
		startedAt: time.Now().UTC(),
	}
}

// RowSucceeded records a classified row.
func (t *Tracker) RowSucceeded(qualified bool) {
	t.processed.Add(1)
	t.succeeded.Add(1)
	if qualified {
		t.qualified.Add(1)
	}
	t.notify()
}

// RowFailed records a row whose classification failed.
func (t *Tracker) RowFailed() {
	t.processed.Add(1)
	t.failed.Add(1)
	t.notify()
}

// DraftWritten records a persisted email draft.
func (t *Tracker) DraftWritten() {
	t.drafted.Add(1)
	t.notify()
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		RunID:     t.runID,
		Total:     t.total,
		Processed: int(t.processed.Load()),
		Succeeded: int(t.succeeded.Load()),
		Failed:    int(t.failed.Load()),
		Qualified: int(t.qualified.Load()),
		Drafted:   int(t.drafted.Load()),
		StartedAt: t.startedAt,
	}
}

// Subscribe returns a channel receiving snapshots as rows finish. The
// channel is closed by Close; subscribing after Close yields a channel
// that is already closed, so late watchers terminate instead of blocking.
func (t *Tracker) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		close(ch)
		return ch
	}
	t.subs = append(t.subs, ch)
	return ch
}

// Close closes all subscriber channels.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
}

func (t *Tracker) notify() {
	snap := t.Snapshot()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot, replace with the fresh one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
