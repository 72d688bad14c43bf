package status

import (
	"sync"
	"time"
)

// Tracker holds the latest SyncStatus. It is safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	status SyncStatus
	now    func() time.Time
}

// NewTracker creates a Tracker in the Idle phase
func NewTracker() *Tracker {
	return &Tracker{
		status: SyncStatus{Phase: SyncPhaseIdle},
		now:    time.Now,
	}
}

// Start records the beginning of a run
func (t *Tracker) Start(runID, trigger string) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = SyncStatus{
		Phase:           SyncPhaseSyncing,
		RunID:           runID,
		Trigger:         trigger,
		Message:         "Sync in progress",
		StartedAt:       &now,
		LastSuccess:     t.status.LastSuccess,
		SkippedTriggers: t.status.SkippedTriggers,
	}
}

// Finish records the outcome of the current run
func (t *Tracker) Finish(summary RunSummary) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.Phase = summary.Phase
	t.status.Message = summary.Message
	t.status.FinishedAt = &now
	t.status.Pages = summary.Pages
	t.status.Kept = summary.Kept
	t.status.Dropped = summary.Dropped
	t.status.Stored = summary.Stored
	t.status.Truncated = summary.Truncated
	if summary.Phase == SyncPhaseComplete {
		t.status.LastSuccess = &now
	}
}

// Skip counts a trigger ignored by the overlap guard
func (t *Tracker) Skip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.SkippedTriggers++
}

// Status returns a copy of the latest status
func (t *Tracker) Status() SyncStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
