// Package status tracks the outcome of catalog sync runs in memory.
package status

import "time"

// SyncPhase represents the current phase of a synchronization run
type SyncPhase string

const (
	// SyncPhaseIdle means no run has happened yet
	SyncPhaseIdle SyncPhase = "Idle"

	// SyncPhaseSyncing means a run is currently in progress
	SyncPhaseSyncing SyncPhase = "Syncing"

	// SyncPhaseComplete means the last run replaced the catalog
	SyncPhaseComplete SyncPhase = "Complete"

	// SyncPhaseSkipped means the last run ended without touching the catalog
	SyncPhaseSkipped SyncPhase = "Skipped"

	// SyncPhaseFailed means the last run failed
	SyncPhaseFailed SyncPhase = "Failed"
)

// SyncStatus is a snapshot of the latest sync run
type SyncStatus struct {
	Phase   SyncPhase `json:"phase"`
	RunID   string    `json:"runId,omitempty"`
	Trigger string    `json:"trigger,omitempty"`

	// Message provides additional information about the run outcome
	Message string `json:"message,omitempty"`

	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`

	// LastSuccess is when the catalog was last replaced
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`

	Pages   int `json:"pages"`
	Kept    int `json:"kept"`
	Dropped int `json:"dropped"`
	Stored  int `json:"stored"`

	// Truncated is set when the run stopped at the page ceiling
	Truncated bool `json:"truncated,omitempty"`

	// SkippedTriggers counts triggers ignored because a run was in progress
	SkippedTriggers int `json:"skippedTriggers"`
}

// RunSummary is what a finished run reports to the tracker
type RunSummary struct {
	Phase     SyncPhase
	Message   string
	Pages     int
	Kept      int
	Dropped   int
	Stored    int
	Truncated bool
}
