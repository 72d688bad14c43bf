package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenhouse-labs/catalog-bff/internal/events"
	"github.com/greenhouse-labs/catalog-bff/internal/otel"
	"github.com/greenhouse-labs/catalog-bff/internal/status"
	pkgsync "github.com/greenhouse-labs/catalog-bff/internal/sync"
)

// unlockTimeout bounds the lock release after a run, which must happen even
// when the run context was cancelled
const unlockTimeout = 5 * time.Second

// run executes one sync run. The caller holds the Running state.
func (c *defaultCoordinator) run(ctx context.Context, trigger string) (*pkgsync.Result, *pkgsync.Error, bool) {
	if c.locker != nil {
		token, acquired, err := c.locker.TryLock(ctx)
		if err != nil {
			slog.Error("Failed to acquire sync lock, skipping run", "trigger", trigger, "error", err)
			return nil, nil, false
		}
		if !acquired {
			slog.Info("Sync lock held by another replica, skipping run", "trigger", trigger)
			c.tracker.Skip()
			c.metrics.RecordSkipped(ctx, trigger)
			return nil, nil, false
		}
		defer func() {
			unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
			defer cancel()
			if err := c.locker.Unlock(unlockCtx, token); err != nil {
				slog.Warn("Failed to release sync lock", "error", err)
			}
		}()
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithTimeout(ctx, c.settings.timeout)
	defer cancel()

	runCtx, span := otel.StartSpan(runCtx, c.tracer, "sync.Run",
		trace.WithAttributes(otel.AttrRunID.String(runID), otel.AttrTrigger.String(trigger)))
	defer span.End()

	logger := slog.With("run_id", runID, "trigger", trigger)
	logger.Info("Starting catalog sync")
	c.tracker.Start(runID, trigger)
	startTime := c.now()

	// Record a failure if PerformSync panics so the status never stays Syncing
	summary := status.RunSummary{Phase: status.SyncPhaseFailed, Message: "Unexpected failure during sync"}
	defer func() { c.tracker.Finish(summary) }()

	result, syncErr := c.manager.PerformSync(runCtx)
	duration := c.now().Sub(startTime)
	c.metrics.RecordSyncDuration(ctx, duration, syncErr == nil)

	if syncErr != nil {
		otel.RecordError(span, syncErr)
		summary = failureSummary(syncErr)
		if syncErr.IsEmptyResult() {
			logger.Warn("Catalog sync skipped, stored catalog unchanged", "duration", duration, "reason", syncErr.Reason)
		} else {
			logger.Error("Catalog sync failed", "duration", duration, "reason", syncErr.Reason, "error", syncErr.Message)
		}
		return nil, syncErr, true
	}

	summary = status.RunSummary{
		Phase:     status.SyncPhaseComplete,
		Message:   "Sync completed successfully",
		Pages:     result.Pages,
		Kept:      result.Kept,
		Dropped:   result.Dropped,
		Stored:    result.Stored,
		Truncated: result.Truncated,
	}
	logger.Info("Catalog sync completed",
		"duration", duration,
		"pages", result.Pages,
		"kept", result.Kept,
		"dropped", result.Dropped,
		"stored", result.Stored,
		"rejected", result.Rejected,
		"truncated", result.Truncated,
	)

	if c.notifier != nil {
		event := events.SyncedEvent{RunID: runID, Stored: result.Stored, Dropped: result.Dropped, FinishedAt: c.now().UTC()}
		if err := c.notifier.NotifySynced(context.WithoutCancel(runCtx), event); err != nil {
			logger.Warn("Failed to publish sync event", "error", err)
		}
	}

	return result, nil, true
}

func failureSummary(syncErr *pkgsync.Error) status.RunSummary {
	summary := status.RunSummary{Phase: status.SyncPhaseFailed, Message: syncErr.Message}
	if syncErr.IsEmptyResult() {
		summary.Phase = status.SyncPhaseSkipped
	}
	if p := syncErr.Partial; p != nil {
		summary.Pages = p.Pages
		summary.Kept = p.Kept
		summary.Dropped = p.Dropped
		summary.Truncated = p.Truncated
	}
	return summary
}
