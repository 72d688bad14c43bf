// Package coordinator schedules catalog sync runs and guarantees that at most
// one run is in flight.
//
// Runs are triggered once at startup, on a cron schedule, manually through
// TriggerSync, or synchronously through RunOnce. The coordinator is a two-state
// machine (Idle and Running) switched with an atomic compare-and-swap: a
// trigger that finds it Running is skipped and counted, never queued.
//
// When a Locker is configured the run additionally needs the shared lock, so
// replicas of the service do not replace the catalog concurrently. A Notifier,
// when configured, is told about every run that replaced the catalog.
//
// Usage:
//
//	coord := coordinator.New(manager, &cfg.Sync,
//	    coordinator.WithTracker(tracker),
//	    coordinator.WithSyncMetrics(metrics),
//	)
//	go func() { _ = coord.Start(ctx) }()
//	defer coord.Stop()
package coordinator
