package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenhouse-labs/catalog-bff/internal/config"
	"github.com/greenhouse-labs/catalog-bff/internal/events"
	"github.com/greenhouse-labs/catalog-bff/internal/otel"
	"github.com/greenhouse-labs/catalog-bff/internal/status"
	pkgsync "github.com/greenhouse-labs/catalog-bff/internal/sync"
	"github.com/greenhouse-labs/catalog-bff/internal/sync/lock"
	"github.com/greenhouse-labs/catalog-bff/internal/telemetry"
)

// Trigger names reported in logs, spans and status
const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

const (
	stateIdle int32 = iota
	stateRunning
)

// ErrAlreadyStarted is returned by a second call to Start
var ErrAlreadyStarted = errors.New("coordinator already started")

// Coordinator manages background catalog sync scheduling and execution
type Coordinator interface {
	// Start registers the schedule, fires the startup run when enabled and
	// blocks until ctx is cancelled or Stop is called
	Start(ctx context.Context) error

	// Stop cancels any in-flight run and waits for it to return
	Stop() error

	// TriggerSync starts a run in the background. It returns false when a
	// run is already in progress or the coordinator is stopped.
	TriggerSync(trigger string) bool

	// RunOnce performs a run synchronously. ran is false when the run was
	// skipped by the overlap guard, the shared lock or a stopped coordinator.
	// Stop cancels the run and waits for it.
	RunOnce(ctx context.Context, trigger string) (result *pkgsync.Result, syncErr *pkgsync.Error, ran bool)

	// IsRunning reports whether a run is in progress
	IsRunning() bool

	// Status returns the latest run status
	Status() status.SyncStatus
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager  pkgsync.Manager
	settings settings

	state atomic.Int32

	cron    *cron.Cron
	started atomic.Bool

	// Lifecycle management
	ctx      context.Context
	cancel   context.CancelFunc
	mu       gosync.Mutex
	stopped  bool
	inflight gosync.WaitGroup
	stopOnce gosync.Once

	tracker  *status.Tracker
	locker   lock.Locker
	notifier events.Notifier
	metrics  *telemetry.SyncMetrics
	tracer   trace.Tracer
	now      func() time.Time
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithTracker sets the status tracker updated by every run
func WithTracker(tracker *status.Tracker) Option {
	return func(c *defaultCoordinator) {
		if tracker != nil {
			c.tracker = tracker
		}
	}
}

// WithLocker requires the shared lock for every run
func WithLocker(locker lock.Locker) Option {
	return func(c *defaultCoordinator) {
		c.locker = locker
	}
}

// WithNotifier publishes an event after every run that replaced the catalog
func WithNotifier(notifier events.Notifier) Option {
	return func(c *defaultCoordinator) {
		c.notifier = notifier
	}
}

// WithSyncMetrics sets the sync metrics for the coordinator
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *defaultCoordinator) {
		c.metrics = metrics
	}
}

// WithTracer sets the tracer for run spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *defaultCoordinator) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// New creates a new coordinator with injected dependencies
func New(manager pkgsync.Manager, cfg *config.SyncConfig, opts ...Option) Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &defaultCoordinator{
		manager:  manager,
		settings: settingsFrom(cfg),
		cron:     cron.New(),
		ctx:      ctx,
		cancel:   cancel,
		tracker:  status.NewTracker(),
		tracer:   otel.Tracer(nil),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins background sync coordination
func (c *defaultCoordinator) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	if _, err := c.cron.AddFunc(c.settings.schedule, func() { c.TriggerSync(TriggerSchedule) }); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", c.settings.schedule, err)
	}
	c.cron.Start()

	slog.Info("Starting background sync coordinator",
		"schedule", c.settings.schedule,
		"run_on_startup", c.settings.runOnStartup,
		"timeout", c.settings.timeout,
		"distributed_lock", c.locker != nil,
	)

	if c.settings.runOnStartup {
		c.TriggerSync(TriggerStartup)
	}

	select {
	case <-ctx.Done():
		slog.Info("Sync coordinator context done")
		c.cancel()
	case <-c.ctx.Done():
	}
	return nil
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.stopOnce.Do(func() {
		slog.Info("Stopping sync coordinator")

		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()

		c.cancel()
		<-c.cron.Stop().Done()
		c.inflight.Wait()

		slog.Info("Background sync coordinator shut down")
	})
	return nil
}

// TriggerSync starts a run in the background unless one is in progress
func (c *defaultCoordinator) TriggerSync(trigger string) bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		slog.Debug("Ignoring sync trigger on stopped coordinator", "trigger", trigger)
		return false
	}
	if !c.acquire(trigger) {
		c.mu.Unlock()
		return false
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		defer c.release()
		c.run(c.ctx, trigger)
	}()
	return true
}

// RunOnce performs a run in the calling goroutine. The run ends when either
// ctx is cancelled or Stop is called, and Stop waits for it to return.
func (c *defaultCoordinator) RunOnce(ctx context.Context, trigger string) (*pkgsync.Result, *pkgsync.Error, bool) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		slog.Debug("Ignoring sync run on stopped coordinator", "trigger", trigger)
		return nil, nil, false
	}
	if !c.acquire(trigger) {
		c.mu.Unlock()
		return nil, nil, false
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()
	defer c.release()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := context.AfterFunc(c.ctx, cancel)
	defer stopWatch()

	return c.run(runCtx, trigger)
}

// IsRunning reports whether a run is in progress
func (c *defaultCoordinator) IsRunning() bool {
	return c.state.Load() == stateRunning
}

// Status returns the latest run status
func (c *defaultCoordinator) Status() status.SyncStatus {
	return c.tracker.Status()
}

// acquire switches Idle to Running. A trigger that loses the swap is skipped.
func (c *defaultCoordinator) acquire(trigger string) bool {
	if c.state.CompareAndSwap(stateIdle, stateRunning) {
		return true
	}
	slog.Info("Sync already in progress, skipping trigger", "trigger", trigger)
	c.tracker.Skip()
	c.metrics.RecordSkipped(context.Background(), trigger)
	return false
}

func (c *defaultCoordinator) release() {
	c.state.Store(stateIdle)
}
