package coordinator

import (
	"context"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/greenhouse-labs/catalog-bff/internal/config"
	"github.com/greenhouse-labs/catalog-bff/internal/events"
	eventmocks "github.com/greenhouse-labs/catalog-bff/internal/events/mocks"
	"github.com/greenhouse-labs/catalog-bff/internal/status"
	pkgsync "github.com/greenhouse-labs/catalog-bff/internal/sync"
	lockmocks "github.com/greenhouse-labs/catalog-bff/internal/sync/lock/mocks"
	syncmocks "github.com/greenhouse-labs/catalog-bff/internal/sync/mocks"
)

func boolPtr(b bool) *bool { return &b }

func noStartupConfig() *config.SyncConfig {
	return &config.SyncConfig{RunOnStartup: boolPtr(false)}
}

var okResult = &pkgsync.Result{Pages: 3, Raw: 239, Kept: 237, Dropped: 2, Stored: 237}

// blockingRun makes PerformSync wait until release is closed or ctx ends
func blockingRun(entered chan<- struct{}, release <-chan struct{}) func(context.Context) (*pkgsync.Result, *pkgsync.Error) {
	return func(ctx context.Context) (*pkgsync.Result, *pkgsync.Error) {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-release:
			return okResult, nil
		case <-ctx.Done():
			return nil, &pkgsync.Error{Err: ctx.Err(), Message: "Sync cancelled", Reason: pkgsync.ReasonCancelled}
		}
	}
}

func waitIdle(t *testing.T, c Coordinator) {
	t.Helper()
	require.Eventually(t, func() bool { return !c.IsRunning() }, 5*time.Second, 5*time.Millisecond)
}

func TestCoordinator_Stop_BeforeStart(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	c := New(syncmocks.NewMockManager(ctrl), noStartupConfig())

	// Stop should not panic if called before Start, and is idempotent
	assert.NoError(t, c.Stop())
	assert.NoError(t, c.Stop())
	assert.False(t, c.TriggerSync(TriggerManual))
}

func TestTriggerSync_SecondTriggerIsNoOp(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	manager.EXPECT().PerformSync(gomock.Any()).DoAndReturn(blockingRun(entered, release)).Times(1)

	tracker := status.NewTracker()
	c := New(manager, noStartupConfig(), WithTracker(tracker))
	t.Cleanup(func() { _ = c.Stop() })

	require.True(t, c.TriggerSync(TriggerSchedule))
	<-entered
	assert.True(t, c.IsRunning())

	assert.False(t, c.TriggerSync(TriggerManual))
	_, _, ran := c.RunOnce(context.Background(), TriggerCLI)
	assert.False(t, ran)

	st := tracker.Status()
	assert.Equal(t, status.SyncPhaseSyncing, st.Phase)
	assert.Equal(t, 2, st.SkippedTriggers)

	close(release)
	waitIdle(t, c)

	st = tracker.Status()
	assert.Equal(t, status.SyncPhaseComplete, st.Phase)
	assert.Equal(t, TriggerSchedule, st.Trigger)
	assert.Equal(t, 237, st.Stored)
}

func TestTriggerSync_ConcurrentTriggersStartOneRun(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)

	release := make(chan struct{})
	manager.EXPECT().PerformSync(gomock.Any()).DoAndReturn(blockingRun(nil, release)).Times(1)

	c := New(manager, noStartupConfig())
	t.Cleanup(func() { _ = c.Stop() })

	var started atomic.Int32
	var wg gosync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TriggerSync(TriggerManual) {
				started.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, 49, c.Status().SkippedTriggers)

	close(release)
	waitIdle(t, c)

	// once idle a new trigger starts a new run
	manager.EXPECT().PerformSync(gomock.Any()).Return(okResult, nil)
	require.True(t, c.TriggerSync(TriggerManual))
	waitIdle(t, c)
}

func TestRunOnce_SuccessNotifies(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)
	notifier := eventmocks.NewMockNotifier(ctrl)

	manager.EXPECT().PerformSync(gomock.Any()).Return(okResult, nil)

	var published events.SyncedEvent
	notifier.EXPECT().NotifySynced(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e events.SyncedEvent) error {
		published = e
		return nil
	})

	c := New(manager, noStartupConfig(), WithNotifier(notifier))
	result, syncErr, ran := c.RunOnce(context.Background(), TriggerCLI)
	require.True(t, ran)
	require.Nil(t, syncErr)
	assert.Equal(t, okResult, result)

	st := c.Status()
	assert.Equal(t, status.SyncPhaseComplete, st.Phase)
	assert.Equal(t, st.RunID, published.RunID)
	assert.NotEmpty(t, published.RunID)
	assert.Equal(t, 237, published.Stored)
	assert.Equal(t, 2, published.Dropped)
	require.NotNil(t, st.LastSuccess)
	assert.False(t, c.IsRunning())
}

func TestRunOnce_NotifierFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)
	notifier := eventmocks.NewMockNotifier(ctrl)

	manager.EXPECT().PerformSync(gomock.Any()).Return(okResult, nil)
	notifier.EXPECT().NotifySynced(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	c := New(manager, noStartupConfig(), WithNotifier(notifier))
	_, syncErr, ran := c.RunOnce(context.Background(), TriggerCLI)
	require.True(t, ran)
	assert.Nil(t, syncErr)
	assert.Equal(t, status.SyncPhaseComplete, c.Status().Phase)
}

func TestRunOnce_FailureOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		syncErr   *pkgsync.Error
		wantPhase status.SyncPhase
		wantKept  int
	}{
		{
			name: "empty result is skipped",
			syncErr: &pkgsync.Error{
				Err: pkgsync.ErrEmptyResult, Message: "Sync skipped: upstream returned no usable records",
				Reason: pkgsync.ReasonEmptyResult, Partial: &pkgsync.Result{Pages: 1, Raw: 4, Dropped: 4},
			},
			wantPhase: status.SyncPhaseSkipped,
		},
		{
			name:      "fetch failure",
			syncErr:   &pkgsync.Error{Err: errors.New("502"), Message: "Failed to fetch catalog: 502", Reason: pkgsync.ReasonFetchFailed},
			wantPhase: status.SyncPhaseFailed,
		},
		{
			name: "store failure keeps download counters",
			syncErr: &pkgsync.Error{
				Err: errors.New("tx"), Message: "Failed to replace stored catalog: tx",
				Reason: pkgsync.ReasonStoreFailed, Partial: &pkgsync.Result{Pages: 2, Kept: 150},
			},
			wantPhase: status.SyncPhaseFailed,
			wantKept:  150,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			manager := syncmocks.NewMockManager(ctrl)
			notifier := eventmocks.NewMockNotifier(ctrl)
			manager.EXPECT().PerformSync(gomock.Any()).Return(nil, tt.syncErr)
			notifier.EXPECT().NotifySynced(gomock.Any(), gomock.Any()).Times(0)

			c := New(manager, noStartupConfig(), WithNotifier(notifier))
			_, syncErr, ran := c.RunOnce(context.Background(), TriggerCLI)
			require.True(t, ran)
			assert.Equal(t, tt.syncErr, syncErr)

			st := c.Status()
			assert.Equal(t, tt.wantPhase, st.Phase)
			assert.Equal(t, tt.syncErr.Message, st.Message)
			assert.Equal(t, tt.wantKept, st.Kept)
			assert.Nil(t, st.LastSuccess)
		})
	}
}

func TestRunOnce_DistributedLock(t *testing.T) {
	t.Parallel()

	t.Run("held by another replica", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		manager := syncmocks.NewMockManager(ctrl)
		locker := lockmocks.NewMockLocker(ctrl)

		locker.EXPECT().TryLock(gomock.Any()).Return("", false, nil)
		manager.EXPECT().PerformSync(gomock.Any()).Times(0)

		c := New(manager, noStartupConfig(), WithLocker(locker))
		_, _, ran := c.RunOnce(context.Background(), TriggerSchedule)
		assert.False(t, ran)
		assert.Equal(t, 1, c.Status().SkippedTriggers)
		assert.False(t, c.IsRunning())
	})

	t.Run("lock backend error", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		manager := syncmocks.NewMockManager(ctrl)
		locker := lockmocks.NewMockLocker(ctrl)

		locker.EXPECT().TryLock(gomock.Any()).Return("", false, errors.New("redis down"))
		manager.EXPECT().PerformSync(gomock.Any()).Times(0)

		c := New(manager, noStartupConfig(), WithLocker(locker))
		_, _, ran := c.RunOnce(context.Background(), TriggerSchedule)
		assert.False(t, ran)
	})

	t.Run("acquired lock is released with its token", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		manager := syncmocks.NewMockManager(ctrl)
		locker := lockmocks.NewMockLocker(ctrl)

		gomock.InOrder(
			locker.EXPECT().TryLock(gomock.Any()).Return("token-1", true, nil),
			manager.EXPECT().PerformSync(gomock.Any()).Return(nil, &pkgsync.Error{Message: "boom", Reason: pkgsync.ReasonFetchFailed}),
			locker.EXPECT().Unlock(gomock.Any(), "token-1").Return(nil),
		)

		c := New(manager, noStartupConfig(), WithLocker(locker))
		_, syncErr, ran := c.RunOnce(context.Background(), TriggerSchedule)
		assert.True(t, ran)
		require.NotNil(t, syncErr)
	})
}

func TestStop_CancelsInFlightRun(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)

	entered := make(chan struct{}, 1)
	var runErr atomic.Value
	manager.EXPECT().PerformSync(gomock.Any()).DoAndReturn(func(ctx context.Context) (*pkgsync.Result, *pkgsync.Error) {
		entered <- struct{}{}
		<-ctx.Done()
		runErr.Store(ctx.Err())
		return nil, &pkgsync.Error{Err: ctx.Err(), Message: "Sync cancelled", Reason: pkgsync.ReasonCancelled}
	})

	c := New(manager, noStartupConfig())
	require.True(t, c.TriggerSync(TriggerManual))
	<-entered

	require.NoError(t, c.Stop())
	assert.False(t, c.IsRunning())
	assert.ErrorIs(t, runErr.Load().(error), context.Canceled)
	assert.Equal(t, status.SyncPhaseFailed, c.Status().Phase)
}

func TestStop_CancelsAndWaitsForRunOnce(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)

	entered := make(chan struct{}, 1)
	manager.EXPECT().PerformSync(gomock.Any()).DoAndReturn(blockingRun(entered, nil))

	c := New(manager, noStartupConfig())

	type outcome struct {
		syncErr *pkgsync.Error
		ran     bool
	}
	done := make(chan outcome, 1)
	go func() {
		_, syncErr, ran := c.RunOnce(context.Background(), TriggerCLI)
		done <- outcome{syncErr: syncErr, ran: ran}
	}()
	<-entered

	require.NoError(t, c.Stop())

	// Stop returned, so the run must already have finished
	select {
	case got := <-done:
		assert.True(t, got.ran)
		require.NotNil(t, got.syncErr)
		assert.Equal(t, pkgsync.ReasonCancelled, got.syncErr.Reason)
		assert.ErrorIs(t, got.syncErr, context.Canceled)
	default:
		t.Fatal("Stop returned before RunOnce finished")
	}
	assert.False(t, c.IsRunning())
}

func TestRunOnce_AfterStopIsNoOp(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	c := New(syncmocks.NewMockManager(ctrl), noStartupConfig())
	require.NoError(t, c.Stop())

	result, syncErr, ran := c.RunOnce(context.Background(), TriggerCLI)
	assert.False(t, ran)
	assert.Nil(t, result)
	assert.Nil(t, syncErr)
}

func TestRun_TimeoutBoundsRun(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)

	manager.EXPECT().PerformSync(gomock.Any()).DoAndReturn(func(ctx context.Context) (*pkgsync.Result, *pkgsync.Error) {
		<-ctx.Done()
		return nil, &pkgsync.Error{Err: ctx.Err(), Message: "Sync cancelled", Reason: pkgsync.ReasonCancelled}
	})

	cfg := noStartupConfig()
	cfg.Timeout = "50ms"
	c := New(manager, cfg)

	_, syncErr, ran := c.RunOnce(context.Background(), TriggerCLI)
	require.True(t, ran)
	require.NotNil(t, syncErr)
	assert.ErrorIs(t, syncErr, context.DeadlineExceeded)
}

func TestStart_RunsOnStartup(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)

	done := make(chan struct{})
	manager.EXPECT().PerformSync(gomock.Any()).DoAndReturn(func(context.Context) (*pkgsync.Result, *pkgsync.Error) {
		close(done)
		return okResult, nil
	})

	c := New(manager, &config.SyncConfig{Schedule: "0 3 * * *"})
	ctx, cancel := context.WithCancel(context.Background())

	startErr := make(chan error, 1)
	go func() { startErr <- c.Start(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("startup run did not happen")
	}

	cancel()
	require.NoError(t, <-startErr)
	require.NoError(t, c.Stop())
	assert.Equal(t, TriggerStartup, c.Status().Trigger)
}

func TestStart_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid schedule", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		c := New(syncmocks.NewMockManager(ctrl), &config.SyncConfig{Schedule: "every day", RunOnStartup: boolPtr(false)})
		err := c.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid sync schedule")
	})

	t.Run("second start", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		c := New(syncmocks.NewMockManager(ctrl), noStartupConfig())

		go func() { _ = c.Start(context.Background()) }()
		require.Eventually(t, func() bool {
			return c.(*defaultCoordinator).started.Load()
		}, time.Second, 5*time.Millisecond)

		assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyStarted)
		require.NoError(t, c.Stop())
	})
}

func TestSettingsFrom(t *testing.T) {
	t.Parallel()

	s := settingsFrom(nil)
	assert.Equal(t, "0 3 * * *", s.schedule)
	assert.True(t, s.runOnStartup)
	assert.Equal(t, 15*time.Minute, s.timeout)

	s = settingsFrom(&config.SyncConfig{Schedule: "*/5 * * * *", RunOnStartup: boolPtr(false), Timeout: "2m"})
	assert.Equal(t, "*/5 * * * *", s.schedule)
	assert.False(t, s.runOnStartup)
	assert.Equal(t, 2*time.Minute, s.timeout)
}
