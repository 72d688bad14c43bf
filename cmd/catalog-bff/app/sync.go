package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/greenhouse-labs/catalog-bff/internal/app"
	"github.com/greenhouse-labs/catalog-bff/internal/sync/coordinator"
)

// errSyncSkipped is returned when another run holds the overlap guard
var errSyncSkipped = errors.New("sync skipped: another run is in progress")

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a single catalog sync and exit",
	Long: `Run one catalog sync against the configured upstream and store, then exit.
The command exits non-zero when the run fails. An empty upstream result leaves
the store untouched and is not a failure.`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	catalogApp, err := app.NewCatalogApp(ctx, app.WithConfig(cfg), app.WithRateLimit(0, 0))
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer catalogApp.Close()

	return runOnce(ctx, catalogApp.Components().SyncCoordinator)
}

func runOnce(ctx context.Context, c coordinator.Coordinator) error {
	result, syncErr, ran := c.RunOnce(ctx, coordinator.TriggerCLI)
	if !ran {
		return errSyncSkipped
	}
	if syncErr != nil {
		if syncErr.IsEmptyResult() {
			slog.Warn("Upstream returned no usable records, catalog left unchanged", "message", syncErr.Message)
			return nil
		}
		return fmt.Errorf("sync failed (%s): %w", syncErr.Reason, syncErr)
	}

	slog.Info("Sync finished",
		"pages", result.Pages,
		"kept", result.Kept,
		"dropped", result.Dropped,
		"stored", result.Stored,
		"rejected", result.Rejected,
		"truncated", result.Truncated,
	)
	return nil
}
