package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/greenhouse-labs/catalog-bff/internal/app"
	"github.com/greenhouse-labs/catalog-bff/internal/telemetry"
	"github.com/greenhouse-labs/catalog-bff/internal/versions"
)

const defaultGracefulTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog API server and the sync scheduler",
	Long: `Start the catalog API server. The scheduler mirrors the upstream catalog
into the configured store at the configured cron schedule, and once at
startup unless sync.runOnStartup is false.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("address", ":8080", "Address to listen on")
	serveCmd.Flags().Float64("rate-limit", 20, "Requests per second allowed per client IP (0 disables)")
	serveCmd.Flags().Int("rate-burst", 40, "Burst size of the per-client rate limit")

	for _, name := range []string{"address", "rate-limit", "rate-burst"} {
		if err := viper.BindPFlag(name, serveCmd.Flags().Lookup(name)); err != nil {
			slog.Error("Failed to bind flag", "flag", name, "error", err)
			os.Exit(1)
		}
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry, versions.GetVersionInfo().Version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	catalogApp, err := app.NewCatalogApp(ctx,
		app.WithConfig(cfg),
		app.WithAddress(viper.GetString("address")),
		app.WithRateLimit(viper.GetFloat64("rate-limit"), viper.GetInt("rate-burst")),
		app.WithMeterProvider(tel.MeterProvider()),
		app.WithTracerProvider(tel.TracerProvider()),
		app.WithMetricsHandler(tel.MetricsHandler()),
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- catalogApp.Start()
	}()

	select {
	case err := <-errCh:
		catalogApp.Close()
		return err
	case <-ctx.Done():
	}

	return catalogApp.Stop(defaultGracefulTimeout)
}
