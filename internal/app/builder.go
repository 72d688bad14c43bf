package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenhouse-labs/catalog-bff/internal/api"
	"github.com/greenhouse-labs/catalog-bff/internal/auth"
	"github.com/greenhouse-labs/catalog-bff/internal/config"
	"github.com/greenhouse-labs/catalog-bff/internal/httpclient"
	"github.com/greenhouse-labs/catalog-bff/internal/otel"
	"github.com/greenhouse-labs/catalog-bff/internal/status"
	"github.com/greenhouse-labs/catalog-bff/internal/store"
	pkgsync "github.com/greenhouse-labs/catalog-bff/internal/sync"
	"github.com/greenhouse-labs/catalog-bff/internal/sync/coordinator"
	"github.com/greenhouse-labs/catalog-bff/internal/telemetry"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultRateLimitRPS   = 20
	defaultRateLimitBurst = 40
)

// CatalogAppOptions is a function that configures the catalog app builder
type CatalogAppOptions func(*catalogAppConfig) error

// catalogAppConfig collects the builder inputs. Component overrides exist
// mainly for tests; production builds everything from config.
type catalogAppConfig struct {
	config *config.Config

	// Optional component overrides
	store       store.Store
	syncManager pkgsync.Manager
	upstream    httpclient.Client

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
	rateLimitRPS   float64
	rateLimitBurst int

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	metricsHandler http.Handler

	closers []func()
}

func baseConfig(opts ...CatalogAppOptions) (*catalogAppConfig, error) {
	cfg := &catalogAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
		rateLimitRPS:   defaultRateLimitRPS,
		rateLimitBurst: defaultRateLimitBurst,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return cfg, nil
}

// NewCatalogApp builds the application from the given options
func NewCatalogApp(ctx context.Context, opts ...CatalogAppOptions) (*CatalogApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	// Release whatever was opened if a later step fails
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			for i := len(cfg.closers) - 1; i >= 0; i-- {
				cfg.closers[i]()
			}
		}
	}()

	if cfg.store == nil {
		backend, err := store.NewFromConfig(ctx, &cfg.config.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
		cfg.store = backend
		cfg.closers = append(cfg.closers, backend.Close)
	}

	syncCoordinator, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	authMw, err := buildAuthMiddleware(cfg.config.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to build auth middleware: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, syncCoordinator, authMw)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	return &CatalogApp{
		config: cfg.config,
		components: &AppComponents{
			Store:           cfg.store,
			SyncCoordinator: syncCoordinator,
		},
		httpServer: httpServer,
		ctx:        appCtx,
		cancelFunc: cancel,
		closers:    cfg.closers,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, ok := strings.Cut(addr, ":")
		if !ok || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		switch host {
		case "localhost":
			host = "127.0.0.1"
		case "":
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithRateLimit sets the per-client request rate. A non-positive rps
// disables rate limiting.
func WithRateLimit(rps float64, burst int) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		if burst < 0 {
			return fmt.Errorf("rate limit burst cannot be negative")
		}
		cfg.rateLimitRPS = rps
		cfg.rateLimitBurst = burst
		return nil
	}
}

// WithStore injects a store instead of building one from config
func WithStore(st store.Store) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.store = st
		return nil
	}
}

// WithSyncManager injects a sync manager instead of building the upstream pipeline
func WithSyncManager(sm pkgsync.Manager) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.syncManager = sm
		return nil
	}
}

// WithUpstreamClient replaces the HTTP client used for the upstream API
func WithUpstreamClient(c httpclient.Client) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.upstream = c
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for sync and HTTP metrics
func WithMeterProvider(mp metric.MeterProvider) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// WithMetricsHandler serves h at /metrics
func WithMetricsHandler(h http.Handler) CatalogAppOptions {
	return func(cfg *catalogAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// buildSyncComponents builds the sync manager, coordinator and their optional
// lock and event notifier
func buildSyncComponents(ctx context.Context, b *catalogAppConfig) (coordinator.Coordinator, error) {
	slog.Info("Initializing sync components")

	syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}
	tracer := otel.Tracer(b.tracerProvider)

	if b.syncManager == nil {
		fetcher, err := buildFetcher(b, syncMetrics, tracer)
		if err != nil {
			return nil, err
		}
		b.syncManager = pkgsync.NewDefaultSyncManager(fetcher, b.store,
			pkgsync.WithCompanyCode(b.config.Upstream.GetCompanyCode()),
			pkgsync.WithManagerMetrics(syncMetrics),
			pkgsync.WithManagerTracer(tracer),
		)
	}

	coordOpts := []coordinator.Option{
		coordinator.WithTracker(status.NewTracker()),
		coordinator.WithSyncMetrics(syncMetrics),
		coordinator.WithTracer(tracer),
	}

	locker, err := buildLocker(ctx, b)
	if err != nil {
		return nil, err
	}
	if locker != nil {
		coordOpts = append(coordOpts, coordinator.WithLocker(locker))
	}

	notifier, err := buildNotifier(b)
	if err != nil {
		return nil, err
	}
	if notifier != nil {
		coordOpts = append(coordOpts, coordinator.WithNotifier(notifier))
	}

	syncCoordinator := coordinator.New(b.syncManager, &b.config.Sync, coordOpts...)
	slog.Info("Sync components initialized successfully",
		"schedule", b.config.Sync.GetSchedule(),
		"run_on_startup", b.config.Sync.GetRunOnStartup(),
	)
	return syncCoordinator, nil
}

// buildAuthMiddleware builds the bearer token middleware. Without an auth
// section every caller is anonymous.
func buildAuthMiddleware(cfg *config.AuthConfig) (*auth.Middleware, error) {
	if cfg == nil {
		slog.Warn("Auth not configured, prices are hidden and the manual sync trigger is disabled")
		return auth.NewMiddleware(nil), nil
	}

	secret, err := cfg.GetJWTSecret()
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewVerifier(secret, cfg.Issuer)
	if err != nil {
		return nil, err
	}
	slog.Info("JWT verification enabled", "issuer", cfg.Issuer)
	return auth.NewMiddleware(verifier), nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *catalogAppConfig, syncer coordinator.Coordinator, authMw *auth.Middleware) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	if b.rateLimitRPS > 0 {
		limiter := api.NewRateLimiter(b.rateLimitRPS, b.rateLimitBurst)
		b.middlewares = append(b.middlewares, limiter.Middleware)
		slog.Info("Rate limiting enabled", "rps", b.rateLimitRPS, "burst", b.rateLimitBurst)
	}

	// Metrics go first so rejected requests are counted too
	httpMetrics, err := telemetry.NewHTTPMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	if httpMetrics != nil {
		b.middlewares = append([]func(http.Handler) http.Handler{httpMetrics.Middleware}, b.middlewares...)
	}

	publicPaths := api.DefaultPublicPaths
	if b.config.Auth != nil && len(b.config.Auth.PublicPaths) > 0 {
		publicPaths = append(append([]string{}, publicPaths...), b.config.Auth.PublicPaths...)
	}

	serverOpts := []api.ServerOption{
		api.WithMiddlewares(b.middlewares...),
		api.WithAuth(authMw, publicPaths),
		api.WithSyncController(syncer),
	}
	if b.metricsHandler != nil {
		serverOpts = append(serverOpts, api.WithMetricsHandler(b.metricsHandler))
	}
	router := api.NewServer(b.store, serverOpts...)

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
