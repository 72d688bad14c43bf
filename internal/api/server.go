// Package api provides the HTTP server of the catalog BFF.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	v1 "github.com/greenhouse-labs/catalog-bff/internal/api/v1"
	"github.com/greenhouse-labs/catalog-bff/internal/auth"
	"github.com/greenhouse-labs/catalog-bff/internal/store"
)

// DefaultPublicPaths never go through token verification, so probes keep
// working when a caller sends a stale Authorization header
var DefaultPublicPaths = []string{"/health", "/readiness", "/version", "/metrics"}

// ServerOption configures the API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	authMw         *auth.Middleware
	publicPaths    []string
	syncer         v1.SyncController
	metricsHandler http.Handler
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithAuth verifies bearer tokens outside of publicPaths. An empty
// publicPaths keeps DefaultPublicPaths.
func WithAuth(mw *auth.Middleware, publicPaths []string) ServerOption {
	return func(cfg *serverConfig) {
		cfg.authMw = mw
		if len(publicPaths) > 0 {
			cfg.publicPaths = publicPaths
		}
	}
}

// WithSyncController exposes the sync status and manual trigger endpoints
func WithSyncController(syncer v1.SyncController) ServerOption {
	return func(cfg *serverConfig) {
		cfg.syncer = syncer
	}
}

// WithMetricsHandler serves h at /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// NewServer creates and configures the HTTP router with the given store and options
func NewServer(st store.Store, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{
		publicPaths: DefaultPublicPaths,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.authMw == nil {
		cfg.authMw = auth.NewMiddleware(nil)
	}

	r := chi.NewRouter()

	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}
	r.Use(auth.WrapWithPublicPaths(cfg.authMw.Optional, cfg.publicPaths))

	r.Mount("/", HealthRouter(st))
	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}

	r.Mount("/api/v1", v1.Router(v1.NewRoutes(st, cfg.syncer, cfg.authMw)))

	return r
}
