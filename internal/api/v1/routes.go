// Package v1 provides the catalog read API and the sync control endpoints.
package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greenhouse-labs/catalog-bff/internal/auth"
	"github.com/greenhouse-labs/catalog-bff/internal/status"
	"github.com/greenhouse-labs/catalog-bff/internal/store"
)

//go:generate mockgen -destination=mocks/mock_sync_controller.go -package=mocks -source=routes.go SyncController

// SyncController is the part of the sync coordinator the API drives
type SyncController interface {
	TriggerSync(trigger string) bool
	IsRunning() bool
	Status() status.SyncStatus
}

// Routes holds the handler dependencies
type Routes struct {
	store  store.Store
	syncer SyncController
	authMw *auth.Middleware
}

// NewRoutes creates a new Routes instance. A nil syncer disables the sync
// endpoints; a nil authMw treats every caller as anonymous.
func NewRoutes(st store.Store, syncer SyncController, authMw *auth.Middleware) *Routes {
	if authMw == nil {
		authMw = auth.NewMiddleware(nil)
	}
	return &Routes{store: st, syncer: syncer, authMw: authMw}
}

// Router creates the /api/v1 router. Callers are expected to run the auth
// Optional middleware before it.
func Router(routes *Routes) http.Handler {
	r := chi.NewRouter()

	r.Get("/articles", routes.listArticles)
	r.Get("/articles/{id}", routes.getArticle)

	if routes.syncer != nil {
		r.Get("/sync/status", routes.syncStatus)
		r.With(routes.authMw.RequireRole(auth.RoleSales, auth.RoleWorker)).Post("/sync", routes.triggerSync)
	}

	return r
}
