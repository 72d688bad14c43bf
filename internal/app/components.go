package app

import (
	"github.com/greenhouse-labs/catalog-bff/internal/store"
	"github.com/greenhouse-labs/catalog-bff/internal/sync/coordinator"
)

// AppComponents contains the runtime components of the application
type AppComponents struct {
	// Store holds the mirrored catalog
	Store store.Store

	// SyncCoordinator schedules and runs catalog syncs
	SyncCoordinator coordinator.Coordinator
}
