package v1

import (
	"log/slog"
	"net/http"

	"github.com/greenhouse-labs/catalog-bff/internal/api/common"
	"github.com/greenhouse-labs/catalog-bff/internal/auth"
	"github.com/greenhouse-labs/catalog-bff/internal/sync/coordinator"
)

// SyncTriggerResponse is returned by POST /api/v1/sync
type SyncTriggerResponse struct {
	Status string `json:"status"`
}

// syncStatus handles GET /api/v1/sync/status
func (rr *Routes) syncStatus(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, rr.syncer.Status(), http.StatusOK)
}

// triggerSync handles POST /api/v1/sync
func (rr *Routes) triggerSync(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	if !rr.syncer.TriggerSync(coordinator.TriggerManual) {
		common.WriteErrorResponse(w, "sync already in progress", http.StatusConflict)
		return
	}

	slog.Info("Manual sync triggered", "user_id", claims.UserID, "role", claims.Role)
	common.WriteJSONResponse(w, SyncTriggerResponse{Status: "started"}, http.StatusAccepted)
}
