package handlers

import (
	"net/http"

	"github.com/veloro-ai/modelrouter/app"
	"github.com/veloro-ai/modelrouter/middleware"
	"github.com/veloro-ai/modelrouter/utils"
	"go.uber.org/zap"
)

// ListModelsHandler serves GET /api/v1/models: the catalog with live
// circuit state per model.
func ListModelsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := utils.WriteOK(w, deps.Dispatch.Models()); err != nil {
			deps.Logger.Error("failed to write models response", zap.Error(err))
		}
	}
}

// ListCircuitsHandler serves GET /api/v1/circuits: all breaker states.
func ListCircuitsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := utils.WriteOK(w, deps.Dispatch.Circuits()); err != nil {
			deps.Logger.Error("failed to write circuits response", zap.Error(err))
		}
	}
}

// BudgetHandler serves GET /api/v1/budget: the calling tenant's
// current spend, reservations, and ceiling.
func BudgetHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := deps.Dispatch.Budget(middleware.GetTenantFromContext(r.Context()))
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}
		if err := utils.WriteOK(w, record); err != nil {
			deps.Logger.Error("failed to write budget response", zap.Error(err))
		}
	}
}
