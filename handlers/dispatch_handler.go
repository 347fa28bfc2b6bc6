package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/veloro-ai/modelrouter/app"
	"github.com/veloro-ai/modelrouter/middleware"
	"github.com/veloro-ai/modelrouter/services/dispatch"
	"github.com/veloro-ai/modelrouter/utils"
	"go.uber.org/zap"
)

// DispatchRequest is the request body for dispatch and analyze calls.
// The tenant comes from the authenticated request context, never from
// the body.
type DispatchRequest struct {
	Text          string `json:"text" validate:"required"`
	HasImages     bool   `json:"has_images,omitempty"`
	Stream        bool   `json:"stream,omitempty"`
	Tools         bool   `json:"tools,omitempty"`
	Deterministic bool   `json:"deterministic,omitempty"`
	Seed          int64  `json:"seed,omitempty"`
}

// DispatchHandler serves POST /api/v1/dispatch: the full
// classify-route-execute pipeline.
func DispatchHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeDispatchRequest(w, r, deps.Logger)
		if !ok {
			return
		}

		result, err := deps.Dispatch.Dispatch(r.Context(), toServiceRequest(r, req))
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		if err := utils.WriteOK(w, result); err != nil {
			deps.Logger.Error("failed to write dispatch response", zap.Error(err))
		}
	}
}

// AnalyzeHandler serves POST /api/v1/analyze: classification and
// routing only, no backend call and no budget reservation.
func AnalyzeHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeDispatchRequest(w, r, deps.Logger)
		if !ok {
			return
		}

		decision, err := deps.Dispatch.Analyze(r.Context(), toServiceRequest(r, req))
		if err != nil {
			HandleServiceError(w, err, deps.Logger)
			return
		}

		if err := utils.WriteOK(w, decision); err != nil {
			deps.Logger.Error("failed to write analyze response", zap.Error(err))
		}
	}
}

func decodeDispatchRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (DispatchRequest, bool) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "invalid JSON body", nil)
		return req, false
	}

	if err := utils.ValidateStruct(&req); err != nil {
		var validationErr *utils.ValidationError
		details := map[string]interface{}{}
		if errors.As(err, &validationErr) {
			for field, msg := range validationErr.Fields {
				details[field] = msg
			}
		}
		_ = utils.WriteBadRequest(w, err.Error(), details)
		return req, false
	}
	return req, true
}

func toServiceRequest(r *http.Request, req DispatchRequest) dispatch.Request {
	return dispatch.Request{
		Text:          req.Text,
		Tenant:        middleware.GetTenantFromContext(r.Context()),
		HasImages:     req.HasImages,
		WantsStream:   req.Stream,
		WantsTools:    req.Tools,
		Deterministic: req.Deterministic,
		Seed:          req.Seed,
	}
}
