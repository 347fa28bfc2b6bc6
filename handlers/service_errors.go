package handlers

import (
	"net/http"

	"github.com/veloro-ai/modelrouter/services"
	"github.com/veloro-ai/modelrouter/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Handlers
// stay thin: they decode, call the service, and hand failures here.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsValidationError(err):
		if werr := utils.WriteBadRequest(w, err.Error(), details); werr != nil {
			logger.Error("failed to write bad request response", zap.Error(werr))
		}

	case services.IsRateLimitError(err):
		if werr := utils.WriteTooManyRequests(w, err.Error(), details); werr != nil {
			logger.Error("failed to write rate limit response", zap.Error(werr))
		}

	case services.IsBudgetError(err):
		// Budget exhaustion reads like throttling to the caller: retry
		// after the budget period rolls over.
		if werr := utils.WriteTooManyRequests(w, err.Error(), details); werr != nil {
			logger.Error("failed to write budget error response", zap.Error(werr))
		}

	case services.IsNoModelError(err):
		// The rejection trace in details says why each model was excluded
		if werr := utils.WriteServiceUnavailable(w, err.Error(), details); werr != nil {
			logger.Error("failed to write no-model response", zap.Error(werr))
		}

	case services.IsBackendTimeoutError(err):
		if werr := utils.WriteJSON(w, http.StatusGatewayTimeout, utils.ErrorResponse{
			Error:   "gateway_timeout",
			Message: err.Error(),
			Details: details,
		}); werr != nil {
			logger.Error("failed to write timeout response", zap.Error(werr))
		}

	case services.IsChainExhaustedError(err), services.IsBackendError(err):
		if werr := utils.WriteBadGateway(w, err.Error(), details); werr != nil {
			logger.Error("failed to write bad gateway response", zap.Error(werr))
		}

	case services.IsConfigError(err):
		logger.Error("configuration error surfaced at request time", zap.Error(err))
		if werr := utils.WriteInternalServerError(w, "An internal error occurred"); werr != nil {
			logger.Error("failed to write internal error response", zap.Error(werr))
		}

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if werr := utils.WriteInternalServerError(w, "An unexpected error occurred"); werr != nil {
			logger.Error("failed to write internal error response", zap.Error(werr))
		}
	}
}
