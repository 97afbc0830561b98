package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pdf-query-system/internal/ai"
	"pdf-query-system/internal/database"
	"pdf-query-system/internal/logger"
	"pdf-query-system/services"
	"pdf-query-system/utils"
)

// respondWithServiceError maps service errors onto the HTTP error envelope.
func respondWithServiceError(c *gin.Context, err error) {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, services.ErrInvalidID):
		utils.RespondWithError(c, http.StatusBadRequest, "invalid_id", "Invalid PDF ID", nil)
	case errors.Is(err, services.ErrPDFNotFound):
		utils.RespondWithNotFound(c, "PDF not found")
	case errors.Is(err, services.ErrEmptyFile),
		errors.Is(err, services.ErrInvalidFilename),
		errors.Is(err, services.ErrInvalidPDF),
		errors.Is(err, services.ErrEmptyQuestion):
		utils.RespondWithBadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrFileTooLarge), errors.As(err, &maxBytes):
		utils.RespondWithPayloadTooLarge(c, err.Error(), nil)
	case errors.Is(err, services.ErrProcessingFailed), errors.Is(err, services.ErrNoText):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, "processing_failed", err.Error(), nil)
	case errors.Is(err, services.ErrPDFNotReady):
		utils.RespondWithConflict(c, err.Error(), nil)
	case errors.Is(err, ai.ErrRateLimited):
		utils.RespondWithTooManyRequests(c, err.Error(), nil)
	case errors.Is(err, services.ErrAnswererUnavailable),
		errors.Is(err, ai.ErrUnavailable),
		errors.Is(err, database.ErrNotConnected):
		utils.RespondWithServiceUnavailable(c, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		utils.RespondWithError(c, http.StatusGatewayTimeout, "timeout", "The operation timed out", nil)
	default:
		logger.Error("request failed", "path", c.FullPath(), "request_id", c.GetString("request_id"), "error", err)
		utils.RespondWithInternalError(c, "Internal server error", nil)
	}
}
