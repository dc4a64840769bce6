package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/domain/order"
	"github.com/marketsync/backend/internal/domain/shared"
	"github.com/marketsync/backend/internal/infrastructure/scheduler"
	"github.com/marketsync/backend/internal/interfaces/http/dto"
	"github.com/marketsync/backend/internal/interfaces/http/middleware"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "request_id"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessList sends a list with its total count
func (h *BaseHandler) SuccessList(c *gin.Context, data any, total int) {
	c.JSON(http.StatusOK, dto.NewListResponse(data, int64(total)))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response, deriving the status code from the error code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeNotFound, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeUnauthorized, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeInternal, message)
}

// BindJSON binds and validates the request body, writing the validation
// response on failure
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		c.Abort()
		return false
	}
	return true
}

// errorCodes maps sentinel errors to API error codes; the first match wins
var errorCodes = []struct {
	err  error
	code string
}{
	{connection.ErrNotFound, dto.ErrCodeNotFound},
	{order.ErrLedgerEntryNotFound, dto.ErrCodeNotFound},
	{catalog.ErrProductNotFound, dto.ErrCodeNotFound},
	{order.ErrReimportNotAllowed, dto.ErrCodeInvalidState},
	{catalog.ErrExportAlreadyRunning, dto.ErrCodeLocked},
	{scheduler.ErrJobAlreadyQueued, dto.ErrCodeJobQueued},
	{scheduler.ErrJobQueueFull, dto.ErrCodeQueueFull},
	{scheduler.ErrSchedulerNotRunning, dto.ErrCodeQueueFull},
	{scheduler.ErrInvalidJobType, dto.ErrCodeInvalidInput},
	{catalog.ErrStoreUnavailable, dto.ErrCodeUnavailable},
	{connection.ErrMissingName, dto.ErrCodeInvalidConfiguration},
	{connection.ErrMissingCredentials, dto.ErrCodeInvalidConfiguration},
	{connection.ErrInvalidFulfilmentFilter, dto.ErrCodeInvalidConfiguration},
	{connection.ErrMissingExportLanguage, dto.ErrCodeInvalidConfiguration},
	{connection.ErrInvalidTrackingPattern, dto.ErrCodeInvalidConfiguration},
	{connection.ErrInvalidVirtualStock, dto.ErrCodeInvalidConfiguration},
	{connection.ErrMissingShipmentTrigger, dto.ErrCodeInvalidConfiguration},
	{connection.ErrMissingOrderImportStatus, dto.ErrCodeInvalidConfiguration},
	{catalog.ErrInvalidAttributeSource, dto.ErrCodeInvalidConfiguration},
}

// HandleError converts domain and application errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			h.Error(c, m.code, err.Error())
			return
		}
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
		return
	}

	h.InternalError(c, "An unexpected error occurred")
}
