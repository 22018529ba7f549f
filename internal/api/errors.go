package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kidney-chain-server/internal/domain"
	"github.com/kidney-chain-server/internal/logging"
	"github.com/kidney-chain-server/internal/middleware"
)

// writeError maps service errors to an HTTP status and an APIError body.
func (s *Server) writeError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)
	_ = c.Error(err)

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, domain.NewAPIError(domain.ErrInvalidInput, "Upload too large", err.Error(), requestID))
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(domain.ErrInternalServer, "Request cancelled", err.Error(), requestID))
		return
	}

	apiErr := domain.APIErrorFrom(err, requestID)
	if apiErr.Code == domain.ErrInternalServer {
		logging.FromContext(c.Request.Context(), s.logger).WithError(err).Error("Unhandled request error")
	}
	if apiErr.Retryable() {
		c.Header("Retry-After", "5")
	}
	c.JSON(apiErr.HTTPStatus(), apiErr)
}

func invalidInput(c *gin.Context, message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	c.JSON(http.StatusBadRequest, domain.NewAPIError(domain.ErrInvalidInput, message, details, c.GetString(middleware.CorrelationIDKey)))
}
