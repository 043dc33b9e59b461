package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/productcomposite/backend/internal/domain"
	"github.com/productcomposite/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const (
	msgBackendUnavailable = "Backend service temporarily unavailable"
	msgInternal           = "Internal Server Error"
)

// writeError maps a lookup error onto its HTTP status and writes an HttpErrorInfo body
func writeError(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.FromGin(c).Error("Composite request failed", zap.Error(err))
	}
	_ = c.Error(err)
	writeErrorInfo(c, status, message)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrInvalidProductID), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrTransportFailure), errors.Is(err, domain.ErrUnclassifiedBackend):
		return http.StatusBadGateway, msgBackendUnavailable
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func writeErrorInfo(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, domain.NewHttpErrorInfo(status, c.Request.URL.Path, message))
}
