package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/productcomposite/backend/internal/domain"
	"github.com/productcomposite/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// CompositeService builds the composite view served by GetProductComposite
type CompositeService interface {
	GetProductAggregate(ctx context.Context, productID int) (*domain.ProductAggregate, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	composite CompositeService
}

// NewHandler creates a new HTTP handler
func NewHandler(composite CompositeService) *Handler {
	return &Handler{composite: composite}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "product-composite",
		"version": "1.0.0",
	})
}

// GetProductComposite handles GET /product-composite/:productId
func (h *Handler) GetProductComposite(c *gin.Context) {
	if h.composite == nil {
		writeErrorInfo(c, http.StatusServiceUnavailable, "Product composite service not configured")
		return
	}

	raw := c.Param("productId")
	productID, err := strconv.Atoi(raw)
	if err != nil {
		logger.FromGin(c).Debug("Rejected non-numeric productId", zap.String("product_id", raw))
		writeErrorInfo(c, http.StatusBadRequest, "Type mismatch: productId must be an integer, got: "+raw)
		return
	}

	aggregate, err := h.composite.GetProductAggregate(c.Request.Context(), productID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, aggregate)
}
