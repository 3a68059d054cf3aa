package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/infrastructure/logger"
	"github.com/catalogsync/backend/internal/usecase"
)

const (
	serviceName    = "catalogsync-backend"
	serviceVersion = "1.0.0"

	healthTimeout = 2 * time.Second
)

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	jobs     *usecase.ImportJobService
	products *usecase.ProductService
	bulk     *usecase.BulkService
	health   HealthChecker
}

// NewHandler creates a new HTTP handler. health may be nil.
func NewHandler(
	jobs *usecase.ImportJobService,
	products *usecase.ProductService,
	bulk *usecase.BulkService,
	health HealthChecker,
) *Handler {
	return &Handler{
		jobs:     jobs,
		products: products,
		bulk:     bulk,
		health:   health,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	}
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			logger.GetGinLogger(c).Error("health check failed", zap.Error(err))
			body["status"] = "unhealthy"
			body["error"] = "database unreachable"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}

// StartImport begins an asynchronous import job
func (h *Handler) StartImport(c *gin.Context) {
	var req usecase.StartImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.jobs.Start(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": job.ID, "status": job.Status})
}

// ImportStatus returns the current state of an import job
func (h *Handler) ImportStatus(c *gin.Context) {
	job, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

type listProductsQuery struct {
	BrandID      string   `form:"brandId"`
	SourceAPI    string   `form:"sourceApi"`
	Availability *bool    `form:"availability"`
	ImportStatus string   `form:"importStatus"`
	Search       string   `form:"search" binding:"max=200"`
	MinPrice     *float64 `form:"minPrice" binding:"omitempty,gte=0"`
	MaxPrice     *float64 `form:"maxPrice" binding:"omitempty,gte=0"`
	Page         int      `form:"page"`
	Limit        int      `form:"limit"`
}

// ListProducts returns a filtered, paginated page of stored products
func (h *Handler) ListProducts(c *gin.Context) {
	var q listProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	page, err := h.products.List(c.Request.Context(), domain.ProductFilter{
		BrandID:      q.BrandID,
		SourceAPI:    domain.Network(q.SourceAPI),
		Availability: q.Availability,
		ImportStatus: domain.ImportStatus(q.ImportStatus),
		Search:       q.Search,
		MinPrice:     q.MinPrice,
		MaxPrice:     q.MaxPrice,
		Page:         q.Page,
		Limit:        q.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ProductRawData returns the cached provider payload or a live re-fetch
func (h *Handler) ProductRawData(c *gin.Context) {
	result, err := h.products.RawData(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type updateFromSourceResponse struct {
	Success bool                  `json:"success"`
	Outcome domain.RefreshOutcome `json:"outcome"`
	Message string                `json:"message"`
}

// UpdateFromSource re-fetches one product and reconciles it
func (h *Handler) UpdateFromSource(c *gin.Context) {
	outcome, err := h.products.UpdateFromSource(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrBrandNotFound), domain.IsPersistenceError(err):
		writeError(c, err)
		return
	case err != nil:
		c.JSON(http.StatusOK, updateFromSourceResponse{
			Success: false,
			Outcome: domain.RefreshFailed,
			Message: usecase.DescribeItemError(err),
		})
		return
	}

	resp := updateFromSourceResponse{Success: true, Outcome: outcome, Message: "Product updated from source"}
	if outcome == domain.RefreshNoChanges {
		resp.Message = "Product is already up to date"
	}
	c.JSON(http.StatusOK, resp)
}

// BulkAction deletes or refreshes many products and reports per-item results
func (h *Handler) BulkAction(c *gin.Context) {
	var req usecase.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.bulk.ApplyBulk(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteProduct removes one product. A missing product is reported in the body, not the status.
func (h *Handler) DeleteProduct(c *gin.Context) {
	err := h.products.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusOK, gin.H{"success": false, "message": usecase.DescribeItemError(err)})
	default:
		writeError(c, err)
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": message})
}

// writeError maps a usecase error to a status code and JSON body
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		badRequest(c, err.Error())
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrBrandNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	default:
		logger.GetGinLogger(c).Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}
}
