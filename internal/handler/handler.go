// Package handler provides the HTTP handlers for annotation and point
// cloud operations.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spatial-annotator/backend/internal/cache"
	"github.com/spatial-annotator/backend/internal/models"
	"github.com/spatial-annotator/backend/internal/store"
	"github.com/spatial-annotator/backend/internal/validate"
)

// Handler provides HTTP handlers for annotation and point cloud operations.
type Handler struct {
	store  store.Store
	cache  cache.Cache
	logger *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(st store.Store, cache cache.Cache, logger *zap.Logger) *Handler {
	return &Handler{
		store:  st,
		cache:  cache,
		logger: logger,
	}
}

// RegisterRoutes registers the handler routes on the given router group.
// Matching is exact: anything else falls through to NoRoute.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/annotations", h.ListAnnotations)
	rg.POST("/annotations", h.CreateAnnotation)
	rg.PUT("/annotations/:id", h.UpdateAnnotation)
	rg.DELETE("/annotations/:id", h.DeleteAnnotation)

	rg.GET("/pointclouds", h.ListPointClouds)
	rg.POST("/pointclouds", h.CreatePointCloud)
	rg.DELETE("/pointclouds/:id", h.DeletePointCloud)
}

// CORS returns the middleware applying permissive cross-origin headers to
// every response, error responses included, and answering preflights.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// NoRoute answers any unmatched method+path combination.
func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "route_not_found",
		Message: "no route for " + c.Request.Method + " " + c.Request.URL.Path,
	})
}

// ListAnnotations handles GET /annotations, optionally filtered by the
// pointCloudId query parameter.
func (h *Handler) ListAnnotations(c *gin.Context) {
	ctx := c.Request.Context()

	var filter *string
	if id := c.Query("pointCloudId"); id != "" {
		filter = &id
	}

	// Only the unfiltered list is cached.
	if filter == nil {
		if annotations, found, err := h.cache.GetAnnotations(ctx); err == nil && found {
			h.logger.Debug("Returning cached annotations")
			c.JSON(http.StatusOK, models.AnnotationsResponse{Data: annotations})
			return
		}
	}

	annotations, err := h.store.ListAnnotations(ctx, filter)
	if err != nil {
		h.storeError(c, "failed to retrieve annotations", err)
		return
	}

	if filter == nil {
		_ = h.cache.SetAnnotations(ctx, annotations)
	}

	c.JSON(http.StatusOK, models.AnnotationsResponse{Data: annotations})
}

// CreateAnnotation handles POST /annotations. The identifier and creation
// timestamp are assigned here; any id in the request body is ignored.
func (h *Handler) CreateAnnotation(c *gin.Context) {
	var req models.CreateAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalidPayload(c, err)
		return
	}

	annotation, verr := validate.AnnotationCreate(&req)
	if verr != nil {
		h.validationError(c, verr)
		return
	}

	annotation.ID = validate.NewID()
	annotation.CreatedAt = time.Now().UTC()

	ctx := c.Request.Context()
	if err := h.store.CreateAnnotation(ctx, annotation); err != nil {
		h.storeError(c, "failed to create annotation", err)
		return
	}

	_ = h.cache.InvalidateAnnotations(ctx)

	c.JSON(http.StatusCreated, models.AnnotationResponse{Data: *annotation})
}

// UpdateAnnotation handles PUT /annotations/:id. The id format is checked
// before any storage call.
func (h *Handler) UpdateAnnotation(c *gin.Context) {
	id := c.Param("id")
	if !validate.ValidID(id) {
		h.invalidIdentifier(c, id)
		return
	}

	var req models.UpdateAnnotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalidPayload(c, err)
		return
	}

	text, verr := validate.AnnotationUpdate(&req)
	if verr != nil {
		h.validationError(c, verr)
		return
	}

	ctx := c.Request.Context()
	annotation, err := h.store.UpdateAnnotationText(ctx, id, text)
	if err != nil {
		h.storeError(c, "failed to update annotation", err)
		return
	}

	_ = h.cache.InvalidateAnnotations(ctx)

	c.JSON(http.StatusOK, models.AnnotationResponse{Data: *annotation})
}

// DeleteAnnotation handles DELETE /annotations/:id. Deleting an id that is
// already gone reports not_found, never silent success.
func (h *Handler) DeleteAnnotation(c *gin.Context) {
	id := c.Param("id")
	if !validate.ValidID(id) {
		h.invalidIdentifier(c, id)
		return
	}

	ctx := c.Request.Context()
	if err := h.store.DeleteAnnotation(ctx, id); err != nil {
		h.storeError(c, "failed to delete annotation", err)
		return
	}

	_ = h.cache.InvalidateAnnotations(ctx)

	c.Status(http.StatusNoContent)
}

// ListPointClouds handles GET /pointclouds.
func (h *Handler) ListPointClouds(c *gin.Context) {
	ctx := c.Request.Context()

	if pointClouds, found, err := h.cache.GetPointClouds(ctx); err == nil && found {
		h.logger.Debug("Returning cached point clouds")
		c.JSON(http.StatusOK, models.PointCloudsResponse{Data: pointClouds})
		return
	}

	pointClouds, err := h.store.ListPointClouds(ctx)
	if err != nil {
		h.storeError(c, "failed to retrieve point clouds", err)
		return
	}

	_ = h.cache.SetPointClouds(ctx, pointClouds)

	c.JSON(http.StatusOK, models.PointCloudsResponse{Data: pointClouds})
}

// CreatePointCloud handles POST /pointclouds.
func (h *Handler) CreatePointCloud(c *gin.Context) {
	var req models.CreatePointCloudRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalidPayload(c, err)
		return
	}

	name, path, verr := validate.PointCloudCreate(&req)
	if verr != nil {
		h.validationError(c, verr)
		return
	}

	pointCloud := &models.PointCloud{
		ID:        validate.NewID(),
		Name:      name,
		Path:      path,
		CreatedAt: time.Now().UTC(),
	}

	ctx := c.Request.Context()
	if err := h.store.CreatePointCloud(ctx, pointCloud); err != nil {
		h.storeError(c, "failed to create point cloud", err)
		return
	}

	_ = h.cache.InvalidatePointClouds(ctx)

	c.JSON(http.StatusCreated, models.PointCloudResponse{Data: *pointCloud})
}

// DeletePointCloud handles DELETE /pointclouds/:id.
func (h *Handler) DeletePointCloud(c *gin.Context) {
	id := c.Param("id")
	if !validate.ValidID(id) {
		h.invalidIdentifier(c, id)
		return
	}

	ctx := c.Request.Context()
	if err := h.store.DeletePointCloud(ctx, id); err != nil {
		h.storeError(c, "failed to delete point cloud", err)
		return
	}

	_ = h.cache.InvalidatePointClouds(ctx)

	c.Status(http.StatusNoContent)
}

func (h *Handler) invalidPayload(c *gin.Context, err error) {
	h.logger.Warn("Invalid request payload", zap.Error(err))
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   validate.CodeInvalidPayload,
		Message: "request body is not valid JSON for this endpoint",
	})
}

func (h *Handler) validationError(c *gin.Context, verr *validate.Error) {
	h.logger.Warn("Rejected request payload", zap.String("code", verr.Code))
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   verr.Code,
		Message: verr.Message,
	})
}

func (h *Handler) invalidIdentifier(c *gin.Context, id string) {
	h.logger.Warn("Rejected malformed identifier", zap.String("id", id))
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   validate.CodeInvalidIdentifier,
		Message: "identifier is not a valid UUID",
	})
}

// storeError maps storage failures onto transport responses. Backend detail
// never reaches the client body.
func (h *Handler) storeError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "record not found",
		})
	case errors.Is(err, store.ErrUnavailable):
		h.logger.Error("Storage unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "unavailable",
			Message: "storage backend is not available",
		})
	default:
		h.logger.Error("Storage operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: message,
		})
	}
}
