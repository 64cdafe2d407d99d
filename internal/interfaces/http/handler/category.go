package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/syncbridge/backend/internal/application/categories"
	"github.com/syncbridge/backend/internal/domain/unified"
)

// CategoryHandler exposes the reconciled category hierarchy of one
// (platform, store) scope.
type CategoryHandler struct {
	BaseHandler
	service *categories.Service
}

// NewCategoryHandler creates the category query endpoints
func NewCategoryHandler(service *categories.Service) *CategoryHandler {
	return &CategoryHandler{service: service}
}

// RegisterRoutes registers category routes on the versioned API group
func (h *CategoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	scope := rg.Group("/categories/:platform/:storeId")
	scope.GET("/tree", h.Tree)
	scope.GET("/path/:externalId", h.Path)
	scope.GET("/statistics", h.Statistics)
}

// scope parses the platform path parameter, replying 400 on failure
func (h *CategoryHandler) scope(c *gin.Context) (unified.Platform, string, bool) {
	platform, err := unified.ParsePlatform(c.Param("platform"))
	if err != nil {
		h.BadRequest(c, "unknown platform "+c.Param("platform"))
		return "", "", false
	}
	return platform, c.Param("storeId"), true
}

// Tree handles GET /categories/:platform/:storeId/tree
func (h *CategoryHandler) Tree(c *gin.Context) {
	platform, storeID, ok := h.scope(c)
	if !ok {
		return
	}
	roots, err := h.service.Tree(c.Request.Context(), platform, storeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"roots": roots})
}

// Path handles GET /categories/:platform/:storeId/path/:externalId
func (h *CategoryHandler) Path(c *gin.Context) {
	platform, storeID, ok := h.scope(c)
	if !ok {
		return
	}
	path, err := h.service.Path(c.Request.Context(), platform, storeID, c.Param("externalId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"path": path})
}

// Statistics handles GET /categories/:platform/:storeId/statistics
func (h *CategoryHandler) Statistics(c *gin.Context) {
	platform, storeID, ok := h.scope(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), platform, storeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
