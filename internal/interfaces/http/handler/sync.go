package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/syncbridge/backend/internal/application/ingestion"
	"github.com/syncbridge/backend/internal/domain/unified"
)

// SyncHandler drives pull-mode reconciliation: a caller fetches records from
// a platform API and posts them here as a batch.
type SyncHandler struct {
	BaseHandler
	pipeline *ingestion.Pipeline
}

// NewSyncHandler creates the batch sync endpoint
func NewSyncHandler(pipeline *ingestion.Pipeline) *SyncHandler {
	return &SyncHandler{pipeline: pipeline}
}

// RegisterRoutes registers sync routes on the versioned API group
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync/:platform", h.SyncBatch)
}

// SyncBatchRequest is the request body of POST /sync/:platform
type SyncBatchRequest struct {
	StoreID    string            `json:"store_id" binding:"required"`
	EntityType string            `json:"entity_type" binding:"required"`
	Strategy   string            `json:"strategy"`
	Records    []json.RawMessage `json:"records" binding:"required"`
}

// SyncBatch handles POST /sync/:platform
func (h *SyncHandler) SyncBatch(c *gin.Context) {
	platform, err := unified.ParsePlatform(c.Param("platform"))
	if err != nil {
		h.BadRequest(c, "unknown platform "+c.Param("platform"))
		return
	}

	var req SyncBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	records := make([][]byte, len(req.Records))
	for i, raw := range req.Records {
		records[i] = raw
	}

	result, err := h.pipeline.SyncBatch(c.Request.Context(), &ingestion.BatchRequest{
		Platform:   platform,
		StoreID:    req.StoreID,
		EntityType: req.EntityType,
		Strategy:   req.Strategy,
		Records:    records,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
