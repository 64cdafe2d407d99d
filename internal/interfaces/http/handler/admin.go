package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/syncbridge/backend/internal/domain/unified"
)

// AdminHandler exposes the operator surface: parked conflicts awaiting
// manual review and the dead letter backlog.
type AdminHandler struct {
	BaseHandler
	conflicts   unified.PendingConflictRepository
	deadLetters unified.DeadLetterSink
}

// NewAdminHandler creates the admin endpoints
func NewAdminHandler(conflicts unified.PendingConflictRepository, deadLetters unified.DeadLetterSink) *AdminHandler {
	return &AdminHandler{conflicts: conflicts, deadLetters: deadLetters}
}

// RegisterRoutes registers admin routes on the versioned API group
func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/conflicts", h.ListConflicts)
	rg.GET("/dead-letters", h.ListDeadLetters)
}

// ListConflicts handles GET /conflicts?platform=&store_id=
func (h *AdminHandler) ListConflicts(c *gin.Context) {
	var platform unified.Platform
	if raw := c.Query("platform"); raw != "" {
		parsed, err := unified.ParsePlatform(raw)
		if err != nil {
			h.BadRequest(c, "unknown platform "+raw)
			return
		}
		platform = parsed
	}

	conflicts, err := h.conflicts.ListByScope(c.Request.Context(), platform, c.Query("store_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"conflicts": conflicts, "total": len(conflicts)})
}

// ListDeadLetters handles GET /dead-letters?limit=
func (h *AdminHandler) ListDeadLetters(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	letters, err := h.deadLetters.List(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"dead_letters": letters, "total": len(letters)})
}
