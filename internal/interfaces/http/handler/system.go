package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/syncbridge/backend/internal/interfaces/http/dto"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping() error
}

// SystemHandler serves liveness and readiness probes
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	db        Pinger
}

// NewSystemHandler creates the probe endpoints. db may be nil, in which case
// readiness degenerates to liveness.
func NewSystemHandler(db Pinger) *SystemHandler {
	return &SystemHandler{startTime: time.Now(), db: db}
}

// RegisterRoutes registers probe routes on a root-level group
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/ready", h.Ready)
}

// HealthResponse reports process liveness
type HealthResponse struct {
	Status    string `json:"status"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, HealthResponse{
		Status:    "ok",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ready handles GET /ready; it fails while the database is unreachable so a
// load balancer keeps traffic away until dependencies are up.
func (h *SystemHandler) Ready(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable,
				dto.NewErrorResponse(dto.ErrCodeTransientFailure, "database unreachable"))
			return
		}
	}
	h.Success(c, gin.H{"status": "ready"})
}
