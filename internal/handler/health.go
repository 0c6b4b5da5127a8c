package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cjmcneal02/Biosec-Project/internal/health"
)

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	checker *health.Checker
}

// NewHealthHandler creates a new HealthHandler. checker may be nil, in which
// case the server is always ready.
func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Register mounts /healthz and /readyz on the engine root.
func (h *HealthHandler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.Live)
	r.GET("/readyz", h.Ready)
}

// Live handles GET /healthz.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /readyz: 503 while any dependency check is degraded.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.checker == nil {
		c.JSON(http.StatusOK, gin.H{"ready": true, "checks": []health.CheckStatus{}})
		return
	}
	status := http.StatusOK
	ready := h.checker.Ready()
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": h.checker.Snapshot()})
}
