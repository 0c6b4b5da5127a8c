// Package handler exposes the threat service over HTTP with Gin.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/service"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// ThreatHandler handles the /threats routes.
type ThreatHandler struct {
	svc    *service.ThreatService
	logger *zap.Logger
}

// NewThreatHandler creates a new ThreatHandler.
func NewThreatHandler(svc *service.ThreatService, logger *zap.Logger) *ThreatHandler {
	return &ThreatHandler{svc: svc, logger: logger}
}

// Register mounts the threat routes on the given router group.
func (h *ThreatHandler) Register(rg *gin.RouterGroup) {
	t := rg.Group("/threats")
	{
		t.GET("", h.ListThreats)
		t.POST("", h.SubmitThreat)
		t.DELETE("", h.ClearThreats)
		t.POST("/generate", h.GenerateThreats)
		t.POST("/sample", h.LoadSampleData)
		t.GET("/:id", h.GetThreat)
		t.DELETE("/:id", h.DeleteThreat)
		t.POST("/:id/analyze", h.AnalyzeThreat)
		t.POST("/:id/refresh", h.RefreshThreat)
		t.POST("/:id/steps", h.GenerateSteps)
	}
}

// GenerateRequest is the body of POST /threats/generate.
type GenerateRequest struct {
	Count   int  `json:"count"`
	Replace bool `json:"replace"`
}

// ListThreats handles GET /threats?category=&sort=date|risk.
func (h *ThreatHandler) ListThreats(c *gin.Context) {
	threats, err := h.svc.List(c.Request.Context(), service.ListOptions{
		Category: threat.Category(c.Query("category")),
		Sort:     c.Query("sort"),
	})
	if err != nil {
		h.writeError(c, err, "list threats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"threats": threats, "count": len(threats)})
}

// SubmitThreat handles POST /threats. All four input fields are required.
func (h *ThreatHandler) SubmitThreat(c *gin.Context) {
	var in threat.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.svc.Submit(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err, "submit threat")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"threat": t})
}

// GetThreat handles GET /threats/:id.
func (h *ThreatHandler) GetThreat(c *gin.Context) {
	t, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "get threat")
		return
	}
	c.JSON(http.StatusOK, gin.H{"threat": t})
}

// DeleteThreat handles DELETE /threats/:id.
func (h *ThreatHandler) DeleteThreat(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err, "delete threat")
		return
	}
	c.Status(http.StatusNoContent)
}

// AnalyzeThreat handles POST /threats/:id/analyze.
func (h *ThreatHandler) AnalyzeThreat(c *gin.Context) {
	t, err := h.svc.Analyze(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "analyze threat")
		return
	}
	c.JSON(http.StatusOK, gin.H{"threat": t})
}

// RefreshThreat handles POST /threats/:id/refresh.
func (h *ThreatHandler) RefreshThreat(c *gin.Context) {
	t, err := h.svc.Refresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "refresh threat")
		return
	}
	c.JSON(http.StatusOK, gin.H{"threat": t})
}

// GenerateSteps handles POST /threats/:id/steps.
func (h *ThreatHandler) GenerateSteps(c *gin.Context) {
	t, err := h.svc.GenerateSteps(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, "generate steps")
		return
	}
	c.JSON(http.StatusOK, gin.H{"threat": t})
}

// GenerateThreats handles POST /threats/generate. An empty body generates
// service.DefaultGenerateCount threats and keeps the existing ones.
func (h *ThreatHandler) GenerateThreats(c *gin.Context) {
	var req GenerateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	created, err := h.svc.Generate(c.Request.Context(), req.Count, req.Replace)
	if err != nil {
		h.writeError(c, err, "generate threats")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"threats": created, "count": len(created)})
}

// LoadSampleData handles POST /threats/sample.
func (h *ThreatHandler) LoadSampleData(c *gin.Context) {
	threats, err := h.svc.LoadSampleData(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "load sample data")
		return
	}
	c.JSON(http.StatusOK, gin.H{"threats": threats, "count": len(threats)})
}

// ClearThreats handles DELETE /threats.
func (h *ThreatHandler) ClearThreats(c *gin.Context) {
	if err := h.svc.Clear(c.Request.Context()); err != nil {
		h.writeError(c, err, "clear threats")
		return
	}
	c.Status(http.StatusNoContent)
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported without detail.
func (h *ThreatHandler) writeError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "threat not found"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAnalysisInProgress),
		errors.Is(err, service.ErrNotAnalyzed),
		errors.Is(err, service.ErrAlreadyAnalyzed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error(op, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + op})
	}
}
