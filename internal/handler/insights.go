package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/insights"
	"github.com/cjmcneal02/Biosec-Project/internal/service"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// InsightsHandler serves dashboard aggregates and the risk classifier.
type InsightsHandler struct {
	svc    *service.ThreatService
	logger *zap.Logger
}

// NewInsightsHandler creates a new InsightsHandler.
func NewInsightsHandler(svc *service.ThreatService, logger *zap.Logger) *InsightsHandler {
	return &InsightsHandler{svc: svc, logger: logger}
}

// Register mounts the insights and risk routes on the given router group.
func (h *InsightsHandler) Register(rg *gin.RouterGroup) {
	i := rg.Group("/insights")
	{
		i.GET("", h.Overview)
		i.GET("/trend", h.Trend)
		i.GET("/recommendation", h.Recommendation)
	}
	rg.GET("/risk/:score", h.ClassifyRisk)
}

// Overview handles GET /insights.
func (h *InsightsHandler) Overview(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Insights(c.Request.Context()))
}

// Trend handles GET /insights/trend?days=7.
func (h *InsightsHandler) Trend(c *gin.Context) {
	days := insights.DefaultTrendDays
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
			return
		}
		days = n
	}

	points, err := h.svc.Trend(c.Request.Context(), days)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("trend", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute trend"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": len(points), "points": points})
}

// Recommendation handles GET /insights/recommendation.
func (h *InsightsHandler) Recommendation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"recommendation": h.svc.Recommendation(c.Request.Context())})
}

// ClassifyRisk handles GET /risk/:score.
func (h *InsightsHandler) ClassifyRisk(c *gin.Context) {
	score, err := strconv.Atoi(c.Param("score"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score must be an integer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"score": score,
		"level": threat.Classify(score),
		"color": threat.Color(score),
		"badge": threat.BadgeColor(score),
	})
}
