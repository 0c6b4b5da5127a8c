package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/enrichment"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

const maxGatewayGenerate = 100

// AIHandler serves the AI gateway routes consumed by enrichment.HTTPAnalyzer.
// Each route calls the configured collaborator directly; failures become
// error responses so the calling pipeline can fall back.
type AIHandler struct {
	analyzer  enrichment.Analyzer
	generator enrichment.Generator
	advisor   enrichment.Advisor
	logger    *zap.Logger
}

// NewAIHandler creates a new AIHandler.
func NewAIHandler(analyzer enrichment.Analyzer, generator enrichment.Generator, advisor enrichment.Advisor, logger *zap.Logger) *AIHandler {
	return &AIHandler{analyzer: analyzer, generator: generator, advisor: advisor, logger: logger}
}

// Register mounts the gateway routes on the engine root.
func (h *AIHandler) Register(r gin.IRoutes) {
	r.POST(enrichment.RouteAnalyze, h.AnalyzeThreat)
	r.POST(enrichment.RouteSteps, h.GenerateSteps)
	r.POST(enrichment.RouteContextualize, h.Contextualize)
	r.POST(enrichment.RouteGenerate, h.GenerateThreats)
	r.POST(enrichment.RouteRecommendation, h.Recommendation)
}

// AnalyzeThreat returns layer 1 for a threat input.
func (h *AIHandler) AnalyzeThreat(c *gin.Context) {
	var in threat.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	l1, err := h.analyzer.Assess(c.Request.Context(), in)
	if err != nil {
		h.fail(c, enrichment.LayerAssess, err)
		return
	}
	c.JSON(http.StatusOK, l1)
}

// GenerateSteps returns layer 2 for a threat and its assessment.
func (h *AIHandler) GenerateSteps(c *gin.Context) {
	var req enrichment.StepsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	l2, err := h.analyzer.PlanMitigation(c.Request.Context(), req.Threat, req.Layer1)
	if err != nil {
		h.fail(c, enrichment.LayerMitigation, err)
		return
	}
	c.JSON(http.StatusOK, l2)
}

// Contextualize returns layer 3.
func (h *AIHandler) Contextualize(c *gin.Context) {
	var req enrichment.ContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}
	l3, err := h.analyzer.Contextualize(c.Request.Context(), req.Threat, req.Layer1, req.Layer2)
	if err != nil {
		h.fail(c, enrichment.LayerContext, err)
		return
	}
	c.JSON(http.StatusOK, l3)
}

// GenerateThreats returns {"threats": [...]} with count inputs.
func (h *AIHandler) GenerateThreats(c *gin.Context) {
	var req enrichment.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Count < 1 || req.Count > maxGatewayGenerate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be between 1 and 100"})
		return
	}
	items, err := h.generator.GenerateThreats(c.Request.Context(), req.Count)
	if err != nil {
		h.fail(c, enrichment.LayerGenerate, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threats": items})
}

// Recommendation returns {"recommendation": "..."}.
func (h *AIHandler) Recommendation(c *gin.Context) {
	var req enrichment.RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Threats) == 0 {
		c.JSON(http.StatusOK, gin.H{"recommendation": enrichment.RecommendationEmpty})
		return
	}
	rec, err := h.advisor.Recommend(c.Request.Context(), req.Threats, req.Insights)
	if err != nil {
		h.fail(c, enrichment.LayerRecommendation, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendation": rec})
}

func (h *AIHandler) fail(c *gin.Context, layer string, err error) {
	h.logger.Warn("AI gateway call failed", zap.String("layer", layer), zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"error": "AI analysis failed"})
}
