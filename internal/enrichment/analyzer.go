// Package enrichment runs the three-layer AI analysis of a threat report.
//
// Every layer is first attempted against a real Analyzer (OpenAI directly, or
// a remote AI gateway over HTTP). Any failure of that call falls back to the
// programmatic Fallback, so enrichment as a whole never fails:
//
//	Layer 1  Assess          risk score, category, summary, confidence
//	Layer 2  PlanMitigation  mitigations, priority, impact, actions
//	Layer 3  Contextualize   landscape insight and related threat ids
package enrichment

import (
	"context"

	"github.com/cjmcneal02/Biosec-Project/internal/insights"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// Analyzer produces the three analysis layers for a threat. Implementations
// may fail; callers are expected to fall back.
type Analyzer interface {
	Assess(ctx context.Context, in threat.Input) (threat.Assessment, error)
	PlanMitigation(ctx context.Context, in threat.Input, l1 threat.Assessment) (threat.MitigationPlan, error)
	Contextualize(ctx context.Context, in threat.Input, l1 threat.Assessment, l2 threat.MitigationPlan) (threat.ContextInsights, error)
}

// Generator produces synthetic threat reports for bulk loading.
type Generator interface {
	GenerateThreats(ctx context.Context, count int) ([]threat.Input, error)
}

// Advisor writes a short recommendation for the whole threat landscape.
type Advisor interface {
	Recommend(ctx context.Context, threats []*threat.Threat, summary insights.GlobalInsights) (string, error)
}

// Layer names used in logs and metrics.
const (
	LayerAssess         = "layer1"
	LayerMitigation     = "layer2"
	LayerContext        = "layer3"
	LayerGenerate       = "generate"
	LayerRecommendation = "recommendation"
)
