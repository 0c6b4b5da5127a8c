package enrichment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// Pipeline runs the three analysis layers against a real Analyzer and falls
// back per layer on any error. Its methods never fail.
type Pipeline struct {
	analyzer Analyzer // nil means fallback only
	fallback *Fallback
	logger   *zap.Logger
	onFall   func(layer string)
	now      func() time.Time
}

// NewPipeline creates a Pipeline. analyzer may be nil, in which case every
// layer is produced by fallback without warnings.
func NewPipeline(analyzer Analyzer, fallback *Fallback, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		analyzer: analyzer,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// SetFallbackRecorder registers a callback invoked with the layer name each
// time a real call fails and the fallback is used.
func (p *Pipeline) SetFallbackRecorder(fn func(layer string)) {
	p.onFall = fn
}

// Analyze runs layer 1, then layer 2 from layer 1, then layer 3 from both.
func (p *Pipeline) Analyze(ctx context.Context, in threat.Input) threat.Analysis {
	l1 := p.Assess(ctx, in)
	l2 := p.PlanMitigation(ctx, in, l1)
	l3 := p.Contextualize(ctx, in, l1, l2)
	return threat.Analysis{Layer1: l1, Layer2: l2, Layer3: &l3}
}

// Assess produces layer 1.
func (p *Pipeline) Assess(ctx context.Context, in threat.Input) threat.Assessment {
	if p.analyzer != nil {
		a, err := p.analyzer.Assess(ctx, in)
		if err == nil {
			return RepairAssessment(a, p.now())
		}
		p.fellBack(LayerAssess, in, err)
	}
	return p.fallback.assess(ctx, in)
}

// PlanMitigation produces layer 2 from an existing layer 1.
func (p *Pipeline) PlanMitigation(ctx context.Context, in threat.Input, l1 threat.Assessment) threat.MitigationPlan {
	if p.analyzer != nil {
		m, err := p.analyzer.PlanMitigation(ctx, in, l1)
		if err == nil {
			return RepairMitigation(m, l1, p.now())
		}
		p.fellBack(LayerMitigation, in, err)
	}
	return p.fallback.planMitigation(ctx, in, l1)
}

// Contextualize produces layer 3 from layers 1 and 2.
func (p *Pipeline) Contextualize(ctx context.Context, in threat.Input, l1 threat.Assessment, l2 threat.MitigationPlan) threat.ContextInsights {
	if p.analyzer != nil {
		c, err := p.analyzer.Contextualize(ctx, in, l1, l2)
		if err == nil {
			return RepairContext(c, p.now())
		}
		p.fellBack(LayerContext, in, err)
	}
	return p.fallback.contextualize(ctx, in, l1, l2)
}

func (p *Pipeline) fellBack(layer string, in threat.Input, err error) {
	p.logger.Warn("AI call failed, using fallback",
		zap.String("layer", layer),
		zap.String("title", in.Title),
		zap.Error(err),
	)
	if p.onFall != nil {
		p.onFall(layer)
	}
}
