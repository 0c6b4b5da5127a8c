package enrichment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/cjmcneal02/Biosec-Project/internal/insights"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// Default simulated processing times.
const (
	DefaultLayerDelay   = 800 * time.Millisecond
	DefaultContextDelay = 500 * time.Millisecond
)

var summaryTemplates = []string{
	"Detected potential %s targeting biotech infrastructure.",
	"Threat analysis indicates %s with moderate to high risk.",
	"Initial assessment shows signs of %s activity.",
	"Pattern matching suggests %s behavior.",
}

var mitigationTable = map[threat.Category][]string{
	threat.CategoryBiotechMalware: {
		"Isolate affected laboratory systems immediately",
		"Run comprehensive malware scan on all connected devices",
		"Review recent software installations and updates",
		"Enable enhanced monitoring on lab equipment networks",
	},
	threat.CategoryDataExfiltration: {
		"Audit data access logs for unusual patterns",
		"Implement temporary network segmentation",
		"Review outbound network traffic for anomalies",
		"Verify data encryption on all storage systems",
	},
	threat.CategoryLabAccess: {
		"Review physical access logs and badge records",
		"Check security camera footage for the timeframe",
		"Verify all personnel credentials are current",
		"Implement additional authentication requirements",
	},
	threat.CategoryInsider: {
		"Conduct confidential employee interviews",
		"Review user activity logs across all systems",
		"Implement enhanced monitoring on flagged accounts",
		"Restrict access to sensitive data temporarily",
	},
	threat.CategorySupplyChain: {
		"Verify integrity of recent equipment deliveries",
		"Audit vendor access to systems and facilities",
		"Review all third-party software installations",
		"Implement enhanced supplier verification protocols",
	},
}

var impacts = []string{
	"Potential for significant operational disruption",
	"Risk of data loss or compromise",
	"Possible regulatory compliance implications",
	"May affect research integrity and timelines",
}

var fallbackActions = []string{
	"Notify security team immediately",
	"Document all findings and actions taken",
	"Prepare incident report for management",
	"Coordinate with IT security for further investigation",
}

var contextInsights = []string{
	"This threat pattern aligns with recent industry-wide trends in biotech security.",
	"Similar incidents have been reported in 3 other facilities this quarter.",
	"Advanced persistent threat (APT) characteristics detected in the attack vector.",
	"Threat actor methodology suggests state-sponsored activity.",
}

// PlaceholderRelated are the related-threat ids attached by the fallback.
// They do not refer to stored threats.
var PlaceholderRelated = []string{"THREAT-2024-001", "THREAT-2024-015", "THREAT-2024-028"}

// Recommendation texts used when no real advisor answer is available.
const (
	RecommendationEmpty    = "No threats detected. Continue monitoring for potential security issues."
	RecommendationFallback = "Continue monitoring threats and prioritize high-risk items for immediate review."
)

// PriorityForRisk maps a layer-1 risk score to a mitigation priority. The
// thresholds are not those of threat.Classify: 75 is High risk but Critical
// priority.
func PriorityForRisk(risk int) threat.Priority {
	switch {
	case risk >= 75:
		return threat.PriorityCritical
	case risk >= 50:
		return threat.PriorityHigh
	case risk >= 25:
		return threat.PriorityMedium
	default:
		return threat.PriorityLow
	}
}

// Fallback is the programmatic stand-in for the real AI. It satisfies
// Analyzer, Generator and Advisor and never returns an error.
type Fallback struct {
	mu  sync.Mutex // guards rng
	rng *rand.Rand

	layerDelay   time.Duration
	contextDelay time.Duration
	now          func() time.Time
}

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

// WithRand makes all draws come from r. Tests pass a fixed-seed source.
func WithRand(r *rand.Rand) FallbackOption {
	return func(f *Fallback) { f.rng = r }
}

// WithDelay sets the simulated processing time of layers 1–2 and layer 3.
// Zero disables the delay.
func WithDelay(layer, context time.Duration) FallbackOption {
	return func(f *Fallback) {
		f.layerDelay = layer
		f.contextDelay = context
	}
}

// WithClock overrides the time source used for timestamps and dates.
func WithClock(now func() time.Time) FallbackOption {
	return func(f *Fallback) { f.now = now }
}

// NewFallback returns a Fallback seeded from the runtime's entropy source
// with the default processing delays.
func NewFallback(opts ...FallbackOption) *Fallback {
	f := &Fallback{
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		layerDelay:   DefaultLayerDelay,
		contextDelay: DefaultContextDelay,
		now:          time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Assess implements Analyzer.
func (f *Fallback) Assess(ctx context.Context, in threat.Input) (threat.Assessment, error) {
	return f.assess(ctx, in), nil
}

// PlanMitigation implements Analyzer.
func (f *Fallback) PlanMitigation(ctx context.Context, in threat.Input, l1 threat.Assessment) (threat.MitigationPlan, error) {
	return f.planMitigation(ctx, in, l1), nil
}

// Contextualize implements Analyzer.
func (f *Fallback) Contextualize(ctx context.Context, in threat.Input, l1 threat.Assessment, l2 threat.MitigationPlan) (threat.ContextInsights, error) {
	return f.contextualize(ctx, in, l1, l2), nil
}

// GenerateThreats implements Generator.
func (f *Fallback) GenerateThreats(_ context.Context, count int) ([]threat.Input, error) {
	return f.generate(count), nil
}

// Recommend implements Advisor.
func (f *Fallback) Recommend(_ context.Context, threats []*threat.Threat, _ insights.GlobalInsights) (string, error) {
	if len(threats) == 0 {
		return RecommendationEmpty, nil
	}
	return RecommendationFallback, nil
}

func (f *Fallback) assess(ctx context.Context, _ threat.Input) threat.Assessment {
	sleep(ctx, f.layerDelay)

	f.mu.Lock()
	cats := threat.Categories()
	category := cats[f.rng.IntN(len(cats))]
	risk := 15 + f.rng.IntN(81)
	tmpl := summaryTemplates[f.rng.IntN(len(summaryTemplates))]
	confidence := 0.7 + f.rng.Float64()*0.3
	f.mu.Unlock()

	return threat.Assessment{
		Risk:       risk,
		Category:   category,
		Summary:    fmt.Sprintf(tmpl, strings.ToLower(string(category))),
		Confidence: confidence,
		Timestamp:  f.now().UTC(),
	}
}

func (f *Fallback) planMitigation(ctx context.Context, _ threat.Input, l1 threat.Assessment) threat.MitigationPlan {
	sleep(ctx, f.layerDelay)

	mitigations, ok := mitigationTable[l1.Category]
	if !ok {
		mitigations = mitigationTable[threat.DefaultCategory]
	}

	f.mu.Lock()
	impact := impacts[f.rng.IntN(len(impacts))]
	f.mu.Unlock()

	return threat.MitigationPlan{
		Mitigations:        clone(mitigations),
		Priority:           PriorityForRisk(l1.Risk),
		EstimatedImpact:    impact,
		RecommendedActions: clone(fallbackActions),
		Timestamp:          f.now().UTC(),
	}
}

func (f *Fallback) contextualize(ctx context.Context, _ threat.Input, _ threat.Assessment, _ threat.MitigationPlan) threat.ContextInsights {
	sleep(ctx, f.contextDelay)

	f.mu.Lock()
	insight := contextInsights[f.rng.IntN(len(contextInsights))]
	f.mu.Unlock()

	return threat.ContextInsights{
		ContextualInsights: insight,
		RelatedThreats:     clone(PlaceholderRelated),
		Timestamp:          f.now().UTC(),
	}
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
