package enrichment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cjmcneal02/Biosec-Project/internal/insights"
	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// Recommender produces the dashboard recommendation, falling back to a fixed
// sentence when the real advisor fails. Answers are cached per insights
// snapshot for ttl.
type Recommender struct {
	advisor Advisor // nil means fallback only
	logger  *zap.Logger
	cache   *ttlCache
	onFall  func(layer string)
}

// NewRecommender creates a Recommender. A zero ttl disables caching.
func NewRecommender(advisor Advisor, ttl time.Duration, logger *zap.Logger) *Recommender {
	r := &Recommender{advisor: advisor, logger: logger}
	if ttl > 0 {
		r.cache = newTTLCache(ttl)
	}
	return r
}

// SetFallbackRecorder registers a callback invoked on each fallback.
func (r *Recommender) SetFallbackRecorder(fn func(layer string)) {
	r.onFall = fn
}

// Recommend never fails.
func (r *Recommender) Recommend(ctx context.Context, threats []*threat.Threat, summary insights.GlobalInsights) string {
	if len(threats) == 0 {
		return RecommendationEmpty
	}
	if r.advisor == nil {
		return RecommendationFallback
	}

	key := snapshotKey(threats, summary)
	if r.cache != nil {
		if rec, ok := r.cache.get(key); ok {
			return rec
		}
	}

	rec, err := r.advisor.Recommend(ctx, threats, summary)
	if err != nil || rec == "" {
		if err == nil {
			err = fmt.Errorf("empty recommendation")
		}
		r.logger.Warn("AI recommendation failed, using fallback", zap.Error(err))
		if r.onFall != nil {
			r.onFall(LayerRecommendation)
		}
		return RecommendationFallback
	}

	if r.cache != nil {
		r.cache.set(key, rec)
	}
	return rec
}

// Invalidate drops every cached recommendation.
func (r *Recommender) Invalidate() {
	if r.cache != nil {
		r.cache.purge()
	}
}

// Evict removes expired cache entries.
func (r *Recommender) Evict() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.evict()
}

func snapshotKey(threats []*threat.Threat, s insights.GlobalInsights) string {
	newest := threats[0].UpdatedAt
	for _, t := range threats[1:] {
		if t.UpdatedAt.After(newest) {
			newest = t.UpdatedAt
		}
	}
	return fmt.Sprintf("%d|%d|%s|%s|%d/%d/%d/%d|%d",
		s.TotalThreats, s.AvgRisk, s.TopCategory, s.TrendingPattern,
		s.RiskDistribution.Low, s.RiskDistribution.Medium, s.RiskDistribution.High, s.RiskDistribution.Critical,
		newest.UnixNano())
}
