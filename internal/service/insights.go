package service

import (
	"context"
	"fmt"

	"github.com/cjmcneal02/Biosec-Project/internal/enrichment"
	"github.com/cjmcneal02/Biosec-Project/internal/insights"
)

// MaxTrendDays bounds Trend.
const MaxTrendDays = 90

// Insights aggregates the current collection.
func (s *ThreatService) Insights(_ context.Context) insights.GlobalInsights {
	return insights.Aggregate(s.snapshot(), s.now())
}

// Trend returns per-day counts for the last days days, oldest first. Zero
// means insights.DefaultTrendDays.
func (s *ThreatService) Trend(_ context.Context, days int) ([]insights.TrendPoint, error) {
	if days == 0 {
		days = insights.DefaultTrendDays
	}
	if days < 1 || days > MaxTrendDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidInput, MaxTrendDays)
	}
	return insights.Trend(s.snapshot(), s.now(), days), nil
}

// Recommendation returns the dashboard recommendation for the current
// collection. It never fails; without a recommender the fixed fallback text
// is used.
func (s *ThreatService) Recommendation(ctx context.Context) string {
	threats := s.snapshot()
	if len(threats) == 0 {
		return enrichment.RecommendationEmpty
	}
	if s.recommender == nil {
		return enrichment.RecommendationFallback
	}
	return s.recommender.Recommend(ctx, threats, insights.Aggregate(threats, s.now()))
}
