// Package insights derives dashboard statistics from a threat collection.
// Everything here is a pure function of its inputs.
package insights

import (
	"math"
	"time"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// Trending pattern messages, checked in this order.
const (
	PatternNone     = "No threats detected"
	PatternSpike    = "Significant spike in recent threats"
	PatternElevated = "Elevated risk levels across all threats"
	PatternInsider  = "Increased insider threat activity detected"
	PatternStable   = "Stable threat levels"
)

const (
	day = 24 * time.Hour

	spikeShare        = 0.3
	elevatedRiskLevel = 60.0
)

// RiskDistribution counts threats per display level.
type RiskDistribution struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Total returns the sum of all buckets.
func (d RiskDistribution) Total() int { return d.Low + d.Medium + d.High + d.Critical }

func (d *RiskDistribution) add(risk int) {
	switch threat.Classify(risk) {
	case threat.LevelLow:
		d.Low++
	case threat.LevelMedium:
		d.Medium++
	case threat.LevelHigh:
		d.High++
	default:
		d.Critical++
	}
}

// RecentActivity counts threats created within trailing windows.
type RecentActivity struct {
	Last24h int `json:"last24h"`
	Last7d  int `json:"last7d"`
	Last30d int `json:"last30d"`
}

// GlobalInsights summarises a whole collection.
type GlobalInsights struct {
	TotalThreats     int              `json:"totalThreats"`
	AvgRisk          int              `json:"avgRisk"`
	TopCategory      threat.Category  `json:"topCategory"`
	TrendingPattern  string           `json:"trendingPattern"`
	RiskDistribution RiskDistribution `json:"riskDistribution"`
	RecentActivity   RecentActivity   `json:"recentActivity"`
}

// Aggregate computes GlobalInsights for threats as seen at now.
//
// Unanalyzed threats count as risk 0 and as DefaultCategory, the values a
// placeholder carries, so they weigh on every statistic. When several
// categories share the highest count, the one seen first wins.
func Aggregate(threats []*threat.Threat, now time.Time) GlobalInsights {
	if len(threats) == 0 {
		return GlobalInsights{
			TopCategory:     threat.DefaultCategory,
			TrendingPattern: PatternNone,
		}
	}

	var (
		out    GlobalInsights
		sum    int
		counts = make(map[threat.Category]int)
		order  []threat.Category
	)
	out.TotalThreats = len(threats)

	for _, t := range threats {
		risk := t.Risk()
		sum += risk
		out.RiskDistribution.add(risk)

		cat, ok := t.Category()
		if !ok {
			cat = threat.DefaultCategory
		}
		if _, seen := counts[cat]; !seen {
			order = append(order, cat)
		}
		counts[cat]++

		age := now.Sub(t.CreatedAt)
		if age < day {
			out.RecentActivity.Last24h++
		}
		if age < 7*day {
			out.RecentActivity.Last7d++
		}
		if age < 30*day {
			out.RecentActivity.Last30d++
		}
	}

	mean := float64(sum) / float64(len(threats))
	out.AvgRisk = int(math.Round(mean))

	out.TopCategory = threat.DefaultCategory
	best := 0
	for _, cat := range order {
		if counts[cat] > best {
			best = counts[cat]
			out.TopCategory = cat
		}
	}

	switch {
	case float64(out.RecentActivity.Last24h) > spikeShare*float64(out.TotalThreats):
		out.TrendingPattern = PatternSpike
	case mean > elevatedRiskLevel:
		out.TrendingPattern = PatternElevated
	case out.TopCategory == threat.CategoryInsider:
		out.TrendingPattern = PatternInsider
	default:
		out.TrendingPattern = PatternStable
	}
	return out
}
