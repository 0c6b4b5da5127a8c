package insights

import (
	"math"
	"time"

	"github.com/cjmcneal02/Biosec-Project/internal/threat"
)

// DefaultTrendDays is the window of the dashboard trend chart.
const DefaultTrendDays = 7

// TrendPoint is one calendar day of the trend series.
type TrendPoint struct {
	Date    string `json:"date"` // YYYY-MM-DD in now's location
	Threats int    `json:"threats"`
	AvgRisk int    `json:"avgRisk"`
	RiskDistribution
}

// Trend buckets threats by creation day over the last days calendar days,
// oldest first, ending with the day containing now. Days are cut at midnight
// in now's location.
func Trend(threats []*threat.Threat, now time.Time, days int) []TrendPoint {
	if days <= 0 {
		days = DefaultTrendDays
	}
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	points := make([]TrendPoint, days)
	sums := make([]int, days)
	for i := range points {
		start := today.AddDate(0, 0, i-days+1)
		points[i].Date = start.Format(time.DateOnly)
	}

	first := today.AddDate(0, 0, 1-days)
	for _, t := range threats {
		created := t.CreatedAt.In(loc)
		if created.Before(first) || !created.Before(today.AddDate(0, 0, 1)) {
			continue
		}
		c := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, loc)
		idx := 0
		for idx < days-1 && !c.Before(first.AddDate(0, 0, idx+1)) {
			idx++
		}
		risk := t.Risk()
		points[idx].Threats++
		points[idx].add(risk)
		sums[idx] += risk
	}

	for i := range points {
		if points[i].Threats > 0 {
			points[i].AvgRisk = int(math.Round(float64(sums[i]) / float64(points[i].Threats)))
		}
	}
	return points
}
